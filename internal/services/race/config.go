package race

import (
	"time"

	"github.com/mcoot/typerace-go/internal/model"
)

// Config tunes matchmaking and countdown behavior
type Config struct {
	// MinPlayers is how many players a waiting race needs before the countdown starts
	MinPlayers int

	// CountdownFrom is the first value shown once the countdown starts
	CountdownFrom int

	// TickInterval is the time between countdown steps
	TickInterval time.Duration

	// Difficulty of passages handed to newly created races
	Difficulty model.Difficulty
}

// DefaultConfig returns the standard race settings
func DefaultConfig() Config {
	return Config{
		MinPlayers:    2,
		CountdownFrom: 3,
		TickInterval:  time.Second,
		Difficulty:    model.DifficultyMedium,
	}
}

// withDefaults fills zero values from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MinPlayers <= 0 {
		c.MinPlayers = def.MinPlayers
	}
	if c.CountdownFrom <= 0 {
		c.CountdownFrom = def.CountdownFrom
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if !c.Difficulty.IsValid() {
		c.Difficulty = def.Difficulty
	}
	return c
}
