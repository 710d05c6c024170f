package model

import "time"

// RaceID uniquely identifies a race
type RaceID string

// ConnectionID identifies a single client connection; it doubles as the player ID inside a race
type ConnectionID string

// RaceStatus represents the current phase of a race
type RaceStatus string

const (
	RaceStatusWaiting   RaceStatus = "waiting"   // Waiting for enough players
	RaceStatusCountdown RaceStatus = "countdown" // Counting down to the start
	RaceStatusRacing    RaceStatus = "racing"    // Players are typing
	RaceStatusFinished  RaceStatus = "finished"  // Race is over
)

// Difficulty selects which passage pool a race draws its text from
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Difficulties returns all known difficulties in ascending order
func Difficulties() []Difficulty {
	return []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard}
}

// IsValid reports whether d is a known difficulty
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

// RacePlayer is a participant in a single race. It has no identity outside the race.
type RacePlayer struct {
	ID       ConnectionID `json:"id"`
	Name     string       `json:"name"`
	Progress int          `json:"progress"` // 0-100
	WPM      int          `json:"wpm"`      // Client-reported, not verified
	Finished bool         `json:"finished"`
}

// Race is one matchmaking unit: a shared passage and the players typing it
type Race struct {
	ID         RaceID       `json:"id"`
	Text       string       `json:"text"`
	Difficulty Difficulty   `json:"difficulty"`
	Status     RaceStatus   `json:"status"`
	Countdown  *int         `json:"countdown,omitempty"` // nil until the countdown begins
	Players    []RacePlayer `json:"players"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// GetPlayer returns the player with the given connection ID, or nil if not found
func (r *Race) GetPlayer(id ConnectionID) *RacePlayer {
	for i := range r.Players {
		if r.Players[i].ID == id {
			return &r.Players[i]
		}
	}
	return nil
}

// RemovePlayer drops the player with the given connection ID.
// Returns false if the player was not in the race.
func (r *Race) RemovePlayer(id ConnectionID) bool {
	for i, p := range r.Players {
		if p.ID == id {
			r.Players = append(r.Players[:i], r.Players[i+1:]...)
			return true
		}
	}
	return false
}

// AllFinished returns true if every player has finished. An empty race is not finished.
func (r *Race) AllFinished() bool {
	if len(r.Players) == 0 {
		return false
	}
	for _, p := range r.Players {
		if !p.Finished {
			return false
		}
	}
	return true
}

// IsEmpty returns true when no players remain
func (r *Race) IsEmpty() bool {
	return len(r.Players) == 0
}

// CountdownValue returns the countdown counter, or 0 when no countdown has started
func (r *Race) CountdownValue() int {
	if r.Countdown == nil {
		return 0
	}
	return *r.Countdown
}

// SetCountdown sets the countdown counter
func (r *Race) SetCountdown(n int) {
	r.Countdown = &n
}

// Clone returns a deep copy of the race
func (r *Race) Clone() *Race {
	if r == nil {
		return nil
	}
	c := *r
	if r.Countdown != nil {
		c.SetCountdown(*r.Countdown)
	}
	c.Players = make([]RacePlayer, len(r.Players))
	copy(c.Players, r.Players)
	return &c
}

// ProgressUpdate is a player's self-reported typing state
type ProgressUpdate struct {
	Progress int  `json:"progress"`
	WPM      int  `json:"wpm"`
	Finished bool `json:"finished"`
}
