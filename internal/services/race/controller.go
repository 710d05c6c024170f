package race

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/mcoot/typerace-go/internal/dependencies/clock"
	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/text"
	"github.com/mcoot/typerace-go/internal/storage"
)

const (
	// RaceIDLength is the length of generated race IDs
	RaceIDLength = 8
	// RaceIDAlphabet is the characters used in race IDs (avoid confusing chars)
	RaceIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	// MaxDisplayNameLength is the longest display name kept, in runes
	MaxDisplayNameLength = 32
	// DefaultDisplayName replaces blank display names
	DefaultDisplayName = "Anonymous"

	maxIDAttempts = 10
)

// Controller owns every race mutation: matchmaking, progress and countdowns.
// All mutations are serialized by a single mutex.
type Controller struct {
	storage   storage.Storage
	texts     *text.Service
	clock     clock.Clock
	random    random.Random
	cfg       Config
	countdown *Countdown
	logger    *slog.Logger

	mu sync.Mutex
}

// NewController creates a new race Controller
func NewController(
	storage storage.Storage,
	texts *text.Service,
	clock clock.Clock,
	random random.Random,
	cfg Config,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		storage:   storage,
		texts:     texts,
		clock:     clock,
		random:    random,
		cfg:       cfg.withDefaults(),
		countdown: NewCountdown(),
		logger:    logger.With(slog.String("component", "race-controller")),
	}
}

// Config returns the effective configuration
func (c *Controller) Config() Config {
	return c.cfg
}

// GetRace retrieves a race by ID
func (c *Controller) GetRace(ctx context.Context, id model.RaceID) (*model.Race, error) {
	return c.storage.GetRace(ctx, id)
}

// ListRaces returns all live races in creation order
func (c *Controller) ListRaces(ctx context.Context) ([]*model.Race, error) {
	return c.storage.ListRaces(ctx)
}

// WithRace runs fn against the current state of a race while no mutation can interleave.
// Notifications for later mutations are issued after fn returns.
func (c *Controller) WithRace(ctx context.Context, id model.RaceID, fn func(*model.Race) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	race, err := c.storage.GetRace(ctx, id)
	if err != nil {
		return err
	}
	return fn(race)
}

// ActiveCountdowns returns the number of races currently counting down
func (c *Controller) ActiveCountdowns() int {
	return c.countdown.Active()
}

// FindWaitingRace returns the first race still accepting players, or nil if there is none
func (c *Controller) FindWaitingRace(ctx context.Context) (*model.Race, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.findWaitingRace(ctx)
}

func (c *Controller) findWaitingRace(ctx context.Context) (*model.Race, error) {
	races, err := c.storage.ListRaces(ctx)
	if err != nil {
		return nil, err
	}
	for _, race := range races {
		if race.Status == model.RaceStatusWaiting {
			return race, nil
		}
	}
	return nil, nil
}

// CreateRace creates and stores a new empty waiting race
func (c *Controller) CreateRace(ctx context.Context) (*model.Race, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createRace(ctx)
}

func (c *Controller) createRace(ctx context.Context) (*model.Race, error) {
	id, err := c.newRaceID(ctx)
	if err != nil {
		return nil, err
	}

	passage, err := c.texts.Random(c.cfg.Difficulty)
	if err != nil {
		return nil, err
	}

	now := c.clock.Now()
	race := &model.Race{
		ID:         id,
		Text:       passage,
		Difficulty: c.cfg.Difficulty,
		Status:     model.RaceStatusWaiting,
		Players:    []model.RacePlayer{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := c.storage.SaveRace(ctx, race); err != nil {
		c.logger.Error("failed to save race",
			slog.String("race_id", string(id)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	c.logger.Info("race created",
		slog.String("race_id", string(id)),
		slog.String("difficulty", string(race.Difficulty)),
	)

	return race, nil
}

func (c *Controller) newRaceID(ctx context.Context) (model.RaceID, error) {
	for range maxIDAttempts {
		id := model.RaceID(c.random.String(RaceIDLength, RaceIDAlphabet))
		_, err := c.storage.GetRace(ctx, id)
		if errors.Is(err, model.ErrRaceNotFound) {
			return id, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free race id after %d attempts", maxIDAttempts)
}

// JoinOrCreate places a connection into the first waiting race, creating one if needed.
// Nobody is notified; Join is the entry point for connected clients.
func (c *Controller) JoinOrCreate(ctx context.Context, connID model.ConnectionID, displayName string) (*model.Race, error) {
	name, err := NormalizeDisplayName(displayName)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joinOrCreate(ctx, connID, name)
}

// Join places a connection into a waiting race and notifies the room.
// A race that reaches the minimum player count starts its countdown in the same step,
// so no other connection can slip into it first.
func (c *Controller) Join(ctx context.Context, connID model.ConnectionID, displayName string, notifier Notifier) (*model.Race, error) {
	name, err := NormalizeDisplayName(displayName)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	race, err := c.joinOrCreate(ctx, connID, name)
	if err != nil {
		return nil, err
	}
	notifier.PlayerJoined(race.ID, connID)

	if c.ShouldStartCountdown(race) {
		if err := c.startCountdown(ctx, race, notifier); err != nil {
			c.logger.Error("failed to start countdown",
				slog.String("race_id", string(race.ID)),
				slog.String("error", err.Error()),
			)
			return race, err
		}
		return race, nil
	}

	notifier.RaceUpdated(race.Clone())
	return race, nil
}

func (c *Controller) joinOrCreate(ctx context.Context, connID model.ConnectionID, name string) (*model.Race, error) {
	race, err := c.findWaitingRace(ctx)
	if err != nil {
		return nil, err
	}
	if race == nil {
		race, err = c.createRace(ctx)
		if err != nil {
			return nil, err
		}
	}

	if race.GetPlayer(connID) != nil {
		return nil, model.ErrAlreadyInRace
	}

	race.Players = append(race.Players, model.RacePlayer{
		ID:   connID,
		Name: name,
	})
	race.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveRace(ctx, race); err != nil {
		return nil, err
	}

	c.logger.Info("player joined race",
		slog.String("race_id", string(race.ID)),
		slog.String("connection_id", string(connID)),
		slog.Int("players", len(race.Players)),
	)

	return race, nil
}

// ShouldStartCountdown reports whether a race has enough players to begin counting down
func (c *Controller) ShouldStartCountdown(race *model.Race) bool {
	return race != nil &&
		race.Status == model.RaceStatusWaiting &&
		len(race.Players) >= c.cfg.MinPlayers
}

// Leave removes a connection from a race and notifies the room.
// An emptied race is deleted and nil is returned, as it is for unknown races and players.
func (c *Controller) Leave(ctx context.Context, raceID model.RaceID, connID model.ConnectionID, notifier Notifier) (*model.Race, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	race, err := c.storage.GetRace(ctx, raceID)
	if errors.Is(err, model.ErrRaceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if !race.RemovePlayer(connID) {
		return nil, nil
	}

	if race.IsEmpty() {
		c.countdown.Cancel(raceID)
		if err := c.storage.DeleteRace(ctx, raceID); err != nil {
			return nil, err
		}
		c.logger.Info("race deleted",
			slog.String("race_id", string(raceID)),
			slog.String("status", string(race.Status)),
		)
		notifier.RaceDeleted(raceID)
		return nil, nil
	}

	race.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveRace(ctx, race); err != nil {
		return nil, err
	}

	c.logger.Info("player left race",
		slog.String("race_id", string(raceID)),
		slog.String("connection_id", string(connID)),
		slog.Int("players", len(race.Players)),
	)

	notifier.RaceUpdated(race.Clone())
	return race, nil
}

// UpdateProgress records a player's self-reported progress and notifies the room.
// Any finished update ends the race for everyone.
func (c *Controller) UpdateProgress(ctx context.Context, raceID model.RaceID, connID model.ConnectionID, update model.ProgressUpdate, notifier Notifier) (*model.Race, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	race, err := c.storage.GetRace(ctx, raceID)
	if errors.Is(err, model.ErrRaceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	player := race.GetPlayer(connID)
	if player == nil {
		return nil, nil
	}

	player.Progress = min(max(update.Progress, 0), 100)
	player.WPM = max(update.WPM, 0)
	player.Finished = update.Finished

	if update.Finished || race.AllFinished() {
		if race.Status != model.RaceStatusFinished {
			c.logger.Info("race finished",
				slog.String("race_id", string(raceID)),
				slog.String("winner", string(connID)),
			)
		}
		race.Status = model.RaceStatusFinished
	}
	race.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveRace(ctx, race); err != nil {
		return nil, err
	}

	notifier.RaceUpdated(race.Clone())
	return race, nil
}

// StartCountdown moves a waiting race into its countdown and starts ticking.
// It does nothing for unknown races or races that are not waiting.
func (c *Controller) StartCountdown(ctx context.Context, raceID model.RaceID, notifier Notifier) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	race, err := c.storage.GetRace(ctx, raceID)
	if errors.Is(err, model.ErrRaceNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if race.Status != model.RaceStatusWaiting {
		return nil
	}
	return c.startCountdown(ctx, race, notifier)
}

// startCountdown requires c.mu to be held
func (c *Controller) startCountdown(ctx context.Context, race *model.Race, notifier Notifier) error {
	raceID := race.ID
	race.Status = model.RaceStatusCountdown
	race.SetCountdown(c.cfg.CountdownFrom)
	race.UpdatedAt = c.clock.Now()
	if err := c.storage.SaveRace(ctx, race); err != nil {
		return err
	}

	c.logger.Info("countdown started",
		slog.String("race_id", string(raceID)),
		slog.Int("from", c.cfg.CountdownFrom),
	)
	// The ticker exists before anyone is notified so fake clocks can be advanced immediately
	ticker := c.clock.NewTicker(c.cfg.TickInterval)
	tickCtx, entry := c.countdown.track(raceID)
	go c.runCountdown(tickCtx, raceID, ticker, entry, notifier)

	notifier.RaceUpdated(race.Clone())
	return nil
}

func (c *Controller) runCountdown(ctx context.Context, raceID model.RaceID, ticker clockwork.Ticker, entry *countdownEntry, notifier Notifier) {
	defer c.countdown.done(raceID, entry)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if !c.tick(ctx, raceID, notifier) {
				return
			}
		}
	}
}

// tick advances the countdown by one step and reports whether it should keep going
func (c *Controller) tick(ctx context.Context, raceID model.RaceID, notifier Notifier) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}

	race, err := c.storage.GetRace(ctx, raceID)
	if err != nil {
		if !errors.Is(err, model.ErrRaceNotFound) {
			c.logger.Error("failed to load race for countdown",
				slog.String("race_id", string(raceID)),
				slog.String("error", err.Error()),
			)
		}
		return false
	}
	if race.Status != model.RaceStatusCountdown {
		return false
	}

	remaining := max(race.CountdownValue()-1, 0)
	race.SetCountdown(remaining)
	started := remaining == 0
	if started {
		race.Status = model.RaceStatusRacing
	}
	race.UpdatedAt = c.clock.Now()

	if err := c.storage.SaveRace(ctx, race); err != nil {
		c.logger.Error("failed to save race during countdown",
			slog.String("race_id", string(raceID)),
			slog.String("error", err.Error()),
		)
		return false
	}

	if started {
		c.logger.Info("race started", slog.String("race_id", string(raceID)))
		notifier.RaceStarted(raceID)
	}
	notifier.RaceUpdated(race.Clone())

	return !started
}

// Close stops all running countdowns
func (c *Controller) Close() {
	c.countdown.Stop()
}

// NormalizeDisplayName trims a display name, substitutes a default for blank names
// and truncates overlong ones. Names containing control characters are rejected.
func NormalizeDisplayName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultDisplayName, nil
	}

	for _, r := range name {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return "", model.ErrInvalidDisplayName
		}
	}

	if utf8.RuneCountInString(name) > MaxDisplayNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxDisplayNameLength]))
	}
	return name, nil
}
