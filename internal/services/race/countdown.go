package race

import (
	"context"
	"sync"

	"github.com/mcoot/typerace-go/internal/model"
)

// Notifier receives race changes. It is called with the controller lock held,
// so calls arrive in mutation order and must not call back into the controller.
type Notifier interface {
	// PlayerJoined is called before the update announcing the new player
	PlayerJoined(id model.RaceID, connID model.ConnectionID)
	RaceUpdated(race *model.Race)
	RaceStarted(id model.RaceID)
	RaceDeleted(id model.RaceID)
}

// NopNotifier discards every notification
type NopNotifier struct{}

func (NopNotifier) PlayerJoined(model.RaceID, model.ConnectionID) {}
func (NopNotifier) RaceUpdated(*model.Race)                      {}
func (NopNotifier) RaceStarted(model.RaceID)                     {}
func (NopNotifier) RaceDeleted(model.RaceID)                     {}

// Countdown tracks the running countdown loop of each race so it can be cancelled
type Countdown struct {
	mu      sync.Mutex
	running map[model.RaceID]*countdownEntry
	wg      sync.WaitGroup
}

type countdownEntry struct {
	cancel context.CancelFunc
}

// NewCountdown creates an empty countdown registry
func NewCountdown() *Countdown {
	return &Countdown{
		running: make(map[model.RaceID]*countdownEntry),
	}
}

// track registers a new loop for the race and returns its context.
// Any loop already registered for the race is cancelled.
func (c *Countdown) track(id model.RaceID) (context.Context, *countdownEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.running[id]; ok {
		existing.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	entry := &countdownEntry{cancel: cancel}
	c.running[id] = entry
	c.wg.Add(1)
	return ctx, entry
}

// done unregisters a loop that exited on its own
func (c *Countdown) done(id model.RaceID, entry *countdownEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry.cancel()
	if c.running[id] == entry {
		delete(c.running, id)
	}
	c.wg.Done()
}

// Cancel stops the countdown loop for a race, if any
func (c *Countdown) Cancel(id model.RaceID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.running[id]; ok {
		entry.cancel()
		delete(c.running, id)
	}
}

// Running reports whether a countdown loop is registered for the race
func (c *Countdown) Running(id model.RaceID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.running[id]
	return ok
}

// Active returns the number of registered loops
func (c *Countdown) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.running)
}

// Stop cancels every loop and waits for them to exit
func (c *Countdown) Stop() {
	c.mu.Lock()
	for id, entry := range c.running {
		entry.cancel()
		delete(c.running, id)
	}
	c.mu.Unlock()

	c.wg.Wait()
}
