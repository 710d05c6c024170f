package mocks

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// MockClock is a fake clock whose timers and tickers only fire when advanced
type MockClock = clockwork.FakeClock

// NewMockClock creates a MockClock set to the given time
func NewMockClock(t time.Time) *MockClock {
	return clockwork.NewFakeClockAt(t)
}
