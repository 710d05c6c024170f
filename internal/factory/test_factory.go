package factory

import (
	"time"

	"github.com/mcoot/typerace-go/internal/dependencies/mocks"
	"github.com/mcoot/typerace-go/internal/events"
	"github.com/mcoot/typerace-go/internal/gateway"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/race"
	"github.com/mcoot/typerace-go/internal/storage/memory"
	"github.com/mcoot/typerace-go/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	// Mocks for test control
	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App configured for testing with mocked dependencies
func NewTestApp() *TestApp {
	return NewTestAppWithPublisher(events.NopPublisher{})
}

// NewTestAppWithPublisher creates a test App that mirrors events to publisher
func NewTestAppWithPublisher(publisher events.Publisher) *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()

	app := newWithDependencies(store, mockClock, mockRandom, publisher, race.DefaultConfig(), gateway.DefaultConfig(), testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}

// LoadTestTexts loads one short passage per difficulty
func (t *TestApp) LoadTestTexts() error {
	return t.TextService.LoadPassages(map[model.Difficulty][]string{
		model.DifficultyEasy:   {"The cat sat on the mat."},
		model.DifficultyMedium: {"Quick brown foxes jump over lazy dogs."},
		model.DifficultyHard:   {"Sphinx of black quartz, judge my vow."},
	})
}
