package events

import (
	"context"
	"log/slog"

	"github.com/mcoot/typerace-go/internal/dependencies/clock"
	"github.com/mcoot/typerace-go/internal/model"
)

// Publisher mirrors race events to systems outside this process
type Publisher interface {
	Publish(ctx context.Context, event model.RaceEvent) error
	Close() error
}

// NopPublisher discards every event
type NopPublisher struct{}

// Ensure NopPublisher implements Publisher
var _ Publisher = NopPublisher{}

func (NopPublisher) Publish(context.Context, model.RaceEvent) error { return nil }

func (NopPublisher) Close() error { return nil }

// Mirror turns race notifications into published events.
// Publish failures are logged and otherwise ignored.
type Mirror struct {
	publisher Publisher
	clock     clock.Clock
	logger    *slog.Logger
}

// NewMirror creates a new Mirror
func NewMirror(publisher Publisher, clock clock.Clock, logger *slog.Logger) *Mirror {
	return &Mirror{
		publisher: publisher,
		clock:     clock,
		logger:    logger.With(slog.String("component", "event-mirror")),
	}
}

// RaceUpdated publishes the full race state
func (m *Mirror) RaceUpdated(ctx context.Context, race *model.Race) {
	m.publish(ctx, model.RaceEvent{
		Type:      model.EventRaceUpdate,
		RaceID:    race.ID,
		Timestamp: m.clock.Now().UTC(),
		Race:      race,
	})
}

// RaceStarted publishes the start of a race
func (m *Mirror) RaceStarted(ctx context.Context, raceID model.RaceID) {
	m.publish(ctx, model.RaceEvent{
		Type:      model.EventRaceStart,
		RaceID:    raceID,
		Timestamp: m.clock.Now().UTC(),
	})
}

func (m *Mirror) publish(ctx context.Context, event model.RaceEvent) {
	if err := m.publisher.Publish(ctx, event); err != nil {
		m.logger.Warn("failed to publish race event",
			slog.String("race_id", string(event.RaceID)),
			slog.String("type", string(event.Type)),
			slog.Any("error", err))
	}
}

// Close closes the underlying publisher
func (m *Mirror) Close() error {
	return m.publisher.Close()
}
