package hub

import (
	"log/slog"

	"github.com/mcoot/typerace-go/internal/model"
)

// Broadcaster encodes outbound race events once and hands them to the race's room
type Broadcaster struct {
	manager *Manager
	logger  *slog.Logger
}

// NewBroadcaster creates a new Broadcaster
func NewBroadcaster(manager *Manager, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		manager: manager,
		logger:  logger.With(slog.String("component", "broadcaster")),
	}
}

// BroadcastRaceUpdate sends the full race state to every room member
func (b *Broadcaster) BroadcastRaceUpdate(race *model.Race) {
	hub := b.manager.Get(race.ID)
	if hub == nil {
		return
	}

	msg, err := NewMessage(model.EventRaceUpdate, race)
	if err != nil {
		b.logger.Error("failed to encode race update",
			slog.String("race_id", string(race.ID)),
			slog.Any("error", err))
		return
	}
	hub.Broadcast(msg)
}

// BroadcastRaceStart tells every room member that typing may begin
func (b *Broadcaster) BroadcastRaceStart(raceID model.RaceID) {
	hub := b.manager.Get(raceID)
	if hub == nil {
		return
	}

	msg, err := NewMessage(model.EventRaceStart, nil)
	if err != nil {
		b.logger.Error("failed to encode race start",
			slog.String("race_id", string(raceID)),
			slog.Any("error", err))
		return
	}
	hub.Broadcast(msg)
}
