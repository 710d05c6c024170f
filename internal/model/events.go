package model

import (
	"encoding/json"
	"time"
)

// EventType identifies the type of message exchanged with clients
type EventType string

const (
	// Inbound (client to server)
	EventJoinRace       EventType = "joinRace"
	EventLeaveRace      EventType = "leaveRace"
	EventUpdateProgress EventType = "updateProgress"

	// Outbound (server to client)
	EventRaceUpdate EventType = "raceUpdate"
	EventRaceStart  EventType = "raceStart"
	EventError      EventType = "error"
)

// Envelope is the JSON frame carried over the websocket and SSE streams
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into an envelope of the given type
func NewEnvelope(eventType EventType, data any) (Envelope, error) {
	if data == nil {
		return Envelope{Type: eventType, Data: json.RawMessage("{}")}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: eventType, Data: raw}, nil
}

// JoinRacePayload is sent by a client that wants to race.
// PlayerName is what the web client sends; DisplayName is accepted as an alias.
type JoinRacePayload struct {
	PlayerName  string `json:"playerName"`
	DisplayName string `json:"displayName,omitempty"`
}

// Name returns whichever display name field the client filled in
func (p JoinRacePayload) Name() string {
	if p.PlayerName != "" {
		return p.PlayerName
	}
	return p.DisplayName
}

// ErrorPayload is sent to a single client when its message could not be handled
type ErrorPayload struct {
	Message string `json:"message"`
}

// RaceEvent is a race state change published outside the process
type RaceEvent struct {
	Type      EventType `json:"type"`
	RaceID    RaceID    `json:"race_id"`
	Timestamp time.Time `json:"timestamp"`
	Race      *Race     `json:"race,omitempty"` // Empty for raceStart
}
