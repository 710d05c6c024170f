package hub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/testutil"
)

func TestBroadcaster_BroadcastRaceUpdate(t *testing.T) {
	manager := NewManager(testutil.NopLogger())
	defer manager.Close()
	broadcaster := NewBroadcaster(manager, testutil.NopLogger())

	race := &model.Race{
		ID:     "RACE0001",
		Text:   "hello world",
		Status: model.RaceStatusRacing,
		Players: []model.RacePlayer{
			{ID: "conn-1", Name: "Alice", Progress: 40, WPM: 55},
		},
	}
	race.SetCountdown(0)

	client := NewClient("conn-1")
	manager.GetOrCreate(race.ID).Register(client)

	broadcaster.BroadcastRaceUpdate(race)

	msg := receive(t, client)
	assert.Equal(t, model.EventRaceUpdate, msg.Type)

	var env struct {
		Type string     `json:"type"`
		Data model.Race `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg.Payload, &env))
	assert.Equal(t, "raceUpdate", env.Type)
	assert.Equal(t, race.ID, env.Data.ID)
	assert.Equal(t, race.Players, env.Data.Players)
	assert.Equal(t, 0, env.Data.CountdownValue())
}

func TestBroadcaster_BroadcastRaceStart(t *testing.T) {
	manager := NewManager(testutil.NopLogger())
	defer manager.Close()
	broadcaster := NewBroadcaster(manager, testutil.NopLogger())

	client := NewClient("conn-1")
	manager.GetOrCreate("RACE0001").Register(client)

	broadcaster.BroadcastRaceStart("RACE0001")

	msg := receive(t, client)
	assert.Equal(t, model.EventRaceStart, msg.Type)
	assert.JSONEq(t, `{"type":"raceStart","data":{}}`, string(msg.Payload))
}

func TestBroadcaster_NoHubIsNoop(t *testing.T) {
	manager := NewManager(testutil.NopLogger())
	broadcaster := NewBroadcaster(manager, testutil.NopLogger())

	assert.NotPanics(t, func() {
		broadcaster.BroadcastRaceUpdate(&model.Race{ID: "MISSING"})
		broadcaster.BroadcastRaceStart("MISSING")
	})
	assert.Nil(t, manager.Get("MISSING"))
}
