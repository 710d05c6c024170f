package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/typerace-go/internal/dependencies/mocks"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.RaceEvent
	err    error
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, event model.RaceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error {
	p.closed = true
	return nil
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "typerace.races.RACE0001.raceUpdate", Subject("typerace.races", "RACE0001", model.EventRaceUpdate))
	assert.Equal(t, "custom.RACE0001.raceStart", Subject("custom", "RACE0001", model.EventRaceStart))
}

func TestBuildMsg(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	event := model.RaceEvent{
		Type:      model.EventRaceUpdate,
		RaceID:    "RACE0001",
		Timestamp: ts,
		Race:      &model.Race{ID: "RACE0001", Status: model.RaceStatusRacing, Players: []model.RacePlayer{}},
	}

	msg, err := buildMsg("typerace.races", event)
	require.NoError(t, err)

	assert.Equal(t, "typerace.races.RACE0001.raceUpdate", msg.Subject)
	assert.Equal(t, "raceUpdate", msg.Header.Get("Event-Type"))
	assert.Equal(t, "RACE0001", msg.Header.Get("Race-ID"))

	var decoded model.RaceEvent
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, model.EventRaceUpdate, decoded.Type)
	assert.True(t, ts.Equal(decoded.Timestamp))
	require.NotNil(t, decoded.Race)
	assert.Equal(t, model.RaceStatusRacing, decoded.Race.Status)
}

func TestBuildMsgRaceStartHasNoRace(t *testing.T) {
	msg, err := buildMsg("typerace.races", model.RaceEvent{Type: model.EventRaceStart, RaceID: "RACE0001"})
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &body))
	assert.NotContains(t, body, "race")
	assert.Equal(t, "RACE0001", body["race_id"])
}

func TestMirrorPublishesNotifications(t *testing.T) {
	publisher := &recordingPublisher{}
	clock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mirror := NewMirror(publisher, clock, testutil.NopLogger())

	race := &model.Race{ID: "RACE0001", Status: model.RaceStatusCountdown}
	mirror.RaceUpdated(context.Background(), race)
	mirror.RaceStarted(context.Background(), "RACE0001")

	require.Len(t, publisher.events, 2)
	assert.Equal(t, model.EventRaceUpdate, publisher.events[0].Type)
	assert.Same(t, race, publisher.events[0].Race)
	assert.True(t, clock.Now().Equal(publisher.events[0].Timestamp))
	assert.Equal(t, model.EventRaceStart, publisher.events[1].Type)
	assert.Nil(t, publisher.events[1].Race)

	require.NoError(t, mirror.Close())
	assert.True(t, publisher.closed)
}

func TestMirrorSwallowsPublishErrors(t *testing.T) {
	publisher := &recordingPublisher{err: errors.New("nats down")}
	mirror := NewMirror(publisher, mocks.NewMockClock(time.Now()), testutil.NopLogger())

	assert.NotPanics(t, func() {
		mirror.RaceStarted(context.Background(), "RACE0001")
	})
	assert.Empty(t, publisher.events)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), model.RaceEvent{}))
	assert.NoError(t, p.Close())
}

func TestNewNATSPublisherUnreachable(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.Timeout = 200 * time.Millisecond

	_, err := NewNATSPublisher(cfg, testutil.NopLogger())
	assert.Error(t, err)
}
