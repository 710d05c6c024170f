package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/typerace-go/internal/dependencies/mocks"
	"github.com/mcoot/typerace-go/internal/events"
	"github.com/mcoot/typerace-go/internal/hub"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/race"
	"github.com/mcoot/typerace-go/internal/services/text"
	"github.com/mcoot/typerace-go/internal/storage/memory"
	"github.com/mcoot/typerace-go/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.RaceEvent
}

func (p *recordingPublisher) Publish(_ context.Context, event model.RaceEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []model.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]model.EventType, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

type envelope struct {
	Type model.EventType `json:"type"`
	Data json.RawMessage `json:"data"`
}

type GatewaySuite struct {
	suite.Suite
	clock     *mocks.MockClock
	storage   *memory.Storage
	races     *race.Controller
	hubs      *hub.Manager
	publisher *recordingPublisher
	gateway   *Gateway
	server    *httptest.Server
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	logger := testutil.NopLogger()
	random := mocks.NewMockRandom()
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.storage = memory.New()

	texts := text.New(random)
	s.Require().NoError(texts.LoadDefaults())

	s.races = race.NewController(s.storage, texts, s.clock, random, race.DefaultConfig(), logger)
	s.hubs = hub.NewManager(logger)
	s.publisher = &recordingPublisher{}
	mirror := events.NewMirror(s.publisher, s.clock, logger)

	s.gateway = New(s.races, s.hubs, hub.NewBroadcaster(s.hubs, logger), mirror, DefaultConfig(), logger)
	s.server = httptest.NewServer(s.gateway)
}

func (s *GatewaySuite) TearDownTest() {
	s.server.Close()
	s.gateway.Close()
	s.races.Close()
	s.hubs.Close()
}

func (s *GatewaySuite) dial() *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = conn.Close() })
	return conn
}

func (s *GatewaySuite) send(conn *websocket.Conn, eventType model.EventType, data any) {
	env, err := model.NewEnvelope(eventType, data)
	s.Require().NoError(err)
	s.Require().NoError(conn.WriteJSON(env))
}

func (s *GatewaySuite) read(conn *websocket.Conn) envelope {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	var env envelope
	s.Require().NoError(conn.ReadJSON(&env))
	return env
}

func (s *GatewaySuite) readRace(conn *websocket.Conn) *model.Race {
	env := s.read(conn)
	s.Require().Equal(model.EventRaceUpdate, env.Type, "payload: %s", env.Data)
	var r model.Race
	s.Require().NoError(json.Unmarshal(env.Data, &r))
	return &r
}

func (s *GatewaySuite) readError(conn *websocket.Conn) string {
	env := s.read(conn)
	s.Require().Equal(model.EventError, env.Type, "payload: %s", env.Data)
	var payload model.ErrorPayload
	s.Require().NoError(json.Unmarshal(env.Data, &payload))
	return payload.Message
}

func (s *GatewaySuite) expectSilence(conn *websocket.Conn) {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond)))
	_, data, err := conn.ReadMessage()
	s.Error(err, "unexpected message: %s", data)
}

func (s *GatewaySuite) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Require().NoError(s.clock.BlockUntilContext(ctx, 1))
	s.clock.Advance(time.Second)
}

// joinPair connects two clients into the same race and drains the countdown start
func (s *GatewaySuite) joinPair() (*websocket.Conn, *websocket.Conn, *model.Race) {
	alice := s.dial()
	s.send(alice, model.EventJoinRace, model.JoinRacePayload{PlayerName: "Alice"})
	s.readRace(alice)

	bob := s.dial()
	s.send(bob, model.EventJoinRace, model.JoinRacePayload{PlayerName: "Bob"})

	r := s.readRace(alice)
	s.Equal(model.RaceStatusCountdown, r.Status)
	s.readRace(bob)
	return alice, bob, r
}

func (s *GatewaySuite) TestJoinSendsWaitingRace() {
	conn := s.dial()
	s.send(conn, model.EventJoinRace, model.JoinRacePayload{PlayerName: "Alice"})

	r := s.readRace(conn)
	s.Equal(model.RaceStatusWaiting, r.Status)
	s.NotEmpty(r.Text)
	s.Require().Len(r.Players, 1)
	s.Equal("Alice", r.Players[0].Name)
	s.NotEmpty(r.Players[0].ID)
	s.Nil(r.Countdown)
}

func (s *GatewaySuite) TestJoinAcceptsDisplayNameAlias() {
	conn := s.dial()
	s.send(conn, model.EventJoinRace, map[string]string{"displayName": "Zed"})

	r := s.readRace(conn)
	s.Equal("Zed", r.Players[0].Name)
}

func (s *GatewaySuite) TestSecondPlayerStartsCountdown() {
	alice, bob, r := s.joinPair()

	s.Equal(3, r.CountdownValue())
	s.Len(r.Players, 2)
	s.Equal([]string{"Alice", "Bob"}, []string{r.Players[0].Name, r.Players[1].Name})

	for _, want := range []int{2, 1} {
		s.tick()
		s.Equal(want, s.readRace(alice).CountdownValue())
		s.Equal(want, s.readRace(bob).CountdownValue())
	}

	s.tick()
	for _, conn := range []*websocket.Conn{alice, bob} {
		start := s.read(conn)
		s.Equal(model.EventRaceStart, start.Type)
		s.JSONEq(`{}`, string(start.Data))

		racing := s.readRace(conn)
		s.Equal(model.RaceStatusRacing, racing.Status)
		s.Equal(0, racing.CountdownValue())
	}
}

func (s *GatewaySuite) TestBackToBackJoinsEachSeeThemselves() {
	names := []string{"Alice", "Bob", "Carol"}
	conns := make([]*websocket.Conn, len(names))
	for i := range names {
		conns[i] = s.dial()
	}
	for i, name := range names {
		s.send(conns[i], model.EventJoinRace, model.JoinRacePayload{PlayerName: name})
	}

	for i, name := range names {
		r := s.readRace(conns[i])
		joined := make([]string, len(r.Players))
		for j, p := range r.Players {
			joined[j] = p.Name
		}
		s.Contains(joined, name)
	}

	races, err := s.races.ListRaces(context.Background())
	s.Require().NoError(err)
	s.Require().Len(races, 2)
	s.Equal(model.RaceStatusCountdown, races[0].Status)
	s.Len(races[0].Players, 2)
	s.Equal(model.RaceStatusWaiting, races[1].Status)
	s.Len(races[1].Players, 1)
}

func (s *GatewaySuite) TestProgressIsBroadcast() {
	alice, bob, _ := s.joinPair()

	s.send(alice, model.EventUpdateProgress, map[string]any{"progress": 42.6, "wpm": 61.2, "finished": false})

	for _, conn := range []*websocket.Conn{alice, bob} {
		r := s.readRace(conn)
		s.Equal(43, r.Players[0].Progress)
		s.Equal(61, r.Players[0].WPM)
		s.Equal(0, r.Players[1].Progress)
	}
}

func (s *GatewaySuite) TestFinishEndsRaceForEveryone() {
	alice, bob, _ := s.joinPair()

	s.send(bob, model.EventUpdateProgress, map[string]any{"progress": 100, "wpm": 80, "finished": true})

	for _, conn := range []*websocket.Conn{alice, bob} {
		r := s.readRace(conn)
		s.Equal(model.RaceStatusFinished, r.Status)
		s.True(r.Players[1].Finished)
	}
}

func (s *GatewaySuite) TestLeaveNotifiesRemainingPlayers() {
	alice, bob, _ := s.joinPair()

	s.send(alice, model.EventLeaveRace, nil)

	r := s.readRace(bob)
	s.Require().Len(r.Players, 1)
	s.Equal("Bob", r.Players[0].Name)

	// The leaver is no longer in the room
	s.expectSilence(alice)
}

func (s *GatewaySuite) TestDisconnectActsAsLeave() {
	alice, bob, r := s.joinPair()

	s.Require().NoError(alice.Close())

	updated := s.readRace(bob)
	s.Equal(r.ID, updated.ID)
	s.Require().Len(updated.Players, 1)
	s.Equal("Bob", updated.Players[0].Name)
	s.Eventually(func() bool { return s.gateway.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)
}

func (s *GatewaySuite) TestLastPlayerLeavingDeletesRace() {
	conn := s.dial()
	s.send(conn, model.EventJoinRace, model.JoinRacePayload{PlayerName: "Alice"})
	r := s.readRace(conn)

	s.send(conn, model.EventLeaveRace, nil)

	s.Eventually(func() bool { return s.hubs.Get(r.ID) == nil }, time.Second, 5*time.Millisecond)
	_, err := s.storage.GetRace(context.Background(), r.ID)
	s.ErrorIs(err, model.ErrRaceNotFound)
	s.expectSilence(conn)
}

func (s *GatewaySuite) TestRejoinMovesToNewRace() {
	conn := s.dial()
	s.send(conn, model.EventJoinRace, model.JoinRacePayload{PlayerName: "Alice"})
	first := s.readRace(conn)

	s.send(conn, model.EventJoinRace, model.JoinRacePayload{PlayerName: "Alice"})
	second := s.readRace(conn)

	s.NotEqual(first.ID, second.ID)
	s.Len(second.Players, 1)

	races, err := s.races.ListRaces(context.Background())
	s.Require().NoError(err)
	s.Len(races, 1)
}

func (s *GatewaySuite) TestUnknownEventRepliesToSenderOnly() {
	alice, bob, _ := s.joinPair()

	s.send(alice, "danceParty", nil)

	s.Contains(s.readError(alice), "unknown event type")
	s.expectSilence(bob)
}

func (s *GatewaySuite) TestMalformedMessage() {
	conn := s.dial()
	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte("{not json")))

	s.Contains(s.readError(conn), "malformed message")
}

func (s *GatewaySuite) TestInvalidProgressPayload() {
	alice, _, _ := s.joinPair()

	s.send(alice, model.EventUpdateProgress, map[string]any{"wpm": 50})
	s.Contains(s.readError(alice), "invalid progress update")

	s.send(alice, model.EventUpdateProgress, "fast")
	s.Contains(s.readError(alice), "invalid progress update")
}

func (s *GatewaySuite) TestProgressWithoutRaceIsIgnored() {
	conn := s.dial()
	s.send(conn, model.EventUpdateProgress, map[string]any{"progress": 10})
	s.send(conn, "ping", nil)

	// The first reply is the error for "ping": the progress update produced nothing
	s.Contains(s.readError(conn), "unknown event type")
}

func (s *GatewaySuite) TestEventsAreMirrored() {
	s.joinPair()

	s.Eventually(func() bool {
		types := s.publisher.types()
		return len(types) == 2 &&
			types[0] == model.EventRaceUpdate &&
			types[1] == model.EventRaceUpdate
	}, time.Second, 5*time.Millisecond)
}

func (s *GatewaySuite) TestDisallowedOriginIsRejected() {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://typerace.example"}
	logger := testutil.NopLogger()
	gw := New(s.races, s.hubs, hub.NewBroadcaster(s.hubs, logger), events.NewMirror(events.NopPublisher{}, s.clock, logger), cfg, logger)
	srv := httptest.NewServer(gw)
	defer srv.Close()
	defer gw.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	s.Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusForbidden, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://typerace.example"}})
	s.Require().NoError(err)
	_ = conn.Close()
}
