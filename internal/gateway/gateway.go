package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mcoot/typerace-go/internal/events"
	"github.com/mcoot/typerace-go/internal/hub"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/race"
)

// Gateway accepts websocket connections and relays their race messages
type Gateway struct {
	races       *race.Controller
	hubs        *hub.Manager
	broadcaster *hub.Broadcaster
	mirror      *events.Mirror
	upgrader    websocket.Upgrader
	config      Config
	logger      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.RWMutex
	connections map[model.ConnectionID]*Connection
	wg          sync.WaitGroup
}

// Ensure Gateway receives race notifications
var _ race.Notifier = (*Gateway)(nil)

// New creates a new Gateway
func New(
	races *race.Controller,
	hubs *hub.Manager,
	broadcaster *hub.Broadcaster,
	mirror *events.Mirror,
	config Config,
	logger *slog.Logger,
) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		races:       races,
		hubs:        hubs,
		broadcaster: broadcaster,
		mirror:      mirror,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.checkOrigin,
		},
		config:      config,
		logger:      logger.With(slog.String("component", "gateway")),
		ctx:         ctx,
		cancel:      cancel,
		connections: make(map[model.ConnectionID]*Connection),
	}
}

// ServeHTTP upgrades the request to a websocket connection
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if g.ctx.Err() != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied
		g.logger.Warn("failed to upgrade websocket connection", slog.Any("error", err))
		return
	}

	c := &Connection{
		id:          model.ConnectionID(uuid.New().String()),
		conn:        conn,
		gateway:     g,
		done:        make(chan struct{}),
		connectedAt: time.Now(),
	}
	c.client = hub.NewClient(string(c.id))

	g.mu.Lock()
	g.connections[c.id] = c
	g.mu.Unlock()

	g.wg.Add(2)
	go c.writePump()
	go c.readPump()

	g.logger.Info("websocket connection established",
		slog.String("connection_id", string(c.id)),
		slog.String("remote_addr", r.RemoteAddr))
}

// PlayerJoined opens the race's room if needed and adds the connection to it
func (g *Gateway) PlayerJoined(id model.RaceID, connID model.ConnectionID) {
	room := g.hubs.GetOrCreate(id)

	g.mu.RLock()
	c, ok := g.connections[connID]
	g.mu.RUnlock()
	if ok {
		room.Register(c.client)
	}
}

// RaceDeleted closes the room of a race that lost its last player
func (g *Gateway) RaceDeleted(id model.RaceID) {
	g.hubs.Remove(id)
}

// RaceUpdated broadcasts the race to its room and mirrors it
func (g *Gateway) RaceUpdated(r *model.Race) {
	g.broadcaster.BroadcastRaceUpdate(r)
	g.mirror.RaceUpdated(g.ctx, r)
}

// RaceStarted announces the start to the race's room and mirrors it
func (g *Gateway) RaceStarted(id model.RaceID) {
	g.broadcaster.BroadcastRaceStart(id)
	g.mirror.RaceStarted(g.ctx, id)
}

// ConnectionCount returns the number of open websocket connections
func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.connections)
}

// Close disconnects every client and waits for their cleanup to finish
func (g *Gateway) Close() {
	g.cancel()

	g.mu.RLock()
	for _, c := range g.connections {
		_ = c.conn.Close()
	}
	g.mu.RUnlock()

	g.wg.Wait()
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	delete(g.connections, c.id)
	g.mu.Unlock()
}

// join places the connection into a race, leaving any race it is already in
func (g *Gateway) join(c *Connection, payload model.JoinRacePayload) error {
	if c.raceID != "" {
		g.leave(c)
	}

	r, err := g.races.Join(g.ctx, c.id, payload.Name(), g)
	if r != nil {
		c.raceID = r.ID
	}
	return err
}

// leave removes the connection from its current race, if any
func (g *Gateway) leave(c *Connection) {
	raceID := c.raceID
	if raceID == "" {
		return
	}
	c.raceID = ""

	if h := g.hubs.Get(raceID); h != nil {
		h.Unregister(c.client)
	}

	if _, err := g.races.Leave(g.ctx, raceID, c.id, g); err != nil {
		g.logger.Error("failed to leave race",
			slog.String("race_id", string(raceID)),
			slog.String("connection_id", string(c.id)),
			slog.Any("error", err))
	}
}

// updateProgress records progress for the connection's current race
func (g *Gateway) updateProgress(c *Connection, update model.ProgressUpdate) error {
	if c.raceID == "" {
		return nil
	}

	_, err := g.races.UpdateProgress(g.ctx, c.raceID, c.id, update, g)
	return err
}
