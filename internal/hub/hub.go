package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/typerace-go/internal/model"
)

// Hub fans messages out to every member of a single race room
type Hub struct {
	raceID  model.RaceID
	clients map[*Client]bool
	mu      sync.RWMutex
	logger  *slog.Logger

	// Channels for managing clients
	register   chan *Client
	unregister chan *Client
	broadcast  chan Message
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new Hub for a race
func NewHub(raceID model.RaceID, logger *slog.Logger) *Hub {
	return &Hub{
		raceID:     raceID,
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("race_id", string(raceID))),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Message, 256),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Debug("hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			clientCount := len(h.clients)
			h.mu.Unlock()
			h.logger.Debug("client registered",
				slog.String("client_id", client.id),
				slog.Int("total_clients", clientCount))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				clientCount := len(h.clients)
				h.mu.Unlock()
				h.logger.Debug("client unregistered",
					slog.String("client_id", client.id),
					slog.Duration("connection_duration", time.Since(client.connectedAt)),
					slog.Int("total_clients", clientCount))
			} else {
				h.mu.Unlock()
			}

		case message := <-h.broadcast:
			h.mu.RLock()
			sentCount := 0
			droppedCount := 0
			for client := range h.clients {
				if client.Deliver(message) {
					sentCount++
				} else {
					droppedCount++
					h.logger.Warn("message dropped - client buffer full",
						slog.String("client_id", client.id))
				}
			}
			h.mu.RUnlock()
			if droppedCount > 0 {
				h.logger.Warn("broadcast partial failure",
					slog.String("type", string(message.Type)),
					slog.Int("sent", sentCount),
					slog.Int("dropped", droppedCount))
			}

		case <-h.done:
			h.mu.Lock()
			clientCount := len(h.clients)
			clear(h.clients)
			h.mu.Unlock()
			h.logger.Debug("hub stopped", slog.Int("disconnected_clients", clientCount))
			return
		}
	}
}

// RaceID returns the race this hub serves
func (h *Hub) RaceID() model.RaceID {
	return h.raceID
}

// Register adds a client to the hub. Once it returns, later broadcasts reach the client.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub. Once it returns, the client receives nothing more.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a message for all clients
func (h *Hub) Broadcast(message Message) {
	select {
	case <-h.done:
		return
	default:
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast dropped - hub buffer full",
			slog.String("type", string(message.Type)))
	}
}

// Close shuts down the hub. Members are dropped but their send channels stay open.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// Done is closed once the hub has been shut down
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats summarizes all rooms
type Stats struct {
	Rooms   int `json:"rooms"`
	Clients int `json:"connections"`
}

// Manager manages hubs for all races.
// A race's hub is opened when its first player joins and removed when the race is deleted.
type Manager struct {
	hubs   map[model.RaceID]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewManager creates a new Manager
func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		hubs:   make(map[model.RaceID]*Hub),
		logger: logger.With(slog.String("component", "hub")),
	}
}

// GetOrCreate returns the hub for a race, creating one if it doesn't exist
func (m *Manager) GetOrCreate(raceID model.RaceID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[raceID]; ok {
		return hub
	}

	hub := NewHub(raceID, m.logger)
	m.hubs[raceID] = hub
	go hub.Run()
	return hub
}

// Get returns the hub for a race, or nil if it doesn't exist
func (m *Manager) Get(raceID model.RaceID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[raceID]
}

// Remove removes and closes a hub
func (m *Manager) Remove(raceID model.RaceID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[raceID]; ok {
		hub.Close()
		delete(m.hubs, raceID)
		m.logger.Info("hub removed", slog.String("race_id", string(raceID)))
	}
}

// Stats returns the number of rooms and members across all hubs
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{Rooms: len(m.hubs)}
	for _, hub := range m.hubs {
		stats.Clients += hub.ClientCount()
	}
	return stats
}

// Close shuts down every hub
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, id)
	}
}
