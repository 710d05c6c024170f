package handler

import (
	"net/http"

	"github.com/mcoot/typerace-go/internal/api/response"
	"github.com/mcoot/typerace-go/internal/hub"
	"github.com/mcoot/typerace-go/internal/services/race"
)

// ConnectionCounter reports the number of open player connections
type ConnectionCounter interface {
	ConnectionCount() int
}

// StatsHandler serves server activity counters
type StatsHandler struct {
	raceController *race.Controller
	hubManager     *hub.Manager
	connections    ConnectionCounter
}

// NewStatsHandler creates a new stats handler. connections may be nil.
func NewStatsHandler(raceController *race.Controller, hubManager *hub.Manager, connections ConnectionCounter) *StatsHandler {
	return &StatsHandler{
		raceController: raceController,
		hubManager:     hubManager,
		connections:    connections,
	}
}

// Get handles GET /api/v1/stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	races, err := h.raceController.ListRaces(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	stats := response.Stats{
		ActiveRaces: len(races),
		ByStatus:    make(map[string]int),
		Countdowns:  h.raceController.ActiveCountdowns(),
	}
	for _, rc := range races {
		stats.ByStatus[string(rc.Status)]++
	}

	roomStats := h.hubManager.Stats()
	stats.Rooms = roomStats.Rooms
	stats.RoomMembers = roomStats.Clients

	if h.connections != nil {
		stats.Connections = h.connections.ConnectionCount()
	}

	response.JSON(w, http.StatusOK, stats)
}
