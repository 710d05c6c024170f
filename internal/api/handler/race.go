package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mcoot/typerace-go/internal/api/request"
	"github.com/mcoot/typerace-go/internal/api/response"
	"github.com/mcoot/typerace-go/internal/hub"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/race"
)

// RaceHandler handles race-related endpoints
type RaceHandler struct {
	raceController *race.Controller
	hubManager     *hub.Manager
}

// NewRaceHandler creates a new race handler
func NewRaceHandler(raceController *race.Controller, hubManager *hub.Manager) *RaceHandler {
	return &RaceHandler{
		raceController: raceController,
		hubManager:     hubManager,
	}
}

// List handles GET /api/v1/races
func (h *RaceHandler) List(w http.ResponseWriter, r *http.Request) {
	query, err := request.ParseListRacesQuery(r.URL.Query())
	if err != nil {
		WriteError(w, NewInvalidRequestError(err.Error()))
		return
	}

	races, err := h.raceController.ListRaces(r.Context())
	if err != nil {
		WriteError(w, err)
		return
	}

	list := response.RaceList{Races: make([]response.RaceSummary, 0, len(races))}
	for _, rc := range races {
		if query.Matches(rc) {
			list.Races = append(list.Races, response.RaceSummaryFromModel(rc))
		}
	}

	response.JSON(w, http.StatusOK, list)
}

// Get handles GET /api/v1/races/{id}
func (h *RaceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.RaceID(mux.Vars(r)["id"])

	rc, err := h.raceController.GetRace(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RaceFromModel(rc))
}

// Events handles GET /api/v1/races/{id}/events
// Spectators receive the current state first, then every room broadcast.
// The snapshot is taken and the spectator joins the room in one step,
// so no update falls between them.
func (h *RaceHandler) Events(w http.ResponseWriter, r *http.Request) {
	id := model.RaceID(mux.Vars(r)["id"])
	client := hub.NewClient("spectator-" + uuid.NewString())

	var room *hub.Hub
	err := h.raceController.WithRace(r.Context(), id, func(rc *model.Race) error {
		// Rooms close with their race; a race without one has no live players
		room = h.hubManager.Get(id)
		if room == nil {
			return model.ErrRaceNotFound
		}

		snapshot, err := hub.NewMessage(model.EventRaceUpdate, rc)
		if err != nil {
			return err
		}
		client.Deliver(snapshot)
		room.Register(client)
		return nil
	})
	if err != nil {
		WriteError(w, err)
		return
	}

	hub.ServeClient(w, r, room, client)
}
