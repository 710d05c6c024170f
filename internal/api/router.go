package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/mcoot/typerace-go/internal/api/handler"
	"github.com/mcoot/typerace-go/internal/api/middleware"
	"github.com/mcoot/typerace-go/internal/api/response"
	"github.com/mcoot/typerace-go/internal/hub"
	"github.com/mcoot/typerace-go/internal/services/race"
)

// Gateway is the websocket endpoint players connect to
type Gateway interface {
	http.Handler
	handler.ConnectionCounter
}

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger         *slog.Logger
	RaceController *race.Controller
	HubManager     *hub.Manager
	Gateway        Gateway  // Optional; /ws is not mounted without it
	AllowedOrigins []string // Empty allows any origin
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// Create handlers
	raceHandler := handler.NewRaceHandler(cfg.RaceController, cfg.HubManager)
	var connections handler.ConnectionCounter
	if cfg.Gateway != nil {
		connections = cfg.Gateway
	}
	statsHandler := handler.NewStatsHandler(cfg.RaceController, cfg.HubManager, connections)

	// Create middleware
	loggingMiddleware := middleware.Logging(cfg.Logger)
	recoveryMiddleware := middleware.Recovery(cfg.Logger)

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(recoveryMiddleware)
	api.Use(loggingMiddleware)

	// Race routes (read-only; races are joined over the websocket)
	api.HandleFunc("/races", raceHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/races/{id}", raceHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/races/{id}/events", raceHandler.Events).Methods(http.MethodGet)

	api.HandleFunc("/stats", statsHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// Websocket endpoint; recovery is left to the gateway since the connection is hijacked
	if cfg.Gateway != nil {
		r.Handle("/ws", loggingMiddleware(cfg.Gateway)).Methods(http.MethodGet)
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedOrigins: origins,
		AllowedHeaders: []string{"*"},
	})

	return c.Handler(r)
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
