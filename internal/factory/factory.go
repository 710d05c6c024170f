package factory

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mcoot/typerace-go/internal/dependencies/clock"
	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/events"
	"github.com/mcoot/typerace-go/internal/gateway"
	"github.com/mcoot/typerace-go/internal/hub"
	"github.com/mcoot/typerace-go/internal/services/race"
	"github.com/mcoot/typerace-go/internal/services/text"
	"github.com/mcoot/typerace-go/internal/storage"
	"github.com/mcoot/typerace-go/internal/storage/memory"
	redisstorage "github.com/mcoot/typerace-go/internal/storage/redis"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock     clock.Clock
	Random    random.Random
	Publisher events.Publisher

	// Services
	TextService    *text.Service
	RaceController *race.Controller
	HubManager     *hub.Manager
	Broadcaster    *hub.Broadcaster
	Mirror         *events.Mirror
	Gateway        *gateway.Gateway

	closers []io.Closer
	logger  *slog.Logger
}

// Config holds configuration for the application factory
type Config struct {
	// TextsPath is a YAML passage library (optional)
	// If empty, the built-in library is loaded
	TextsPath string
	// RaceConfig tunes matchmaking and the countdown (optional)
	// Zero fields fall back to race.DefaultConfig()
	RaceConfig race.Config
	// GatewayConfig holds websocket settings (optional)
	// If zero value, defaults to gateway.DefaultConfig()
	GatewayConfig gateway.Config
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory" or "redis")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType is "redis")
	RedisConfig *redisstorage.Config
	// NATSConfig enables mirroring race events to NATS (optional)
	NATSConfig *events.NATSConfig
}

// New creates a new application with all dependencies wired
func New(cfg Config) (*App, error) {
	// Use no-op logger if not provided
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	// Create storage based on type
	var store storage.Storage
	var closers []io.Closer
	storageType := cfg.StorageType
	if storageType == "" {
		storageType = StorageTypeMemory
	}

	switch storageType {
	case StorageTypeMemory:
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		store = redisStore
		closers = append(closers, redisStore)
	default:
		return nil, errors.New("invalid StorageType: must be 'memory' or 'redis'")
	}

	// Event mirroring is off unless NATS is configured
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.NATSConfig != nil {
		natsPublisher, err := events.NewNATSPublisher(*cfg.NATSConfig, logger)
		if err != nil {
			closeAll(closers, logger)
			return nil, err
		}
		publisher = natsPublisher
	}

	// Create external dependencies
	clk := clock.New()
	rnd := random.New()

	gatewayCfg := cfg.GatewayConfig
	if gatewayCfg.MaxMessageSize == 0 {
		gatewayCfg = gateway.DefaultConfig()
	}

	app := newWithDependencies(store, clk, rnd, publisher, cfg.RaceConfig, gatewayCfg, logger)
	app.closers = closers

	if cfg.TextsPath != "" {
		err := app.TextService.LoadFromFile(cfg.TextsPath)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("load texts: %w", err)
		}
	} else if err := app.TextService.LoadDefaults(); err != nil {
		app.Close()
		return nil, fmt.Errorf("load default texts: %w", err)
	}

	return app, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	clk clock.Clock,
	rnd random.Random,
	publisher events.Publisher,
	raceCfg race.Config,
	gatewayCfg gateway.Config,
	logger *slog.Logger,
) *App {
	textService := text.New(rnd)
	raceController := race.NewController(store, textService, clk, rnd, raceCfg, logger)
	hubManager := hub.NewManager(logger)
	broadcaster := hub.NewBroadcaster(hubManager, logger)
	mirror := events.NewMirror(publisher, clk, logger)
	gw := gateway.New(raceController, hubManager, broadcaster, mirror, gatewayCfg, logger)

	return &App{
		Storage:        store,
		Clock:          clk,
		Random:         rnd,
		Publisher:      publisher,
		TextService:    textService,
		RaceController: raceController,
		HubManager:     hubManager,
		Broadcaster:    broadcaster,
		Mirror:         mirror,
		Gateway:        gw,
		logger:         logger,
	}
}

// Close stops background work and releases external connections.
// Connections close first so their leave handling still reaches storage.
func (a *App) Close() {
	a.Gateway.Close()
	a.RaceController.Close()
	a.HubManager.Close()
	if err := a.Mirror.Close(); err != nil {
		a.logger.Warn("failed to close event publisher", slog.String("error", err.Error()))
	}
	closeAll(a.closers, a.logger)
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for _, c := range closers {
		if err := c.Close(); err != nil {
			logger.Warn("failed to close resource", slog.String("error", err.Error()))
		}
	}
}
