package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mcoot/typerace-go/internal/api"
	"github.com/mcoot/typerace-go/internal/events"
	"github.com/mcoot/typerace-go/internal/factory"
	"github.com/mcoot/typerace-go/internal/gateway"
	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/services/race"
	redisstorage "github.com/mcoot/typerace-go/internal/storage/redis"
)

// config is everything the server reads from its environment
type config struct {
	Server         api.ServerConfig
	App            factory.Config
	AllowedOrigins []string
	LogLevel       slog.Level
}

func loadConfig() (config, error) {
	var cfg config

	cfg.Server = api.DefaultServerConfig()
	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	port, err := getEnvAsInt("PORT", cfg.Server.Port)
	if err != nil {
		return cfg, err
	}
	cfg.Server.Port = port

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return cfg, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	cfg.AllowedOrigins = splitList(os.Getenv("ALLOWED_ORIGINS"))

	cfg.App.StorageType = getEnv("STORAGE_TYPE", factory.StorageTypeMemory)
	cfg.App.TextsPath = os.Getenv("TEXTS_FILE")

	// Configure Redis if storage type is redis
	if cfg.App.StorageType == factory.StorageTypeRedis {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			return cfg, fmt.Errorf("REDIS_URL required when STORAGE_TYPE=redis")
		}
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = redisURL
		if redisCfg.RaceTTL, err = getEnvAsDuration("RACE_TTL", redisCfg.RaceTTL); err != nil {
			return cfg, err
		}
		cfg.App.RedisConfig = &redisCfg
	}

	// Event mirroring is enabled by setting NATS_URL
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		natsCfg := events.DefaultNATSConfig()
		natsCfg.URL = natsURL
		natsCfg.SubjectPrefix = getEnv("NATS_SUBJECT_PREFIX", natsCfg.SubjectPrefix)
		cfg.App.NATSConfig = &natsCfg
	}

	raceCfg := race.DefaultConfig()
	if raceCfg.MinPlayers, err = getEnvAsInt("MIN_PLAYERS", raceCfg.MinPlayers); err != nil {
		return cfg, err
	}
	if raceCfg.MinPlayers < 1 {
		return cfg, fmt.Errorf("MIN_PLAYERS must be at least 1, got %d", raceCfg.MinPlayers)
	}
	if raceCfg.CountdownFrom, err = getEnvAsInt("COUNTDOWN_FROM", raceCfg.CountdownFrom); err != nil {
		return cfg, err
	}
	if raceCfg.CountdownFrom < 1 {
		return cfg, fmt.Errorf("COUNTDOWN_FROM must be at least 1, got %d", raceCfg.CountdownFrom)
	}
	raceCfg.Difficulty = model.Difficulty(getEnv("RACE_DIFFICULTY", string(raceCfg.Difficulty)))
	if !raceCfg.Difficulty.IsValid() {
		return cfg, fmt.Errorf("RACE_DIFFICULTY: %w", model.ErrInvalidDifficulty)
	}
	cfg.App.RaceConfig = raceCfg

	gatewayCfg := gateway.DefaultConfig()
	gatewayCfg.AllowedOrigins = cfg.AllowedOrigins
	cfg.App.GatewayConfig = gatewayCfg

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return intValue, nil
}

func getEnvAsDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
