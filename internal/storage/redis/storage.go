package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Storage{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) SaveRace(ctx context.Context, race *model.Race) error {
	data, err := json.Marshal(race)
	if err != nil {
		return err
	}

	seq, err := s.client.Incr(ctx, raceSequenceKey()).Result()
	if err != nil {
		return err
	}

	// NX keeps the original position when an existing race is overwritten
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, raceKey(race.ID), data, s.cfg.RaceTTL)
	pipe.ZAddNX(ctx, racesIndexKey(), redis.Z{Score: float64(seq), Member: string(race.ID)})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) GetRace(ctx context.Context, id model.RaceID) (*model.Race, error) {
	data, err := s.client.Get(ctx, raceKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrRaceNotFound
		}
		return nil, err
	}

	var race model.Race
	if err := json.Unmarshal(data, &race); err != nil {
		return nil, err
	}
	return &race, nil
}

func (s *Storage) DeleteRace(ctx context.Context, id model.RaceID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, raceKey(id))
	pipe.ZRem(ctx, racesIndexKey(), string(id))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) ListRaces(ctx context.Context) ([]*model.Race, error) {
	ids, err := s.client.ZRange(ctx, racesIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []*model.Race{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = raceKey(model.RaceID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	races := make([]*model.Race, 0, len(values))
	var expired []any
	for i, val := range values {
		str, ok := val.(string)
		if !ok {
			// Race value expired but the index entry survived
			expired = append(expired, ids[i])
			continue
		}
		var race model.Race
		if err := json.Unmarshal([]byte(str), &race); err != nil {
			continue // Skip invalid data
		}
		races = append(races, &race)
	}

	if len(expired) > 0 {
		if err := s.client.ZRem(ctx, racesIndexKey(), expired...).Err(); err != nil {
			return nil, err
		}
	}

	return races, nil
}
