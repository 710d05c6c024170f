package memory

import (
	"context"
	"sync"

	"github.com/mcoot/typerace-go/internal/model"
	"github.com/mcoot/typerace-go/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	races map[model.RaceID]*model.Race
	order []model.RaceID // insertion order of live races
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		races: make(map[model.RaceID]*model.Race),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

func (s *Storage) SaveRace(ctx context.Context, race *model.Race) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.races[race.ID]; !ok {
		s.order = append(s.order, race.ID)
	}
	s.races[race.ID] = race.Clone()
	return nil
}

func (s *Storage) GetRace(ctx context.Context, id model.RaceID) (*model.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	race, ok := s.races[id]
	if !ok {
		return nil, model.ErrRaceNotFound
	}
	return race.Clone(), nil
}

func (s *Storage) DeleteRace(ctx context.Context, id model.RaceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.races[id]; !ok {
		return nil
	}
	delete(s.races, id)
	for i, raceID := range s.order {
		if raceID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Storage) ListRaces(ctx context.Context) ([]*model.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	races := make([]*model.Race, 0, len(s.order))
	for _, id := range s.order {
		races = append(races, s.races[id].Clone())
	}
	return races, nil
}
