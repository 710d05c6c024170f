package storage

import (
	"context"

	"github.com/mcoot/typerace-go/internal/model"
)

// Storage defines the interface for race persistence.
// Implementations hand out copies: mutating a returned race has no effect until SaveRace.
type Storage interface {
	// SaveRace inserts or overwrites a race
	SaveRace(ctx context.Context, race *model.Race) error
	// GetRace returns model.ErrRaceNotFound when the race does not exist
	GetRace(ctx context.Context, id model.RaceID) (*model.Race, error)
	// DeleteRace removes a race; deleting an unknown race is not an error
	DeleteRace(ctx context.Context, id model.RaceID) error
	// ListRaces returns all races in insertion order
	ListRaces(ctx context.Context) ([]*model.Race, error)
}
