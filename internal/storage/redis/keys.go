package redis

import (
	"fmt"

	"github.com/mcoot/typerace-go/internal/model"
)

// Key prefix for all race data
const keyPrefix = "typerace"

// raceKey returns the Redis key holding a race's JSON
func raceKey(id model.RaceID) string {
	return fmt.Sprintf("%s:race:%s", keyPrefix, id)
}

// racesIndexKey returns the sorted set of race IDs, scored by insertion sequence
func racesIndexKey() string {
	return fmt.Sprintf("%s:idx:races", keyPrefix)
}

// raceSequenceKey returns the counter used to score new races in the index
func raceSequenceKey() string {
	return fmt.Sprintf("%s:seq:races", keyPrefix)
}
