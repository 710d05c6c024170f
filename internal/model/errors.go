package model

import "errors"

// Common errors used across the application
var (
	// Race errors
	ErrRaceNotFound    = errors.New("race not found")
	ErrPlayerNotInRace = errors.New("player is not in race")
	ErrAlreadyInRace   = errors.New("player is already in race")

	// Input errors
	ErrInvalidDisplayName = errors.New("invalid display name")
	ErrInvalidDifficulty  = errors.New("invalid difficulty")
	ErrInvalidProgress    = errors.New("invalid progress update")
	ErrUnknownEvent       = errors.New("unknown event type")

	// Text library errors
	ErrTextsNotLoaded = errors.New("text library not loaded")
)
