package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/typerace-go/internal/model"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeRaceNotFound       = "RACE_NOT_FOUND"
	CodePlayerNotInRace    = "PLAYER_NOT_IN_RACE"
	CodeAlreadyInRace      = "ALREADY_IN_RACE"
	CodeInvalidDisplayName = "INVALID_DISPLAY_NAME"
	CodeInvalidDifficulty  = "INVALID_DIFFICULTY"
	CodeTextsUnavailable   = "TEXTS_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status an error maps to
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, model.ErrRaceNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeRaceNotFound, "Race not found"}}
	case errors.Is(err, model.ErrPlayerNotInRace):
		return &httpError{http.StatusNotFound, APIError{CodePlayerNotInRace, "Player is not in this race"}}
	case errors.Is(err, model.ErrAlreadyInRace):
		return &httpError{http.StatusConflict, APIError{CodeAlreadyInRace, "Already in this race"}}
	case errors.Is(err, model.ErrInvalidDisplayName):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidDisplayName, "Display name contains invalid characters"}}
	case errors.Is(err, model.ErrInvalidDifficulty):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidDifficulty, "Difficulty must be easy, medium or hard"}}
	case errors.Is(err, model.ErrInvalidProgress):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, "Invalid progress update"}}
	case errors.Is(err, model.ErrTextsNotLoaded):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeTextsUnavailable, "No race texts are loaded"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
