package gateway

import (
	"net/http"
	"slices"
	"time"
)

// Config holds configuration for websocket connections
type Config struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration // How long to wait for a pong
	PingInterval    time.Duration // Must be less than ReadTimeout
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int

	// AllowedOrigins restricts browser origins; empty or "*" allows all
	AllowedOrigins []string
}

// DefaultConfig returns default websocket configuration
func DefaultConfig() Config {
	return Config{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
}

// checkOrigin accepts requests without an Origin header (non-browser clients)
// and browser requests from an allowed origin
func (c Config) checkOrigin(r *http.Request) bool {
	if len(c.AllowedOrigins) == 0 || slices.Contains(c.AllowedOrigins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(c.AllowedOrigins, origin)
}
