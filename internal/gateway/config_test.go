package gateway

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no restriction", allowed: nil, origin: "https://anywhere.example", want: true},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://anywhere.example", want: true},
		{name: "listed origin", allowed: []string{"http://localhost:3000"}, origin: "http://localhost:3000", want: true},
		{name: "unlisted origin", allowed: []string{"http://localhost:3000"}, origin: "https://evil.example", want: false},
		{name: "non-browser client", allowed: []string{"http://localhost:3000"}, origin: "", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.AllowedOrigins = tt.allowed

			req := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, cfg.checkOrigin(req))
		})
	}
}
