package hub

import (
	"net/http"
	"strings"
	"time"
)

const (
	// Time between keepalive comments
	keepalivePeriod = 30 * time.Second
)

// FormatSSE formats an SSE message with event name and data.
// Multi-line data is properly formatted with "data: " prefix on each line.
func FormatSSE(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: " + eventName + "\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: " + line + "\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits a string into lines, handling various line endings
func splitLines(s string) []string {
	var lines []string
	var current strings.Builder
	for _, r := range s {
		if r == '\n' {
			lines = append(lines, current.String())
			current.Reset()
		} else if r != '\r' {
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	if len(lines) == 0 {
		lines = append(lines, "")
	}
	return lines
}

// ServeSSE streams a race room to a spectator until the request ends or the hub closes.
// Initial messages are written before any broadcast.
func ServeSSE(w http.ResponseWriter, r *http.Request, hub *Hub, clientID string, initial ...Message) {
	client := NewClient(clientID)
	for _, msg := range initial {
		client.Deliver(msg)
	}
	hub.Register(client)
	ServeClient(w, r, hub, client)
}

// ServeClient streams the messages of a client already registered with the hub.
// The client is unregistered once the stream ends.
func ServeClient(w http.ResponseWriter, r *http.Request, hub *Hub, client *Client) {
	defer hub.Unregister(client)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	_, _ = w.Write([]byte("retry: 3000\n\n"))
	_, _ = w.Write([]byte("event: connected\ndata: {\"status\":\"connected\"}\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(keepalivePeriod)
	defer ticker.Stop()

	for {
		select {
		case message := <-client.Messages():
			if _, err := w.Write(FormatSSE(string(message.Type), string(message.Payload))); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-hub.Done():
			return

		case <-r.Context().Done():
			return
		}
	}
}
