package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <race-id>",
		Short: "Stream live events from a race",
		Long: `Connect to the race's SSE endpoint and stream events in real-time.

Events include:
  - connected: Stream is open
  - raceUpdate: Full race state (players, progress, countdown)
  - raceStart: The countdown reached zero

The stream ends when the race is removed. Press Ctrl+C to disconnect.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			return streamEvents(ctx, cfg.ServerURL, args[0], out)
		},
	}

	return cmd
}

// SSEEvent represents a parsed SSE event
type SSEEvent struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
	Data  string    `json:"data"`
}

func streamEvents(ctx context.Context, serverURL, raceID string, out *Output) error {
	streamURL := strings.TrimSuffix(serverURL, "/") + "/api/v1/races/" + url.PathEscape(raceID) + "/events"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	httpClient := &http.Client{
		Timeout: 0, // No timeout for SSE
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if !out.JSON() {
		out.PrintMessage("Watching race " + raceID)
	}

	err = readEvents(resp.Body, func(e SSEEvent) {
		out.Print(e)
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("stream error: %w", err)
	}

	if !out.JSON() {
		out.PrintMessage("Disconnected")
	}
	return nil
}

// readEvents parses an SSE stream, calling emit once per complete event.
// Comments and retry hints are skipped.
func readEvents(r io.Reader, emit func(SSEEvent)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var currentEvent string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event: "):
			currentEvent = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		case line == "":
			// End of event
			if currentEvent != "" {
				emit(SSEEvent{
					Time:  time.Now(),
					Event: currentEvent,
					Data:  strings.Join(dataLines, "\n"),
				})
			}
			currentEvent = ""
			dataLines = nil
		}
	}

	return scanner.Err()
}
