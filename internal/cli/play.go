package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

func newPlayCmd() *cobra.Command {
	var opts PlayOptions

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join a race and type automatically",
		Long: `Join the matchmaking queue over the websocket and race with an
automatic typist that types at a fixed words-per-minute rate.

The command exits once the race is finished. Press Ctrl+C to leave early.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			opts.Verbose = cfg.Verbose
			out := NewOutput(cfg.Output, cmd.OutOrStdout())
			result, err := Play(ctx, cfg.ServerURL, opts, clockwork.NewRealClock(), out)
			if err != nil {
				return err
			}
			out.Print(result)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "Display name (default: server assigned)")
	cmd.Flags().IntVar(&opts.WPM, "wpm", 60, "Typing speed in words per minute")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 500*time.Millisecond, "How often progress is reported")

	return cmd
}

// PlayOptions configures an automatic racer
type PlayOptions struct {
	Name     string
	WPM      int
	Interval time.Duration
	Verbose  bool // Print every race update
}

// PlayResult is the outcome of a race as seen by the racer
type PlayResult struct {
	RaceID   string `json:"race_id"`
	Status   string `json:"status"`
	Finished bool   `json:"finished"`
	Progress int    `json:"progress"`
	Winner   string `json:"winner,omitempty"`
}

// charsPerWord is the standard word length used for WPM
const charsPerWord = 5

// TypedProgress returns the percentage of a passage typed after elapsed at wpm
func TypedProgress(textLength, wpm int, elapsed time.Duration) int {
	if textLength <= 0 {
		return 100
	}
	typed := int64(wpm*charsPerWord) * int64(elapsed) / int64(time.Minute)
	progress := typed * 100 / int64(textLength)
	return int(max(0, min(progress, 100)))
}

type wsEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type racer struct {
	conn  *websocket.Conn
	opts  PlayOptions
	clock clockwork.Clock
	out   *Output

	race     Race
	started  bool
	progress int
	start    time.Time
}

// Play joins a race and reports progress until the race finishes or ctx ends
func Play(ctx context.Context, serverURL string, opts PlayOptions, clock clockwork.Clock, out *Output) (PlayResult, error) {
	if opts.WPM <= 0 {
		return PlayResult{}, errors.New("wpm must be positive")
	}
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}

	wsURL, err := websocketURL(serverURL)
	if err != nil {
		return PlayResult{}, err
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return PlayResult{}, fmt.Errorf("connection failed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	r := &racer{conn: conn, opts: opts, clock: clock, out: out}
	return r.run(ctx)
}

func (r *racer) run(ctx context.Context) (PlayResult, error) {
	if err := r.send("joinRace", map[string]string{"playerName": r.opts.Name}); err != nil {
		return PlayResult{}, err
	}

	readCtx, cancel := context.WithCancel(ctx)
	incoming := make(chan wsEnvelope)
	readErr := make(chan error, 1)
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		for {
			var env wsEnvelope
			if err := r.conn.ReadJSON(&env); err != nil {
				readErr <- err
				return
			}
			select {
			case incoming <- env:
			case <-readCtx.Done():
				return
			}
		}
	}()
	// Closing the connection unblocks a pending read
	defer func() {
		cancel()
		_ = r.conn.Close()
		<-readerDone
	}()

	ticker := r.clock.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case env := <-incoming:
			done, err := r.handle(env)
			if err != nil {
				return PlayResult{}, err
			}
			if done {
				return r.result(), nil
			}

		case <-ticker.Chan():
			if err := r.advance(); err != nil {
				return PlayResult{}, err
			}

		case err := <-readErr:
			return PlayResult{}, fmt.Errorf("connection lost: %w", err)

		case <-ctx.Done():
			_ = r.send("leaveRace", nil)
			_ = r.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return r.result(), nil
		}
	}
}

// handle applies a server message, reporting whether the race is over
func (r *racer) handle(env wsEnvelope) (bool, error) {
	switch env.Type {
	case "raceUpdate":
		var race Race
		if err := json.Unmarshal(env.Data, &race); err != nil {
			return false, fmt.Errorf("invalid race update: %w", err)
		}
		r.race = race
		if r.opts.Verbose && !r.out.JSON() {
			r.out.Print(race)
		}
		return race.Status == "finished", nil

	case "raceStart":
		r.started = true
		r.start = r.clock.Now()
		if !r.out.JSON() {
			r.out.PrintMessage(fmt.Sprintf("Race %s started: %q", r.race.ID, r.race.Text))
		}
		return false, nil

	case "error":
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(env.Data, &payload)
		return false, fmt.Errorf("server error: %s", payload.Message)
	}
	return false, nil
}

// advance reports typing progress once the race is on
func (r *racer) advance() error {
	if !r.started || r.progress >= 100 {
		return nil
	}
	r.progress = TypedProgress(len(r.race.Text), r.opts.WPM, r.clock.Since(r.start))
	return r.send("updateProgress", map[string]any{
		"progress": r.progress,
		"wpm":      r.opts.WPM,
		"finished": r.progress >= 100,
	})
}

func (r *racer) send(eventType string, data any) error {
	env := map[string]any{"type": eventType}
	if data != nil {
		env["data"] = data
	}
	if err := r.conn.WriteJSON(env); err != nil {
		return fmt.Errorf("send %s: %w", eventType, err)
	}
	return nil
}

func (r *racer) result() PlayResult {
	result := PlayResult{
		RaceID:   r.race.ID,
		Status:   r.race.Status,
		Finished: r.progress >= 100,
		Progress: r.progress,
	}
	for _, p := range r.race.Players {
		if p.Finished {
			result.Winner = p.Name
			break
		}
	}
	return result
}
