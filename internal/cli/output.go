package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w io.Writer) *Output {
	if w == nil {
		w = os.Stdout
	}
	return &Output{format: format, w: w}
}

// JSON reports whether machine-readable output was requested
func (o *Output) JSON() bool {
	return o.format == "json"
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.JSON() {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.JSON() {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.JSON() {
		data, _ := json.Marshal(map[string]string{"message": msg})
		fmt.Fprintln(o.w, string(data))
	} else {
		fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	if _, ok := data.(SSEEvent); !ok {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case RaceList:
		o.printRaceList(v)
	case Race:
		o.printRace(v)
	case Stats:
		o.printStats(v)
	case HealthResult:
		o.printHealthResult(v)
	case SSEEvent:
		o.printEvent(v)
	case PlayResult:
		o.printPlayResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// RaceSummary response type (matches API)
type RaceSummary struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	PlayerCount int    `json:"player_count"`
	Difficulty  string `json:"difficulty"`
}

// RaceList response type
type RaceList struct {
	Races []RaceSummary `json:"races"`
}

// Player response type
type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Progress int    `json:"progress"`
	WPM      int    `json:"wpm"`
	Finished bool   `json:"finished"`
}

// Race response type
type Race struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Difficulty string    `json:"difficulty"`
	Status     string    `json:"status"`
	Countdown  *int      `json:"countdown"`
	Players    []Player  `json:"players"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Stats response type
type Stats struct {
	ActiveRaces int            `json:"active_races"`
	ByStatus    map[string]int `json:"by_status"`
	Rooms       int            `json:"rooms"`
	RoomMembers int            `json:"room_members"`
	Connections int            `json:"connections"`
	Countdowns  int            `json:"countdowns"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printRaceList(l RaceList) {
	if len(l.Races) == 0 {
		fmt.Fprintln(o.w, "No active races")
		return
	}
	fmt.Fprintf(o.w, "%-10s %-10s %-8s %s\n", "ID", "STATUS", "PLAYERS", "DIFFICULTY")
	for _, r := range l.Races {
		fmt.Fprintf(o.w, "%-10s %-10s %-8d %s\n", r.ID, r.Status, r.PlayerCount, r.Difficulty)
	}
}

func (o *Output) printRace(r Race) {
	fmt.Fprintf(o.w, "Race: %s\n", r.ID)
	fmt.Fprintf(o.w, "Status: %s\n", r.Status)
	if r.Countdown != nil && r.Status == "countdown" {
		fmt.Fprintf(o.w, "Countdown: %d\n", *r.Countdown)
	}
	fmt.Fprintf(o.w, "Difficulty: %s\n", r.Difficulty)
	fmt.Fprintf(o.w, "Text: %s\n", r.Text)
	fmt.Fprintf(o.w, "Players (%d):\n", len(r.Players))
	for _, p := range r.Players {
		finished := ""
		if p.Finished {
			finished = " [finished]"
		}
		fmt.Fprintf(o.w, "  - %s %s %3d%% %d wpm%s\n", p.Name, progressBar(p.Progress, 20), p.Progress, p.WPM, finished)
	}
}

func (o *Output) printStats(s Stats) {
	fmt.Fprintf(o.w, "Active races: %d\n", s.ActiveRaces)
	statuses := make([]string, 0, len(s.ByStatus))
	for status := range s.ByStatus {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Fprintf(o.w, "  %s: %d\n", status, s.ByStatus[status])
	}
	fmt.Fprintf(o.w, "Countdowns running: %d\n", s.Countdowns)
	fmt.Fprintf(o.w, "Rooms: %d (%d members)\n", s.Rooms, s.RoomMembers)
	fmt.Fprintf(o.w, "Connections: %d\n", s.Connections)
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Fprintf(o.w, "Status: %s\n", h.Status)
}

func (o *Output) printEvent(e SSEEvent) {
	timestamp := e.Time.Format("2006-01-02 15:04:05")
	// Truncate data if it's too long for display
	displayData := strings.ReplaceAll(e.Data, "\n", " ")
	if len(displayData) > 100 {
		displayData = displayData[:100] + "..."
	}
	fmt.Fprintf(o.w, "[%s] %s: %s\n", timestamp, e.Event, displayData)
}

func (o *Output) printPlayResult(p PlayResult) {
	fmt.Fprintf(o.w, "Race: %s (%s)\n", p.RaceID, p.Status)
	fmt.Fprintf(o.w, "Progress: %s %d%%\n", progressBar(p.Progress, 20), p.Progress)
	if p.Winner != "" {
		fmt.Fprintf(o.w, "Winner: %s\n", p.Winner)
	}
}

// progressBar renders 0-100 as a fixed-width bar
func progressBar(progress, width int) string {
	progress = max(0, min(progress, 100))
	filled := progress * width / 100
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}
