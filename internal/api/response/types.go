package response

import (
	"time"

	"github.com/mcoot/typerace-go/internal/model"
)

// Health is the response of the health check
type Health struct {
	Status string `json:"status"`
}

// RacePlayer represents a participant in API responses
type RacePlayer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Progress int    `json:"progress"`
	WPM      int    `json:"wpm"`
	Finished bool   `json:"finished"`
}

// RacePlayerFromModel converts model.RacePlayer
func RacePlayerFromModel(p model.RacePlayer) RacePlayer {
	return RacePlayer{
		ID:       string(p.ID),
		Name:     p.Name,
		Progress: p.Progress,
		WPM:      p.WPM,
		Finished: p.Finished,
	}
}

// Race represents the full state of a race
type Race struct {
	ID         string       `json:"id"`
	Text       string       `json:"text"`
	Difficulty string       `json:"difficulty"`
	Status     string       `json:"status"`
	Countdown  *int         `json:"countdown"`
	Players    []RacePlayer `json:"players"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// RaceFromModel converts model.Race
func RaceFromModel(r *model.Race) Race {
	players := make([]RacePlayer, len(r.Players))
	for i, p := range r.Players {
		players[i] = RacePlayerFromModel(p)
	}

	var countdown *int
	if r.Countdown != nil {
		c := *r.Countdown
		countdown = &c
	}

	return Race{
		ID:         string(r.ID),
		Text:       r.Text,
		Difficulty: string(r.Difficulty),
		Status:     string(r.Status),
		Countdown:  countdown,
		Players:    players,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

// RaceSummary is a race as shown in listings, without its passage
type RaceSummary struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	PlayerCount int    `json:"player_count"`
	Difficulty  string `json:"difficulty"`
}

// RaceSummaryFromModel converts model.Race
func RaceSummaryFromModel(r *model.Race) RaceSummary {
	return RaceSummary{
		ID:          string(r.ID),
		Status:      string(r.Status),
		PlayerCount: len(r.Players),
		Difficulty:  string(r.Difficulty),
	}
}

// RaceList is the response of the race listing
type RaceList struct {
	Races []RaceSummary `json:"races"`
}

// Stats summarizes server activity
type Stats struct {
	ActiveRaces int            `json:"active_races"`
	ByStatus    map[string]int `json:"by_status"`
	Rooms       int            `json:"rooms"`
	RoomMembers int            `json:"room_members"`
	Connections int            `json:"connections"`
	Countdowns  int            `json:"countdowns"`
}
