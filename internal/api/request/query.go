package request

import (
	"fmt"
	"net/url"

	"github.com/mcoot/typerace-go/internal/model"
)

// ListRacesQuery filters the race listing
type ListRacesQuery struct {
	Status model.RaceStatus // Empty means all
}

// ParseListRacesQuery reads ?status= from the query string
func ParseListRacesQuery(values url.Values) (ListRacesQuery, error) {
	status := model.RaceStatus(values.Get("status"))
	switch status {
	case "", model.RaceStatusWaiting, model.RaceStatusCountdown, model.RaceStatusRacing, model.RaceStatusFinished:
		return ListRacesQuery{Status: status}, nil
	default:
		return ListRacesQuery{}, fmt.Errorf("unknown race status %q", status)
	}
}

// Matches reports whether a race passes the filter
func (q ListRacesQuery) Matches(r *model.Race) bool {
	return q.Status == "" || r.Status == q.Status
}
