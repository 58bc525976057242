package workout

import (
	"sort"
	"time"
)

// Order is the requested direction for session groups and the entry query
// alike.
type Order int

const (
	Descending Order = iota // newest first, the default
	Ascending
)

// ParseOrder maps the wire form ("asc"/"desc") to an Order, defaulting to
// Descending.
func ParseOrder(s string) Order {
	if s == "asc" || s == "ascending" {
		return Ascending
	}
	return Descending
}

func (o Order) String() string {
	if o == Ascending {
		return "asc"
	}
	return "desc"
}

// SessionView is the view model for one session card: its entries in query
// order plus the per-session totals.
type SessionView struct {
	ID          string    `json:"id"`
	Legacy      bool      `json:"legacy,omitempty"`
	Active      bool      `json:"active,omitempty"`
	Date        time.Time `json:"date"`
	TotalVolume float64   `json:"totalVolume"`
	Entries     []Entry   `json:"entries"`
}

// Aggregate turns a flat entry snapshot into ordered session view models.
//
// Entries group by session id; those without one fall into the synthetic
// legacy bucket. Each group's representative date is the earliest createdAt
// among its entries, and the groups themselves are sorted by that date per
// the requested order — a second sort, independent of the entry query order,
// because the store returns entries, not sessions. The group matching
// currentSessionID is marked active. The whole output is recomputed from
// scratch each call; snapshots are full result sets, not deltas.
func Aggregate(entries []Entry, order Order, currentSessionID string) []SessionView {
	groups := make(map[string]*SessionView)
	var keys []string

	for _, e := range entries {
		key := e.SessionID
		if key == "" {
			key = LegacySessionID
		}
		g, ok := groups[key]
		if !ok {
			g = &SessionView{
				ID:     key,
				Legacy: e.Legacy(),
				Active: currentSessionID != "" && key == currentSessionID,
				Date:   e.CreatedAt,
			}
			groups[key] = g
			keys = append(keys, key)
		}
		if !e.CreatedAt.IsZero() && (g.Date.IsZero() || e.CreatedAt.Before(g.Date)) {
			g.Date = e.CreatedAt
		}
		g.TotalVolume += e.Volume
		g.Entries = append(g.Entries, e)
	}

	views := make([]SessionView, 0, len(keys))
	for _, key := range keys {
		views = append(views, *groups[key])
	}

	sort.SliceStable(views, func(i, j int) bool {
		if order == Ascending {
			return views[i].Date.Before(views[j].Date)
		}
		return views[i].Date.After(views[j].Date)
	})
	return views
}
