package dashboard

import (
	"time"

	"github.com/Zachdehooge/flood-dashboard/internal/advisor"
	"github.com/Zachdehooge/flood-dashboard/internal/fetcher"
	"github.com/Zachdehooge/flood-dashboard/internal/reroute"
	"github.com/Zachdehooge/flood-dashboard/internal/risk"
)

// LocationView is a Location decorated for rendering.
type LocationView struct {
	fetcher.Location
	Tier    risk.Tier `json:"tier"`
	Color   string    `json:"color"`
	Class   string    `json:"class"`
	Percent int       `json:"percent"`
}

// SuggestionView is a Suggestion decorated for rendering.
type SuggestionView struct {
	fetcher.Suggestion
	Class       string `json:"class"`
	Rerouteable bool   `json:"rerouteable"`
}

// Snapshot is an immutable copy of the dashboard state.
type Snapshot struct {
	Locations   []LocationView   `json:"locations"`
	ActiveID    string           `json:"activeId"`
	Active      *LocationView    `json:"active,omitempty"`
	Forecast    *risk.Series     `json:"forecast,omitempty"`
	Suggestions []SuggestionView `json:"suggestions"`
	Loading     bool             `json:"loading"`
	Fallback    bool             `json:"fallback"`
	Banner      string           `json:"banner,omitempty"`
	Demo        bool             `json:"demo"`
	Reroute     *reroute.Request `json:"reroute,omitempty"`
	Sequence    uint64           `json:"sequence"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

func newLocationView(loc fetcher.Location) LocationView {
	tier := risk.TierFor(loc.RiskScore)
	return LocationView{
		Location: loc,
		Tier:     tier,
		Color:    tier.Color(),
		Class:    tier.Class(),
		Percent:  risk.Percent(loc.RiskScore),
	}
}

func newSuggestionView(s fetcher.Suggestion) SuggestionView {
	return SuggestionView{
		Suggestion:  s,
		Class:       advisor.ParsePriority(s.Priority).Class(),
		Rerouteable: s.Rerouteable(),
	}
}

// snapshotLocked builds a Snapshot. Callers hold d.mu.
func (d *Dashboard) snapshotLocked() Snapshot {
	snap := Snapshot{
		Locations:   make([]LocationView, 0, len(d.locations)),
		ActiveID:    d.activeID,
		Suggestions: make([]SuggestionView, 0, len(d.suggestions)),
		Loading:     d.loading,
		Fallback:    d.fallback,
		Banner:      d.banner,
		Demo:        d.demo,
		Reroute:     d.reroute,
		Sequence:    d.appliedSeq,
		UpdatedAt:   d.updatedAt,
	}
	for _, loc := range d.locations {
		view := newLocationView(loc)
		snap.Locations = append(snap.Locations, view)
		if loc.ID == d.activeID {
			active := view
			forecast := risk.Forecast(loc)
			snap.Active = &active
			snap.Forecast = &forecast
		}
	}
	for _, s := range d.suggestions {
		snap.Suggestions = append(snap.Suggestions, newSuggestionView(s))
	}
	return snap
}
