// Package advisor resolves the recommended actions shown for the active location.
//
// The backend is asked first. When it fails, or answers with nothing specific,
// the engine substitutes advice computed locally from the risk score, so the
// panel never shows an empty list for a location with a known score.
package advisor

import (
	"context"
	"errors"
	"log"

	"github.com/Zachdehooge/flood-dashboard/internal/fetcher"
)

// Source fetches suggestions from the prediction backend.
type Source interface {
	FetchSuggestions(ctx context.Context, locationID string, riskScore float64) ([]fetcher.Suggestion, error)
}

// Result is the outcome of resolving suggestions for one location.
type Result struct {
	LocationID  string
	RiskScore   float64
	Suggestions []fetcher.Suggestion
	// Fallback is true when Suggestions were computed locally.
	Fallback bool
	// Err is the backend error that triggered the fallback, if any.
	Err error
}

// Engine resolves suggestions with a local fallback.
type Engine struct {
	source  Source
	markers []string
}

// NewEngine creates an Engine. With no markers, DefaultGenericMarkers are used.
func NewEngine(source Source, markers []string) *Engine {
	if len(markers) == 0 {
		markers = DefaultGenericMarkers
	}
	return &Engine{source: source, markers: markers}
}

// Resolve returns the suggestions to display for loc.
func (e *Engine) Resolve(ctx context.Context, loc fetcher.Location) Result {
	res := Result{LocationID: loc.ID, RiskScore: loc.RiskScore}

	var suggestions []fetcher.Suggestion
	var err error
	if e.source == nil {
		err = errors.New("no suggestion source configured")
	} else {
		suggestions, err = e.source.FetchSuggestions(ctx, loc.ID, loc.RiskScore)
	}

	switch {
	case err != nil:
		if ctx.Err() == nil {
			log.Printf("[suggest] %s: %v; using local fallback", loc.ID, err)
		}
		res.Err = err
	case IsGeneric(suggestions, e.markers):
		log.Printf("[suggest] %s: generic backend answer; using local fallback", loc.ID)
	default:
		res.Suggestions = suggestions
		return res
	}

	res.Suggestions = Fallback(loc.RiskScore, loc.Name)
	res.Fallback = true
	return res
}
