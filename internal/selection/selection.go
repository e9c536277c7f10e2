// Package selection decides which location the dashboard shows in its detail panel.
package selection

import "github.com/Zachdehooge/flood-dashboard/internal/fetcher"

// Pick returns the identifier that should be active for locations.
// A valid activeID is kept; otherwise the highest risk score wins, first one on ties.
// It returns "" only when locations is empty.
func Pick(locations []fetcher.Location, activeID string) string {
	if len(locations) == 0 {
		return ""
	}
	if activeID != "" && Contains(locations, activeID) {
		return activeID
	}
	best := 0
	for i := 1; i < len(locations); i++ {
		if locations[i].RiskScore > locations[best].RiskScore {
			best = i
		}
	}
	return locations[best].ID
}

// Contains reports whether id names one of locations.
func Contains(locations []fetcher.Location, id string) bool {
	_, ok := Find(locations, id)
	return ok
}

// Find returns the location with the given id.
func Find(locations []fetcher.Location, id string) (fetcher.Location, bool) {
	for _, loc := range locations {
		if loc.ID == id {
			return loc, true
		}
	}
	return fetcher.Location{}, false
}
