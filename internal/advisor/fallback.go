package advisor

import (
	"fmt"
	"strings"

	"github.com/Zachdehooge/flood-dashboard/internal/fetcher"
)

// Fallback thresholds. These differ from the gauge tiers in package risk.
const (
	CriticalThreshold = 0.8
	WarningThreshold  = 0.4
)

// DefaultGenericMarkers identify the backend's placeholder answer for unknown locations.
var DefaultGenericMarkers = []string{"No specific resources"}

// Fallback synthesizes advice from the risk score alone.
func Fallback(riskScore float64, name string) []fetcher.Suggestion {
	if name == "" {
		name = "this location"
	}
	switch {
	case riskScore >= CriticalThreshold:
		return []fetcher.Suggestion{{
			Priority: "Critical",
			Type:     "pumping",
			Action:   fmt.Sprintf("Critical flood risk at %s. Activate all pumping stations immediately.", name),
		}}
	case riskScore >= WarningThreshold:
		return []fetcher.Suggestion{{
			Priority: "Warning",
			Action:   fmt.Sprintf("Rising water levels at %s. Verify sensor readings and clear debris from drainage inlets.", name),
		}}
	default:
		return []fetcher.Suggestion{{
			Priority: "Low",
			Action:   fmt.Sprintf("Conditions are normal at %s. Continue routine monitoring.", name),
		}}
	}
}

// IsGeneric reports whether a backend answer carries no location-specific advice.
func IsGeneric(suggestions []fetcher.Suggestion, markers []string) bool {
	if len(suggestions) == 0 {
		return true
	}
	flagged := true
	for _, s := range suggestions {
		if !s.Generic {
			flagged = false
			break
		}
	}
	if flagged {
		return true
	}
	if len(suggestions) != 1 {
		return false
	}
	for _, marker := range markers {
		if marker != "" && strings.Contains(suggestions[0].Action, marker) {
			return true
		}
	}
	return false
}
