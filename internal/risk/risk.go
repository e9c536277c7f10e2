// Package risk maps risk scores to the tiers, colours and forecast series the dashboard displays.
package risk

import (
	"fmt"
	"math"

	"github.com/Zachdehooge/flood-dashboard/internal/fetcher"
)

// Gauge and marker tier boundaries.
const (
	MediumThreshold = 0.4
	HighThreshold   = 0.7
)

type Tier string

const (
	TierLow    Tier = "Low"
	TierMedium Tier = "Medium"
	TierHigh   Tier = "High"
)

// TierFor returns High for r >= 0.7, Medium for 0.4 <= r < 0.7 and Low otherwise.
func TierFor(score float64) Tier {
	switch {
	case score >= HighThreshold:
		return TierHigh
	case score >= MediumThreshold:
		return TierMedium
	default:
		return TierLow
	}
}

// Color is the gauge colour for the tier.
func (t Tier) Color() string {
	switch t {
	case TierHigh:
		return "#dc3545"
	case TierMedium:
		return "#fd7e14"
	default:
		return "#28a745"
	}
}

// Class is the CSS class used for markers and list rows.
func (t Tier) Class() string {
	switch t {
	case TierHigh:
		return "tier-high"
	case TierMedium:
		return "tier-medium"
	default:
		return "tier-low"
	}
}

// Percent is the score as a rounded gauge percentage.
func Percent(score float64) int {
	return int(math.Round(score * 100))
}

// Point is one labelled chart value.
type Point struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Series is the data behind the forecast chart.
type Series struct {
	Label  string  `json:"label"`
	Points []Point `json:"points"`
	// Bounded is true when values live in [0,1].
	Bounded bool `json:"bounded"`
}

const (
	HistoryLabel    = "Historical Rainfall (mm/hr)"
	ProjectionLabel = "Predicted Risk Score"
	projectionSteps = 3
)

// Forecast plots a location's history when it has one, and a short risk projection otherwise.
func Forecast(loc fetcher.Location) Series {
	if len(loc.History) > 0 {
		n := len(loc.History)
		points := make([]Point, n)
		for i, v := range loc.History {
			label := "Now"
			if ago := n - 1 - i; ago > 0 {
				label = fmt.Sprintf("-%dm", ago)
			}
			points[i] = Point{Label: label, Value: v}
		}
		return Series{Label: HistoryLabel, Points: points}
	}

	points := []Point{{Label: "Now", Value: loc.RiskScore}}
	last := loc.RiskScore
	for i := 1; i <= projectionSteps; i++ {
		change := -0.05
		if last > 0.5 {
			change = 0.1
		}
		last = math.Max(0, math.Min(1, last+change))
		label := fmt.Sprintf("+%d hrs", i)
		if i == 1 {
			label = "+1 hr"
		}
		points = append(points, Point{Label: label, Value: last})
	}
	return Series{Label: ProjectionLabel, Points: points, Bounded: true}
}
