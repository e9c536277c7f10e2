package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zachdehooge/flood-dashboard/internal/fetcher"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		score float64
		want  Tier
	}{
		{1.0, TierHigh},
		{0.7, TierHigh},
		{0.69, TierMedium},
		{0.4, TierMedium},
		{0.39, TierLow},
		{0.0, TierLow},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, TierFor(test.score), "score %v", test.score)
	}
}

func TestTierPresentation(t *testing.T) {
	assert.Equal(t, "#dc3545", TierHigh.Color())
	assert.Equal(t, "#fd7e14", TierMedium.Color())
	assert.Equal(t, "#28a745", TierLow.Color())
	assert.Equal(t, "tier-medium", TierMedium.Class())
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 0, Percent(0))
	assert.Equal(t, 45, Percent(0.45))
	assert.Equal(t, 87, Percent(0.866))
	assert.Equal(t, 100, Percent(1))
}

func TestForecastHistory(t *testing.T) {
	s := Forecast(fetcher.Location{RiskScore: 0.9, History: []float64{0, 5, 15}})
	assert.Equal(t, HistoryLabel, s.Label)
	assert.False(t, s.Bounded)
	require.Len(t, s.Points, 3)
	assert.Equal(t, Point{Label: "-2m", Value: 0}, s.Points[0])
	assert.Equal(t, Point{Label: "-1m", Value: 5}, s.Points[1])
	assert.Equal(t, Point{Label: "Now", Value: 15}, s.Points[2])
}

func TestForecastProjectionRising(t *testing.T) {
	s := Forecast(fetcher.Location{RiskScore: 0.75})
	assert.Equal(t, ProjectionLabel, s.Label)
	assert.True(t, s.Bounded)
	require.Len(t, s.Points, 4)
	assert.Equal(t, []string{"Now", "+1 hr", "+2 hrs", "+3 hrs"},
		[]string{s.Points[0].Label, s.Points[1].Label, s.Points[2].Label, s.Points[3].Label})
	assert.InDelta(t, 0.75, s.Points[0].Value, 1e-9)
	assert.InDelta(t, 0.85, s.Points[1].Value, 1e-9)
	assert.InDelta(t, 0.95, s.Points[2].Value, 1e-9)
	assert.InDelta(t, 1.0, s.Points[3].Value, 1e-9)
}

func TestForecastProjectionFalling(t *testing.T) {
	s := Forecast(fetcher.Location{RiskScore: 0.08})
	require.Len(t, s.Points, 4)
	assert.InDelta(t, 0.03, s.Points[1].Value, 1e-9)
	assert.InDelta(t, 0.0, s.Points[2].Value, 1e-9)
	assert.InDelta(t, 0.0, s.Points[3].Value, 1e-9)
}
