package fetcher

import "encoding/json"

type demoNode struct {
	id    string
	lat   float64
	lon   float64
	score float64
}

// Chennai sensor network used when the prediction service cannot be reached.
var demoNodes = []demoNode{
	{"live_chennai", 13.0827, 80.2707, 0.62},
	{"DRAIN_A01", 13.0418, 80.2341, 0.45},
	{"chennai_adyar", 13.0044, 80.2534, 0.86},
	{"chennai_t_nagar", 13.0398, 80.2333, 0.38},
	{"chennai_velachery", 12.9806, 80.2215, 0.74},
	{"chennai_guindy", 13.0076, 80.2133, 0.21},
	{"chennai_madipakkam", 12.9649, 80.1983, 0.55},
	{"chennai_saidapet", 13.0250, 80.2255, 0.12},
}

// DemoLocations returns the fixed demo data set. Every call returns fresh values.
func DemoLocations() []Location {
	locations := make([]Location, 0, len(demoNodes))
	for _, n := range demoNodes {
		live, _ := json.Marshal(map[string]any{
			"node_id": n.id,
			"lat":     n.lat,
			"lon":     n.lon,
			"demo":    true,
		})
		locations = append(locations, Location{
			ID:        n.id,
			Name:      FormatName(n.id),
			Lat:       n.lat,
			Lon:       n.lon,
			RiskScore: n.score,
			LiveData:  live,
			History:   []float64{},
		})
	}
	return locations
}
