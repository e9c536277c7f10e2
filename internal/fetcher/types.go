package fetcher

import (
	"encoding/json"
	"fmt"
)

// Location is one monitored node as reported by the prediction service.
// A new slice of Locations replaces the previous one on every poll.
type Location struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Lat       float64         `json:"lat"`
	Lon       float64         `json:"lon"`
	RiskScore float64         `json:"riskScore"`
	LiveData  json.RawMessage `json:"liveData,omitempty"`
	History   []float64       `json:"history"`
}

// Suggestion is one advisory action for a location.
type Suggestion struct {
	Priority string          `json:"priority"`
	Action   string          `json:"action"`
	Type     string          `json:"type,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	// Generic is set by backends that flag their placeholder answers explicitly.
	Generic bool `json:"generic,omitempty"`
}

// TypeTrafficReroute marks a suggestion whose payload describes a reroute plan.
const TypeTrafficReroute = "traffic_reroute"

// Rerouteable reports whether the suggestion carries a payload for the map overlay.
func (s Suggestion) Rerouteable() bool {
	return s.Type == TypeTrafficReroute && len(s.Payload) > 0
}

// HTTPError is returned when the backend answers with a non-200 status.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned HTTP %d: %s", e.StatusCode, e.Body)
}
