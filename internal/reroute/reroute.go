// Package reroute turns a traffic_reroute suggestion payload into a plan for the map overlay.
package reroute

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrEmptyPayload = errors.New("reroute payload is empty")
	ErrNoSegments   = errors.New("reroute payload has no road segments")
)

// Point is a [lat, lon] pair, encoded the way Leaflet expects it.
type Point [2]float64

func (p Point) valid() bool {
	return p[0] >= -90 && p[0] <= 90 && p[1] >= -180 && p[1] <= 180
}

// Segment is a road to avoid.
type Segment struct {
	Name        string  `json:"name,omitempty"`
	Coordinates []Point `json:"coordinates"`
}

// Request is a reroute plan: a detour from Start to End that avoids the given segments.
type Request struct {
	Start Point     `json:"start"`
	End   Point     `json:"end"`
	Avoid []Segment `json:"avoid"`
}

type payload struct {
	Start *Point    `json:"start"`
	End   *Point    `json:"end"`
	Avoid []Segment `json:"avoid"`
	Roads []Segment `json:"roads"`
}

// Parse accepts either {start, end, avoid} or the backend's {roads} shape.
// For {roads}, the plan runs from the first coordinate of the first road
// to the last coordinate of the last road.
func Parse(raw json.RawMessage) (*Request, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, ErrEmptyPayload
	}
	var p payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("malformed reroute payload: %w", err)
	}

	segments := p.Avoid
	if len(segments) == 0 {
		segments = p.Roads
	}
	usable := make([]Segment, 0, len(segments))
	for _, s := range segments {
		if len(s.Coordinates) == 0 {
			continue
		}
		for _, c := range s.Coordinates {
			if !c.valid() {
				return nil, fmt.Errorf("segment %q: coordinate %v out of range", s.Name, c)
			}
		}
		usable = append(usable, s)
	}
	if len(usable) == 0 {
		return nil, ErrNoSegments
	}

	req := &Request{Avoid: usable}
	if p.Start != nil {
		req.Start = *p.Start
	} else {
		req.Start = usable[0].Coordinates[0]
	}
	if p.End != nil {
		req.End = *p.End
	} else {
		last := usable[len(usable)-1].Coordinates
		req.End = last[len(last)-1]
	}
	if !req.Start.valid() || !req.End.valid() {
		return nil, fmt.Errorf("reroute endpoints out of range: %v -> %v", req.Start, req.End)
	}
	return req, nil
}
