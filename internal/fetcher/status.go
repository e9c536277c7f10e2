package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
)

// statusEntry is one value of the /status mapping.
type statusEntry struct {
	LiveData  json.RawMessage `json:"live_data"`
	RiskScore *float64        `json:"risk_score"`
	History   []float64       `json:"history"`
}

// liveCoords holds the fields of live_data the dashboard needs; the rest stays opaque.
type liveCoords struct {
	NodeID string   `json:"node_id"`
	Lat    *float64 `json:"lat"`
	Lon    *float64 `json:"lon"`
}

// FetchStatus retrieves the current risk status of every node from GET /status.
func (c *Client) FetchStatus(ctx context.Context) ([]Location, error) {
	body, err := c.do(ctx, http.MethodGet, "/status", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch status: %w", err)
	}
	locations, err := ParseStatus(body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse status: %w", err)
	}
	return locations, nil
}

// ParseStatus turns a /status body into Locations in the order the server sent them.
// A repeated node key keeps its first position and takes its last value.
// Entries that fail validation are skipped and logged.
func ParseStatus(body []byte) ([]Location, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("JSON decode failed: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("status body is not a JSON object")
	}

	var order []string
	entries := make(map[string]json.RawMessage)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("JSON decode failed: %w", err)
		}
		id, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("JSON decode failed for %q: %w", id, err)
		}
		if _, dup := entries[id]; dup {
			log.Printf("[fetcher] node %q repeated, keeping the later entry", id)
		} else {
			order = append(order, id)
		}
		entries[id] = raw
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("JSON decode failed: %w", err)
	}

	locations := make([]Location, 0, len(order))
	for _, id := range order {
		loc, err := parseEntry(id, entries[id])
		if err != nil {
			log.Printf("[fetcher] skipping node %q: %v", id, err)
			continue
		}
		locations = append(locations, loc)
	}
	return locations, nil
}

func parseEntry(id string, raw json.RawMessage) (Location, error) {
	if id == "" {
		return Location{}, errors.New("empty node identifier")
	}

	var entry statusEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return Location{}, fmt.Errorf("malformed entry: %w", err)
	}

	live := bytes.TrimSpace(entry.LiveData)
	if len(live) == 0 || live[0] != '{' {
		return Location{}, errors.New("live_data is missing or not an object")
	}
	var coords liveCoords
	if err := json.Unmarshal(live, &coords); err != nil {
		return Location{}, fmt.Errorf("malformed live_data: %w", err)
	}
	if coords.Lat == nil || coords.Lon == nil {
		return Location{}, errors.New("live_data has no coordinates")
	}
	if !validCoord(*coords.Lat, 90) || !validCoord(*coords.Lon, 180) {
		return Location{}, fmt.Errorf("coordinates out of range: %v,%v", *coords.Lat, *coords.Lon)
	}

	if entry.RiskScore == nil {
		return Location{}, errors.New("risk_score is missing")
	}
	score := *entry.RiskScore
	if math.IsNaN(score) || score < 0 || score > 1 {
		return Location{}, fmt.Errorf("risk_score %v outside [0,1]", score)
	}

	history := entry.History
	if history == nil {
		history = []float64{}
	}

	return Location{
		ID:        id,
		Name:      FormatName(id),
		Lat:       *coords.Lat,
		Lon:       *coords.Lon,
		RiskScore: score,
		LiveData:  append(json.RawMessage(nil), live...),
		History:   history,
	}, nil
}

func validCoord(v, limit float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= -limit && v <= limit
}
