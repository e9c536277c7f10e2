package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type suggestionRequest struct {
	LocationID string  `json:"location_id"`
	RiskScore  float64 `json:"risk_score"`
}

// FetchSuggestions asks the backend for advisory actions via POST /api/suggestions.
func (c *Client) FetchSuggestions(ctx context.Context, locationID string, riskScore float64) ([]Suggestion, error) {
	body, err := json.Marshal(suggestionRequest{LocationID: locationID, RiskScore: riskScore})
	if err != nil {
		return nil, err
	}
	data, err := c.do(ctx, http.MethodPost, "/api/suggestions", body)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch suggestions for %s: %w", locationID, err)
	}
	suggestions, err := ParseSuggestions(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse suggestions for %s: %w", locationID, err)
	}
	return suggestions, nil
}

// ParseSuggestions decodes a suggestions array, dropping entries without an action.
func ParseSuggestions(data []byte) ([]Suggestion, error) {
	var raw []Suggestion
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("JSON decode failed: %w", err)
	}
	suggestions := make([]Suggestion, 0, len(raw))
	for _, s := range raw {
		s.Action = strings.TrimSpace(s.Action)
		if s.Action == "" {
			continue
		}
		if string(s.Payload) == "null" {
			s.Payload = nil
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, nil
}
