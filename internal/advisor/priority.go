package advisor

import "strings"

// Priority ranks suggestions: critical > high (= warning) > medium > low > info.
type Priority int

const (
	PriorityInfo Priority = iota
	PriorityLow
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// ParsePriority maps a backend priority label to a Priority. Unknown labels rank as info.
func ParsePriority(label string) Priority {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "critical":
		return PriorityCritical
	case "high", "warning":
		return PriorityHigh
	case "medium":
		return PriorityMedium
	case "low":
		return PriorityLow
	default:
		return PriorityInfo
	}
}

// String returns the canonical label.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "Critical"
	case PriorityHigh:
		return "High"
	case PriorityMedium:
		return "Medium"
	case PriorityLow:
		return "Low"
	default:
		return "Info"
	}
}

// Class returns the CSS class used by the suggestion badge.
func (p Priority) Class() string {
	return "priority-" + strings.ToLower(p.String())
}
