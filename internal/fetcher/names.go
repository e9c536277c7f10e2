package fetcher

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	projectPrefix = "chennai"
	liveToken     = "live"
)

// FormatName derives a display name from a node identifier.
//
//	chennai_drain_live_a01 -> Drain Feed A01
//	live_chennai           -> Live Feed
//	chennai_t_nagar        -> T Nagar
func FormatName(id string) string {
	tokens := strings.FieldsFunc(id, func(r rune) bool {
		return r == '_' || r == '-' || unicode.IsSpace(r)
	})

	words := make([]string, 0, len(tokens)+1)
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		switch {
		case lower == projectPrefix:
			continue
		case lower == liveToken && len(words) == 0:
			words = append(words, "Live", "Feed")
		case lower == liveToken:
			words = append(words, "Feed")
		default:
			words = append(words, capitalize(tok))
		}
	}
	return strings.TrimSpace(strings.Join(words, " "))
}

func capitalize(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}
