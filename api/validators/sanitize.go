package validators

import "strings"

// MaxSearchRunes caps admin search terms.
const MaxSearchRunes = 100

// SanitizeSearch collapses whitespace in a free-text search term and cuts it
// to maxRunes characters without splitting a multi-byte rune.
func SanitizeSearch(input string, maxRunes int) string {
	term := strings.Join(strings.Fields(input), " ")
	if maxRunes <= 0 {
		return term
	}
	runes := []rune(term)
	if len(runes) > maxRunes {
		return strings.TrimSpace(string(runes[:maxRunes]))
	}
	return term
}
