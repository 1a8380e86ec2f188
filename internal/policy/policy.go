// Package policy implements the Strategy pattern for turning user input and
// navigated URLs into canonical subreddit identifiers ("/r/<name>").
// Each strategy recognizes one input shape; the first one that matches wins.
package policy

import (
	"strings"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

// MatchStrategy extracts a canonical identifier from one kind of input.
type MatchStrategy interface {
	// Name returns a short identifier (e.g., "url-path", "prefix").
	Name() string

	// Match returns the canonical identifier, or false when the input is
	// not of the shape this strategy understands.
	Match(raw string) (string, bool)
}

// Normalize turns a free-form subreddit reference (full URL, "r/name",
// "/r/name", or bare "name") into "/r/<lowercased name>" using the default
// strategy chain. Returns false when no identifier can be extracted.
func Normalize(raw string) (string, bool) {
	return defaultRegistry.Normalize(raw)
}

// canonical builds "/r/<token>" from an extracted token.
// The token is cut at the first slash or whitespace and lowercased.
func canonical(token string) (string, bool) {
	if i := strings.IndexFunc(token, isSeparator); i >= 0 {
		token = token[:i]
	}
	if token == "" {
		return "", false
	}
	return domain.IdentifierPrefix + strings.ToLower(token), true
}

func isSeparator(r rune) bool {
	switch r {
	case '/', ' ', '\t', '\n', '\r', '\v', '\f', 0x85, 0xA0:
		return true
	}
	return false
}
