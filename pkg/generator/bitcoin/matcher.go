package bitcoin

import (
	"strings"

	"github.com/Amr-9/btcvanity/pkg/generator"
)

// Matcher handles pattern matching for Bitcoin addresses.
// Matching is always case-insensitive, for Base58 and Bech32 alike, and
// ignores the fixed format prefix ("1", "3", "bc1", "bc1p") for Start and
// Middle searches.
type Matcher struct {
	pattern  string
	position generator.Position
}

// NewMatcher creates a matcher with the pattern lowercased once, outside the
// hot loop.
func NewMatcher(pattern string, position generator.Position) *Matcher {
	return &Matcher{
		pattern:  strings.ToLower(pattern),
		position: position,
	}
}

// Matches checks if a lowercase or mixed-case address matches the pattern.
func (m *Matcher) Matches(address string) bool {
	if m.pattern == "" {
		return true
	}

	address = strings.ToLower(address)

	switch m.position {
	case generator.PositionStart:
		return strings.HasPrefix(stripPrefix(address), m.pattern)
	case generator.PositionMiddle:
		return strings.Contains(stripPrefix(address), m.pattern)
	case generator.PositionEnd:
		// The checksum tail is part of what suffix searches target, so
		// nothing is stripped.
		return strings.HasSuffix(address, m.pattern)
	default:
		return false
	}
}

// Matches is the one-shot form of Matcher.Matches.
func Matches(address, pattern string, position generator.Position) bool {
	return NewMatcher(pattern, position).Matches(address)
}

// stripPrefix drops the format marker of a lowercase address. Taproot's
// "bc1p" loses four characters: keeping the 'p' would let every Start
// pattern beginning with 'p' match.
func stripPrefix(address string) string {
	switch {
	case strings.HasPrefix(address, "bc1p"):
		return address[4:]
	case strings.HasPrefix(address, "bc1"):
		return address[3:]
	case address == "":
		return address
	default:
		return address[1:]
	}
}
