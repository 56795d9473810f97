package bitcoin

import (
	"fmt"
	"strings"

	"github.com/Amr-9/btcvanity/pkg/generator"
)

// Bech32 charset (excludes 1, b, i, o to prevent ambiguity)
const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// Base58 charset (excludes 0, O, I, l)
const base58Charset = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// base58Folded is the Base58 alphabet as seen by the case-insensitive
// matcher: every letter is reachable through one of its cases.
var base58Folded = strings.ToLower(base58Charset)

// IsValidBech32Char checks if a character can appear in a lowercased
// Bech32/Bech32m address body.
func IsValidBech32Char(c rune) bool {
	return strings.ContainsRune(bech32Charset, c)
}

// IsValidBase58Char checks if a character can appear in a lowercased
// Base58 address.
func IsValidBase58Char(c rune) bool {
	return strings.ContainsRune(base58Folded, c)
}

// IsValidPattern checks if a pattern can ever match for the given format.
func IsValidPattern(pattern string, format generator.AddressFormat) bool {
	return len(InvalidChars(pattern, format)) == 0
}

// InvalidChars returns the characters of pattern that never occur in an
// address of the given format, compared case-insensitively.
func InvalidChars(pattern string, format generator.AddressFormat) []rune {
	valid := IsValidBase58Char
	if IsBech32Type(format) {
		valid = IsValidBech32Char
	}

	var invalid []rune
	for _, c := range strings.ToLower(pattern) {
		if !valid(c) {
			invalid = append(invalid, c)
		}
	}
	return invalid
}

// PatternWarnings explains why a search can never succeed. An empty result
// does not guarantee the pattern is reachable, only that no obvious
// obstacle was found.
func PatternWarnings(pattern string, format generator.AddressFormat,
	position generator.Position) []string {

	var warnings []string

	if invalid := InvalidChars(pattern, format); len(invalid) > 0 {
		warnings = append(warnings, fmt.Sprintf(
			"characters %q never appear in %s addresses",
			string(invalid), format))
	}

	// Native SegWit bodies always begin with the witness version
	// character 'q' once "bc1" is stripped.
	if format == generator.FormatNativeSegWit &&
		position == generator.PositionStart && pattern != "" &&
		!strings.HasPrefix(strings.ToLower(pattern), "q") {

		warnings = append(warnings, "p2wpkh addresses continue with "+
			"'q' after \"bc1\", so a start pattern must begin with 'q'")
	}

	return warnings
}
