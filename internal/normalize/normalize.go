// Package normalize canonicalizes submitted text and derives the content
// fingerprint used for exact-duplicate lookups.
package normalize

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode"
)

// Normalize lowercases raw text, strips ASCII punctuation, and collapses every
// run of whitespace into a single space. Letters outside ASCII are kept as-is
// apart from case folding, so accented, Cyrillic, Arabic or CJK text survives.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	pendingSpace := false
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = b.Len() > 0
		case r < unicode.MaxASCII && isASCIIPunct(r):
			// dropped
		default:
			if pendingSpace {
				b.WriteByte(' ')
				pendingSpace = false
			}
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// Fingerprint returns the hex SHA-256 of normalized text. Empty input yields
// an empty fingerprint; the caller decides whether that is acceptable.
func Fingerprint(normalized string) string {
	if normalized == "" {
		return ""
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(normalized)))
}

// Content normalizes raw and fingerprints the result in one step.
func Content(raw string) (normalized, fingerprint string) {
	normalized = Normalize(raw)
	return normalized, Fingerprint(normalized)
}

// Tokens splits normalized text on single spaces.
func Tokens(normalized string) []string {
	if normalized == "" {
		return nil
	}
	return strings.Split(normalized, " ")
}

func isASCIIPunct(r rune) bool {
	return (r >= '!' && r <= '/') ||
		(r >= ':' && r <= '@') ||
		(r >= '[' && r <= '`') ||
		(r >= '{' && r <= '~')
}
