// Package ticket generates the short codes handed to correspondents when an
// intake reaches the rating stage.
package ticket

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// DefaultPrefix is the human-readable prefix used when none is configured.
const DefaultPrefix = "DP"

var suffixPattern = regexp.MustCompile(`^[0-9A-F]{8}$`)

// Generate returns prefix followed by the first segment of a random UUID,
// uppercased. The 32-bit suffix needs no counter or persistence.
func Generate(prefix string) string {
	id := uuid.New().String()
	return prefix + strings.ToUpper(id[:8])
}

// Generator returns a generator bound to prefix.
func Generator(prefix string) func() string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return func() string { return Generate(prefix) }
}

// Valid reports whether code has the given prefix and a well-formed suffix.
func Valid(prefix, code string) bool {
	rest, ok := strings.CutPrefix(code, prefix)
	if !ok {
		return false
	}
	return suffixPattern.MatchString(rest)
}

// Normalize uppercases and trims user-typed codes before lookup.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
