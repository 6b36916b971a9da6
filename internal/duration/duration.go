// Package duration parses the human-readable duration literals accepted in
// attribute overrides and CLI flags ("1s", "500ms", "2m").
package duration

import (
	"fmt"
	"time"
)

// Parse parses a duration literal. Semantics match Go's time.ParseDuration,
// which covers the same unit suffixes (ns, us/µs, ms, s, m, h) that the
// humantime-style literals in the registration schema use.
//
// No example in the corpus pulls in a humantime-equivalent third-party
// parser, so this wraps the standard library rather than inventing a
// dependency; see DESIGN.md.
func Parse(literal string) (time.Duration, error) {
	d, err := time.ParseDuration(literal)
	if err != nil {
		return 0, fmt.Errorf("malformed duration %q: %w", literal, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("malformed duration %q: negative durations are not allowed", literal)
	}
	return d, nil
}

// MustParse parses a literal known to be valid, such as a compiled-in
// default. It panics on error.
func MustParse(literal string) time.Duration {
	d, err := Parse(literal)
	if err != nil {
		panic(err)
	}
	return d
}
