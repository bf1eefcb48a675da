// ABOUTME: Trust level enumeration and the total order used by authorization decisions.
// ABOUTME: Unknown levels rank below basic so every comparison fails closed.

package trust

import "strings"

// Level is a declared trust tier. The set is closed and totally ordered:
// Basic < Verified < Enterprise.
type Level string

const (
	Basic      Level = "basic"
	Verified   Level = "verified"
	Enterprise Level = "enterprise"
)

// Rank returns the position of a level in the total order. Unrecognized
// levels rank 0, below every member of the set.
func Rank(l Level) int {
	switch l {
	case Basic:
		return 1
	case Verified:
		return 2
	case Enterprise:
		return 3
	default:
		return 0
	}
}

// Valid reports whether l is a member of the closed set.
func Valid(l Level) bool {
	return Rank(l) > 0
}

// AtLeast reports whether l satisfies the required level. An unrecognized
// level on either side yields false, never a permissive default.
func (l Level) AtLeast(required Level) bool {
	lr, rr := Rank(l), Rank(required)
	if lr == 0 || rr == 0 {
		return false
	}
	return lr >= rr
}

// Parse normalizes s into a Level. ok is false for anything outside the set.
func Parse(s string) (Level, bool) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if !Valid(l) {
		return "", false
	}
	return l, true
}

// Levels returns the full set in ascending rank order.
func Levels() []Level {
	return []Level{Basic, Verified, Enterprise}
}
