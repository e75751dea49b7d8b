package util

import "strings"

// Ellipsis marks text cut by Truncate
const Ellipsis = "..."

// Truncate shortens s to at most max runes, ending in Ellipsis when cut.
// A non-positive max disables truncation.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= len(Ellipsis) {
		return string(runes[:max])
	}
	return strings.TrimRight(string(runes[:max-len(Ellipsis)]), " \t\n") + Ellipsis
}

// CollapseSpace joins all whitespace runs into single spaces
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
