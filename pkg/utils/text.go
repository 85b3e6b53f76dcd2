// Package utils provides shared utilities for text, math, and logging.
package utils

import "strings"

// Preview returns the first n characters (runes) of s. If n is 0 or negative,
// returns s unchanged.
func Preview(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Truncate returns s truncated to maxLen characters, with "..." appended if truncated.
// If maxLen is 0 or negative, returns s unchanged.
func Truncate(s string, maxLen int) string {
	p := Preview(s, maxLen)
	if len(p) == len(s) {
		return s
	}
	return p + "..."
}

// CollapseSpace trims s and replaces every whitespace run with one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
