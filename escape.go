package main

import (
	"regexp"
	"strings"
	"unicode"
)

// Matches CSI, OSC and two-byte escape sequences.
var ansiRe = regexp.MustCompile(`\x1B(?:\][^\x07\x1B]*(?:\x07|\x1B\\)|\[[0-?]*[ -/]*[@-~]|[@-Z\\-_])`)

// sanitize makes server-supplied text safe to print: escape sequences and
// control characters other than newline and tab are dropped.
func sanitize(s string) string {
	s = ansiRe.ReplaceAllString(s, "")
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
