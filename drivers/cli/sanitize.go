package cli

import "strings"

// DefaultMaxOutput bounds captured command output.
const DefaultMaxOutput = 10240

// TruncationMarker is appended to output cut at the size limit.
const TruncationMarker = "\n...[output truncated]"

// SanitizeCommand removes NUL bytes and ASCII control characters from
// operator-supplied command text, keeping CR and LF. Printable text passes
// through unchanged, so the function is idempotent.
func SanitizeCommand(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\r' || r == '\n' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

// Truncate cuts output at max bytes and appends the truncation marker.
// Output at or below the limit is returned unchanged.
func Truncate(s string, max int) string {
	if max <= 0 {
		max = DefaultMaxOutput
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + TruncationMarker
}
