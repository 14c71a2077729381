package common

import "regexp"

// ansiRegex matches CSI escape sequences as emitted by OLT terminal
// firmware (colors on some BDCOM builds, cursor repositioning around the
// pager prompt).
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripANSI drops terminal escape sequences from captured CLI output so
// prompt matching and table parsing see plain text.
func StripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}
