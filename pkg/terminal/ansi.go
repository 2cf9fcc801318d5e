package terminal

import (
	"regexp"
	"strings"

	"anywhere-shell/pkg/frame"
)

// sgrPattern matches CSI sequences terminated by 'm' (colour and style).
// The match is non-greedy so text between two sequences survives.
var sgrPattern = regexp.MustCompile("\x1b\\[.*?m")

// StripEscapes removes SGR escape sequences from decoded console output.
// Text without an escape character is returned as is.
func StripEscapes(s string) string {
	if !strings.Contains(s, frame.Escape) {
		return s
	}
	return sgrPattern.ReplaceAllString(s, "")
}
