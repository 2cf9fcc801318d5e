package terminal

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestStripEscapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "colour around word",
			input: "\u001b[31mHELLO\u001b[0m",
			want:  "HELLO",
		},
		{
			name:  "no escapes",
			input: "plain text\r\n",
			want:  "plain text\r\n",
		},
		{
			name:  "non greedy keeps text between sequences",
			input: "\x1b[1mbold\x1b[0m and \x1b[32mgreen\x1b[0m",
			want:  "bold and green",
		},
		{
			name:  "non-SGR sequence runs to the next m",
			input: "\x1b[?2004h\x1b[01;34m~\x1b[00m$ ",
			want:  "~$ ",
		},
		{
			name:  "escape without terminator untouched",
			input: "\x1b[31",
			want:  "\x1b[31",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripEscapes(tt.input))
		})
	}
}

func TestStripEscapesIdentityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("text without escape character is unchanged", prop.ForAll(
		func(s string) bool {
			s = strings.ReplaceAll(s, "\x1b", "")
			return StripEscapes(s) == s
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
