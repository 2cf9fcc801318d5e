package frame

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "plain command",
			text: "ls",
			want: `["ls\r\n"]`,
		},
		{
			name: "empty line",
			text: "",
			want: `["\r\n"]`,
		},
		{
			name: "embedded quotes",
			text: `echo "hi"`,
			want: `["echo \"hi\"\r\n"]`,
		},
		{
			name: "backslash",
			text: `printf 'a\nb'`,
			want: `["printf 'a\\nb'\r\n"]`,
		},
		{
			name: "shell redirection is not html escaped",
			text: "cat a > b && echo <x>",
			want: `["cat a > b && echo <x>\r\n"]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthFrame(t *testing.T) {
	got, err := AuthFrame("abc123", 42)
	require.NoError(t, err)
	assert.Equal(t, `["\u001b[abc123;42;;a"]`, got)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantText string
		wantOK   bool
		wantErr  bool
	}{
		{
			name:   "open marker has no text",
			raw:    "o",
			wantOK: false,
		},
		{
			name:   "heartbeat has no text",
			raw:    "h",
			wantOK: false,
		},
		{
			name:     "data frame",
			raw:      `a["hello\r\n"]`,
			wantText: "hello\r\n",
			wantOK:   true,
		},
		{
			name:     "empty string payload is still text",
			raw:      `a[""]`,
			wantText: "",
			wantOK:   true,
		},
		{
			name:     "escape sequence decoded",
			raw:      `a["\u001b[31mred"]`,
			wantText: "\x1b[31mred",
			wantOK:   true,
		},
		{
			name:    "malformed json",
			raw:     `a["unterminated`,
			wantErr: true,
		},
		{
			name:    "empty array",
			raw:     `a[]`,
			wantErr: true,
		},
		{
			name:    "not an array",
			raw:     `a{"x":1}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, ok, err := Decode(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsProtocolDesyncError(err), "expected ProtocolDesyncError, got %T", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func TestParse(t *testing.T) {
	t.Run("batched data frame", func(t *testing.T) {
		env, err := Parse(`a["one","two"]`)
		require.NoError(t, err)
		assert.Equal(t, KindData, env.Kind)
		assert.Equal(t, []string{"one", "two"}, env.Messages)
		assert.Equal(t, "onetwo", env.Text())
		assert.True(t, env.HasText())
	})

	t.Run("close frame", func(t *testing.T) {
		env, err := Parse(`c[3000,"Go away!"]`)
		require.NoError(t, err)
		assert.Equal(t, KindClose, env.Kind)
		assert.Equal(t, 3000, env.CloseCode)
		assert.Equal(t, "Go away!", env.CloseReason)
		assert.False(t, env.HasText())
	})

	t.Run("open and heartbeat", func(t *testing.T) {
		env, err := Parse("o")
		require.NoError(t, err)
		assert.Equal(t, KindOpen, env.Kind)

		env, err = Parse("h")
		require.NoError(t, err)
		assert.Equal(t, KindHeartbeat, env.Kind)
	})

	t.Run("unknown and empty", func(t *testing.T) {
		env, err := Parse("zzz")
		require.NoError(t, err)
		assert.Equal(t, KindUnknown, env.Kind)

		env, err = Parse("")
		require.NoError(t, err)
		assert.Equal(t, KindUnknown, env.Kind)
	})

	t.Run("malformed close frame", func(t *testing.T) {
		_, err := Parse(`c[3000,`)
		assert.True(t, IsProtocolDesyncError(err))
	})
}

func TestProtocolDesyncErrorTruncatesFrame(t *testing.T) {
	long := `a["` + strings.Repeat("x", 200)
	_, _, err := Decode(long)
	require.Error(t, err)
	assert.Contains(t, err.Error(), strings.Repeat("x", 61)+"...")
	assert.NotContains(t, err.Error(), strings.Repeat("x", 62))
}

func TestCodecRoundTripProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("decode of an encoded command returns it with CRLF", prop.ForAll(
		func(text string) bool {
			if !utf8.ValidString(text) {
				return true
			}
			encoded, err := Encode(text)
			if err != nil {
				return false
			}
			decoded, ok, err := Decode("a" + encoded)
			return err == nil && ok && decoded == text+"\r\n"
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
