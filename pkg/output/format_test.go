package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type consoleRow struct {
	ID         int    `json:"id" yaml:"id"`
	Executable string `json:"executable" yaml:"executable"`
	FrameURL   string `json:"console_frame_url" yaml:"console_frame_url"`
}

var sampleRows = []consoleRow{
	{ID: 1, Executable: "bash", FrameURL: "/user/alice/consoles/1/frame/"},
	{ID: 2, Executable: "python3.10", FrameURL: "/user/alice/consoles/2/frame/"},
}

func TestFormatter_OutputJSON(t *testing.T) {
	var buf bytes.Buffer
	formatter := New(FormatJSON)
	formatter.SetWriter(&buf)

	require.NoError(t, formatter.Output(sampleRows))

	var got []consoleRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sampleRows, got)
	assert.Contains(t, buf.String(), "\n  {", "output should be indented")
}

func TestFormatter_OutputYAML(t *testing.T) {
	var buf bytes.Buffer
	formatter := New(FormatYAML)
	formatter.SetWriter(&buf)

	require.NoError(t, formatter.Output(sampleRows))

	assert.True(t, strings.HasPrefix(buf.String(), "- id: 1\n"), "got %q", buf.String())

	var got []consoleRow
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, sampleRows, got)
}

func TestFormatter_OutputText(t *testing.T) {
	var buf bytes.Buffer
	formatter := New(FormatText)
	formatter.SetWriter(&buf)

	require.NoError(t, formatter.Output("ready"))
	assert.Equal(t, "ready\n", buf.String())
}

func TestFormatter_OutputUnsupported(t *testing.T) {
	formatter := New(Format("xml"))
	formatter.SetWriter(&bytes.Buffer{})

	err := formatter.Output(sampleRows)
	if err == nil || !strings.Contains(err.Error(), "unsupported output format: xml") {
		t.Errorf("Output() error = %v, want unsupported format error", err)
	}
}

func TestFormatter_Kinds(t *testing.T) {
	tests := []struct {
		name           string
		format         Format
		wantJSON       bool
		wantText       bool
		wantStructured bool
	}{
		{name: "json format", format: FormatJSON, wantJSON: true, wantStructured: true},
		{name: "yaml format", format: FormatYAML, wantStructured: true},
		{name: "text format", format: FormatText, wantText: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(tt.format)
			if got := f.IsJSON(); got != tt.wantJSON {
				t.Errorf("IsJSON() = %v, want %v", got, tt.wantJSON)
			}
			if got := f.IsText(); got != tt.wantText {
				t.Errorf("IsText() = %v, want %v", got, tt.wantText)
			}
			if got := f.IsStructured(); got != tt.wantStructured {
				t.Errorf("IsStructured() = %v, want %v", got, tt.wantStructured)
			}
		})
	}
}

func TestGetFormatFromCmd(t *testing.T) {
	tests := []struct {
		name       string
		flagValue  string
		want       Format
		wantErr    bool
		errMessage string
	}{
		{name: "json format", flagValue: "json", want: FormatJSON},
		{name: "yaml format", flagValue: "yaml", want: FormatYAML},
		{name: "text format", flagValue: "text", want: FormatText},
		{
			name:       "invalid format",
			flagValue:  "xml",
			want:       FormatText,
			wantErr:    true,
			errMessage: "invalid output format: xml",
		},
		{
			name:       "empty format",
			flagValue:  "",
			want:       FormatText,
			wantErr:    true,
			errMessage: "invalid output format:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "test"}
			AddFormatFlag(cmd)
			require.NoError(t, cmd.Flags().Set("output", tt.flagValue))

			got, err := GetFormatFromCmd(cmd)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMessage)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAddFormatFlag(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	AddFormatFlag(cmd)

	flag := cmd.Flags().Lookup("output")
	if flag == nil {
		t.Fatal("AddFormatFlag() did not add 'output' flag")
	}
	assert.Equal(t, "o", flag.Shorthand)
	assert.Equal(t, "text", flag.DefValue)
	assert.Contains(t, flag.Usage, "yaml")
}
