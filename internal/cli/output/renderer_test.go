package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(mode Mode, isTTY bool) (*Renderer, *bytes.Buffer, *bytes.Buffer) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return NewRendererWithTTY(out, errOut, isTTY, mode), out, errOut
}

func TestEffectiveMode(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		isTTY bool
		want  Mode
	}{
		{"auto on terminal", ModeAuto, true, ModeText},
		{"auto piped", ModeAuto, false, ModeMarkdown},
		{"empty piped", "", false, ModeMarkdown},
		{"explicit json", ModeJSON, true, ModeJSON},
		{"explicit text piped", ModeText, false, ModeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestRenderer(tt.mode, tt.isTTY)
			assert.Equal(t, tt.want, r.EffectiveMode())
		})
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("JSON")
	require.NoError(t, err)
	assert.Equal(t, ModeJSON, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeAuto, m)

	_, err = ParseMode("xml")
	assert.ErrorContains(t, err, "unknown output format")
}

func TestHeader_Markdown(t *testing.T) {
	r, out, _ := newTestRenderer(ModeMarkdown, false)
	r.Header(2, "Scan")
	assert.Equal(t, "## Scan\n", out.String())
}

func TestNoANSIWhenPiped(t *testing.T) {
	r, out, errOut := newTestRenderer(ModeText, false)
	r.Header(1, "Scan")
	r.Success("done")
	r.Muted("quiet")
	r.StatusLine("a.sql", "error", "boom")
	r.Warning("careful")

	assert.NotContains(t, out.String(), "\x1b[")
	assert.NotContains(t, errOut.String(), "\x1b[")
	assert.Contains(t, out.String(), "✓ done")
	assert.Contains(t, out.String(), "✗ a.sql boom")
	assert.Contains(t, errOut.String(), "! careful")
}

func TestJSONAndYAML(t *testing.T) {
	v := map[string]int{"files": 2}

	r, out, _ := newTestRenderer(ModeJSON, false)
	require.NoError(t, r.JSON(v))
	assert.Equal(t, "{\n  \"files\": 2\n}\n", out.String())

	r, out, _ = newTestRenderer(ModeYAML, false)
	require.NoError(t, r.YAML(v))
	assert.Equal(t, "files: 2\n", out.String())
}

func TestTable(t *testing.T) {
	r, out, _ := newTestRenderer(ModeText, false)
	r.Table([]string{"Path", "Units"}, [][]string{{"a.sql", "3"}})

	s := out.String()
	assert.Contains(t, s, "PATH")
	assert.Contains(t, s, "a.sql")
	assert.True(t, strings.HasPrefix(s, "┌"))
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "# Title", FormatHeader(0, "Title"))
	assert.Equal(t, "### Title", FormatHeader(3, "Title"))
	assert.Equal(t, "- **Files:** 3", FormatKeyValue("Files", "3"))
	assert.Equal(t,
		"| Path | Units |\n| --- | --- |\n| a\\|b.sql | 1 |\n",
		FormatTable([]string{"Path", "Units"}, [][]string{{"a|b.sql", "1"}}),
	)
}
