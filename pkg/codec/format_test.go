package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envswitch/envswitch/pkg/errdefs"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"env", FormatENV},
		{"dotenv", FormatENV},
		{"yaml", FormatYAML},
		{" yml ", FormatYAML},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}

	_, err := ParseFormat("toml")
	assert.Equal(t, errdefs.KindUnknownFormat, errdefs.KindOf(err))
}

func TestFormatNames(t *testing.T) {
	for _, f := range Formats {
		parsed, err := ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, parsed)
		assert.Equal(t, f, FormatFromPath("export"+f.Extension()))
	}
	assert.Equal(t, "unknown", FormatUnknown.String())
	assert.Empty(t, FormatUnknown.Extension())

	data, err := json.Marshal(struct{ F Format }{FormatYAML})
	require.NoError(t, err)
	assert.JSONEq(t, `{"F": "yaml"}`, string(data))
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    Format
	}{
		{"json extension", "backup.json", "A=1", FormatJSON},
		{"env extension", "/tmp/prod.env", `{"a": 1}`, FormatENV},
		{"yaml extension", "cfg.YAML", "", FormatYAML},
		{"yml extension", "cfg.yml", "", FormatYAML},
		{"dotenv basename", "/srv/app/.env", "", FormatENV},
		{"dotenv variant", ".env.production", "", FormatENV},
		{"sniff json object", "", "  \n{\"configs\": {}}", FormatJSON},
		{"sniff json array", "data.txt", "[1]", FormatJSON},
		{"sniff env", "", "# comment\nAPI_URL=http://x\n", FormatENV},
		{"sniff env export", "", "export A=1\n", FormatENV},
		{"sniff yaml", "", "configs:\n  dev:\n", FormatYAML},
		{"sniff yaml with equals in value", "", "url: http://host?a=b\n", FormatYAML},
		{"sniff yaml document marker", "", "---\nA: 1\n", FormatYAML},
		{"sniff env markers only", "", "# Configuration: empty\n", FormatENV},
		{"bom", "", "\xef\xbb\xbf{}", FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.path, []byte(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectFormatFailures(t *testing.T) {
	for _, content := range []string{"", "   \n\t", "# just a comment\n", "hello world\n"} {
		_, err := DetectFormat("", []byte(content))
		assert.Equal(t, errdefs.KindUnknownFormat, errdefs.KindOf(err), "content %q", content)
	}
}
