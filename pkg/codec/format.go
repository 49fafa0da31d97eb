package codec

import (
	"bytes"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/envswitch/envswitch/pkg/errdefs"
)

// Format is one of the supported exchange formats.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatENV
	FormatYAML
)

// Formats lists every concrete format.
var Formats = []Format{FormatJSON, FormatENV, FormatYAML}

// String returns the lowercase format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatENV:
		return "env"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// Extension returns the preferred file extension, including the dot.
func (f Format) Extension() string {
	switch f {
	case FormatJSON:
		return ".json"
	case FormatENV:
		return ".env"
	case FormatYAML:
		return ".yaml"
	default:
		return ""
	}
}

// MarshalJSON encodes the format by name.
func (f Format) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(f.String())), nil
}

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "json":
		return FormatJSON, nil
	case "env", "dotenv":
		return FormatENV, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return FormatUnknown, errdefs.Newf(errdefs.KindUnknownFormat,
		"unknown format %q (supported: json, env, yaml)", name)
}

// FormatFromPath infers a format from a file name alone.
func FormatFromPath(path string) Format {
	if path == "" {
		return FormatUnknown
	}
	base := strings.ToLower(filepath.Base(path))
	switch filepath.Ext(base) {
	case ".json":
		return FormatJSON
	case ".env":
		return FormatENV
	case ".yaml", ".yml":
		return FormatYAML
	}
	// .env.local, .env.production and friends
	if strings.HasPrefix(base, ".env") {
		return FormatENV
	}
	return FormatUnknown
}

var (
	envLinePattern  = regexp.MustCompile(`^(export\s+)?[A-Za-z_][A-Za-z0-9_]*\s*=`)
	yamlLinePattern = regexp.MustCompile(`^(---|- |[^=#]*:(\s|$))`)
)

// DetectFormat resolves the format of content, preferring the extension of
// path and falling back to sniffing the first significant line.
func DetectFormat(path string, content []byte) (Format, error) {
	if f := FormatFromPath(path); f != FormatUnknown {
		return f, nil
	}

	trimmed := bytes.TrimSpace(bytes.TrimPrefix(content, []byte("\xef\xbb\xbf")))
	if len(trimmed) == 0 {
		return FormatUnknown, errdefs.New(errdefs.KindUnknownFormat, "cannot detect format of empty input")
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return FormatJSON, nil
	}

	sawMarker := false
	for _, raw := range strings.Split(string(trimmed), "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			sawMarker = sawMarker || strings.HasPrefix(line, configMarker)
			continue
		}
		if envLinePattern.MatchString(line) {
			return FormatENV, nil
		}
		if yamlLinePattern.MatchString(line) {
			return FormatYAML, nil
		}
		return FormatUnknown, errdefs.Newf(errdefs.KindUnknownFormat,
			"cannot detect format from line %q; expected JSON, KEY=VALUE lines or YAML", truncate(line, 40))
	}
	if sawMarker {
		return FormatENV, nil
	}

	return FormatUnknown, errdefs.New(errdefs.KindUnknownFormat,
		"cannot detect format; expected JSON, KEY=VALUE lines or YAML")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
