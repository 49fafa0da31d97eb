package codec

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/envswitch/envswitch/pkg/errdefs"
	"github.com/envswitch/envswitch/pkg/stores"
)

// Comment markers written before each configuration block when an ENV
// export carries metadata. Decode uses them to split configurations.
const (
	configMarker      = "# Configuration:"
	descriptionMarker = "# Description:"
	createdMarker     = "# Created:"
	updatedMarker     = "# Updated:"
)

var safeEnvValue = regexp.MustCompile(`^[A-Za-z0-9_./:@%+,=-]+$`)

func encodeENV(doc *stores.Document, opts EncodeOptions) ([]byte, []Collision, error) {
	var b bytes.Buffer
	aliases := doc.Aliases()

	if opts.Metadata {
		b.WriteString("# Exported by envswitch\n")
		fmt.Fprintf(&b, "# Total configurations: %d\n", len(aliases))
		if active := doc.Active(); active != "" {
			if _, ok := doc.Configs[active]; ok {
				fmt.Fprintf(&b, "# Active configuration: %s\n", active)
			}
		}
		for _, alias := range aliases {
			cfg := doc.Configs[alias]
			b.WriteByte('\n')
			fmt.Fprintf(&b, "%s %s\n", configMarker, alias)
			if cfg.Description != "" {
				fmt.Fprintf(&b, "%s %s\n", descriptionMarker, singleLine(cfg.Description))
			}
			if !cfg.CreatedAt.IsZero() {
				fmt.Fprintf(&b, "%s %s\n", createdMarker, cfg.CreatedAt.UTC().Format(time.RFC3339Nano))
			}
			if !cfg.UpdatedAt.IsZero() {
				fmt.Fprintf(&b, "%s %s\n", updatedMarker, cfg.UpdatedAt.UTC().Format(time.RFC3339Nano))
			}
			for _, key := range sortedKeys(cfg.Variables) {
				if err := writeEnvLine(&b, key, cfg.Variables[key]); err != nil {
					return nil, nil, err.WithAlias(alias)
				}
			}
		}
		return b.Bytes(), nil, nil
	}

	// Without markers the output is the union of every alias's variables.
	// Aliases are applied alphabetically, so the last one wins a collision.
	merged := make(map[string]string)
	owners := make(map[string][]string)
	for _, alias := range aliases {
		for key, value := range doc.Configs[alias].Variables {
			merged[key] = value
			owners[key] = append(owners[key], alias)
		}
	}

	var collisions []Collision
	for _, key := range sortedKeys(merged) {
		if err := writeEnvLine(&b, key, merged[key]); err != nil {
			owner := owners[key]
			return nil, nil, err.WithAlias(owner[len(owner)-1])
		}
		if len(owners[key]) > 1 {
			collisions = append(collisions, Collision{Key: key, Aliases: owners[key]})
		}
	}
	return b.Bytes(), collisions, nil
}

func writeEnvLine(b *bytes.Buffer, key, value string) *errdefs.Error {
	formatted, ok := formatEnvValue(value)
	if !ok {
		return errdefs.Newf(errdefs.KindFormatError,
			"value of %s cannot be written as ENV; export as JSON or YAML instead", key).
			WithField(key).
			WithOperation("encode")
	}
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(formatted)
	b.WriteByte('\n')
	return nil
}

// formatEnvValue returns the first rendering of v that godotenv reads back
// unchanged: bare, then double-quoted, then single-quoted. The result never
// spans more than one line.
func formatEnvValue(v string) (string, bool) {
	var candidates []string
	if v == "" || safeEnvValue.MatchString(v) {
		candidates = append(candidates, v)
	}
	if quoted, err := godotenv.Marshal(map[string]string{envValueKey: v}); err == nil {
		candidates = append(candidates, strings.TrimPrefix(quoted, envValueKey+"="))
	}
	if !strings.ContainsAny(v, "\n\r") {
		candidates = append(candidates, "'"+v+"'")
	}

	for _, c := range candidates {
		if strings.ContainsAny(c, "\n\r") {
			continue
		}
		if got, err := parseEnvValue(c); err == nil && got == v {
			return c, true
		}
	}
	return "", false
}

func singleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// envBlock accumulates one configuration while decoding.
type envBlock struct {
	cfg      *stores.Configuration
	explicit bool
}

func decodeENV(data []byte, opts DecodeOptions) (*stores.Document, error) {
	doc := stores.NewDocument()
	block := &envBlock{cfg: newEnvConfig(opts.defaultAlias())}

	flush := func() {
		if !block.explicit && len(block.cfg.Variables) == 0 {
			return
		}
		existing, ok := doc.Get(block.cfg.Alias)
		if !ok {
			doc.Put(block.cfg)
			return
		}
		for k, v := range block.cfg.Variables {
			existing.Variables[k] = v
		}
		if block.cfg.Description != "" {
			existing.Description = block.cfg.Description
		}
	}

	text := strings.TrimPrefix(string(data), "\xef\xbb\xbf")
	for i, raw := range strings.Split(text, "\n") {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#") {
			switch {
			case strings.HasPrefix(line, configMarker):
				alias := strings.TrimSpace(strings.TrimPrefix(line, configMarker))
				if alias == "" {
					return nil, errdefs.New(errdefs.KindFormatError, "configuration marker without a name").
						WithLine(lineNo).
						WithOperation("decode")
				}
				flush()
				block = &envBlock{cfg: newEnvConfig(alias), explicit: true}
			case strings.HasPrefix(line, descriptionMarker):
				block.cfg.Description = strings.TrimSpace(strings.TrimPrefix(line, descriptionMarker))
			case strings.HasPrefix(line, createdMarker):
				block.cfg.CreatedAt = parseMarkerTime(strings.TrimPrefix(line, createdMarker))
			case strings.HasPrefix(line, updatedMarker):
				block.cfg.UpdatedAt = parseMarkerTime(strings.TrimPrefix(line, updatedMarker))
			}
			continue
		}

		key, value, err := parseEnvLine(line)
		if err != nil {
			return nil, err.WithLine(lineNo).WithAlias(block.cfg.Alias)
		}
		block.cfg.Variables[key] = value
	}
	flush()

	return doc, nil
}

func newEnvConfig(alias string) *stores.Configuration {
	return &stores.Configuration{Alias: alias, Variables: map[string]string{}}
}

// parseMarkerTime is lenient: an unparseable timestamp is dropped.
func parseMarkerTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func parseEnvLine(line string) (string, string, *errdefs.Error) {
	if rest, ok := strings.CutPrefix(line, "export"); ok && rest != "" && (rest[0] == ' ' || rest[0] == '\t') {
		line = strings.TrimSpace(rest)
	}

	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return "", "", errdefs.Newf(errdefs.KindFormatError, "expected KEY=VALUE, got %q", truncate(line, 40)).
			WithOperation("decode")
	}

	key := strings.TrimSpace(line[:eq])
	if key == "" {
		return "", "", errdefs.New(errdefs.KindFormatError, "missing variable name before '='").
			WithOperation("decode")
	}

	value, err := parseEnvValue(strings.TrimSpace(line[eq+1:]))
	if err != nil {
		return "", "", errdefs.Wrap(errdefs.KindFormatError, "invalid value", err).
			WithField(key).
			WithOperation("decode")
	}
	return key, value, nil
}

// envValueKey names the single statement handed to godotenv. Keys are
// checked by the Validator, so only the value goes through the parser.
const envValueKey = "V"

// parseEnvValue reads one raw value with godotenv's quoting and escape rules.
func parseEnvValue(raw string) (string, error) {
	vars, err := godotenv.Unmarshal(envValueKey + "=" + raw)
	if err != nil {
		return "", err
	}
	value, ok := vars[envValueKey]
	if !ok || len(vars) != 1 {
		return "", fmt.Errorf("unexpected text after value %q", truncate(raw, 20))
	}
	return value, nil
}
