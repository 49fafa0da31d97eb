package codec

import (
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/envswitch/envswitch/pkg/errdefs"
	"github.com/envswitch/envswitch/pkg/stores"
)

// DefaultAlias names configurations decoded from inputs that carry no alias.
const DefaultAlias = "imported"

// EncodeOptions controls Encode output.
type EncodeOptions struct {
	// Metadata includes descriptions, timestamps and, for ENV, per-alias
	// comment markers.
	Metadata bool

	// Pretty indents JSON output. Other formats ignore it.
	Pretty bool
}

// DecodeOptions controls Decode behaviour.
type DecodeOptions struct {
	// DefaultAlias names the configuration for inputs without alias
	// structure: ENV files without markers and flat JSON/YAML objects.
	DefaultAlias string
}

func (o DecodeOptions) defaultAlias() string {
	if o.DefaultAlias == "" {
		return DefaultAlias
	}
	return o.DefaultAlias
}

// Collision is a variable defined by more than one alias in a flattened
// ENV export. The value written is the one from the last alias.
type Collision struct {
	Key     string   `json:"key"`
	Aliases []string `json:"aliases"`
}

// EncodeResult is the encoded bytes plus export statistics.
type EncodeResult struct {
	Data           []byte      `json:"-"`
	Format         Format      `json:"-"`
	Configurations int         `json:"configurations"`
	Variables      int         `json:"variables"`
	Collisions     []Collision `json:"collisions,omitempty"`
}

// Encode serializes the configurations in doc. Configurations are written
// in alphabetical alias order and variables in key order.
func Encode(doc *stores.Document, format Format, opts EncodeOptions) (*EncodeResult, error) {
	if doc == nil {
		doc = stores.NewDocument()
	}

	result := &EncodeResult{
		Format:         format,
		Configurations: len(doc.Configs),
	}
	for _, cfg := range doc.Configs {
		result.Variables += len(cfg.Variables)
	}

	var err error
	switch format {
	case FormatJSON:
		result.Data, err = encodeJSON(doc, opts)
	case FormatENV:
		result.Data, result.Collisions, err = encodeENV(doc, opts)
	case FormatYAML:
		result.Data, err = encodeYAML(doc, opts)
	default:
		return nil, errdefs.Newf(errdefs.KindUnknownFormat, "cannot encode format %s", format).
			WithOperation("encode")
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Decode parses data into a document. The returned document never has an
// active pointer set unless the input carried one. Decode checks structure
// only; alias and variable validation is the caller's job.
func Decode(data []byte, format Format, opts DecodeOptions) (*stores.Document, error) {
	var (
		doc *stores.Document
		err error
	)
	switch format {
	case FormatJSON:
		doc, err = decodeJSON(data, opts)
	case FormatENV:
		doc, err = decodeENV(data, opts)
	case FormatYAML:
		doc, err = decodeYAML(data, opts)
	default:
		return nil, errdefs.Newf(errdefs.KindUnknownFormat, "cannot decode format %s", format).
			WithOperation("decode")
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// envelope is the exchange shape shared by JSON and YAML.
type envelope struct {
	Version      string            `json:"version,omitempty" yaml:"version,omitempty"`
	ActiveConfig *string           `json:"active_config,omitempty" yaml:"active_config,omitempty"`
	Configs      map[string]*entry `json:"configs" yaml:"configs"`
}

type entry struct {
	Alias       string            `json:"alias,omitempty" yaml:"alias,omitempty"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Variables   map[string]string `json:"variables" yaml:"variables"`
	CreatedAt   *time.Time        `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   *time.Time        `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

func toEnvelope(doc *stores.Document, opts EncodeOptions) *envelope {
	env := &envelope{
		Version: stores.DocumentVersion,
		Configs: make(map[string]*entry, len(doc.Configs)),
	}
	if opts.Metadata {
		if active := doc.Active(); active != "" {
			if _, ok := doc.Configs[active]; ok {
				env.ActiveConfig = &active
			}
		}
	}
	for alias, cfg := range doc.Configs {
		e := &entry{
			Alias:     alias,
			Variables: cfg.Variables,
		}
		if e.Variables == nil {
			e.Variables = map[string]string{}
		}
		if opts.Metadata {
			e.Description = cfg.Description
			e.CreatedAt = timePtr(cfg.CreatedAt)
			e.UpdatedAt = timePtr(cfg.UpdatedAt)
		}
		env.Configs[alias] = e
	}
	return env
}

func fromEnvelope(env *envelope) (*stores.Document, error) {
	doc := stores.NewDocument()
	for alias, e := range env.Configs {
		if e == nil {
			return nil, errdefs.Newf(errdefs.KindFormatError, "configuration %q is empty", alias).
				WithAlias(alias).
				WithField("configs." + alias)
		}
		if e.Alias != "" && e.Alias != alias {
			return nil, errdefs.Newf(errdefs.KindFormatError,
				"configuration key %q does not match its alias %q", alias, e.Alias).
				WithAlias(alias).
				WithField("configs." + alias + ".alias")
		}
		cfg := &stores.Configuration{
			Alias:       alias,
			Variables:   e.Variables,
			Description: e.Description,
			CreatedAt:   timeValue(e.CreatedAt),
			UpdatedAt:   timeValue(e.UpdatedAt),
		}
		if cfg.Variables == nil {
			cfg.Variables = map[string]string{}
		}
		doc.Put(cfg)
	}
	if env.ActiveConfig != nil {
		doc.SetActive(*env.ActiveConfig)
	}
	return doc, nil
}

// flatDocument wraps a bare KEY -> value map as a single configuration.
func flatDocument(vars map[string]string, opts DecodeOptions) *stores.Document {
	doc := stores.NewDocument()
	doc.Put(&stores.Configuration{
		Alias:     opts.defaultAlias(),
		Variables: vars,
	})
	return doc
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var lineNumberPattern = regexp.MustCompile(`line (\d+)`)

// lineFromMessage extracts "line N" from a parser error message.
func lineFromMessage(msg string) int {
	m := lineNumberPattern.FindStringSubmatch(msg)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
