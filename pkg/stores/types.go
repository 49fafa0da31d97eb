package stores

import (
	"fmt"
	"sort"
	"time"

	"github.com/jinzhu/copier"
)

// DocumentVersion is written to every persisted document.
const DocumentVersion = "1.0"

// Configuration is a named set of environment variables plus metadata.
type Configuration struct {
	Alias       string            `json:"alias" yaml:"alias"`
	Variables   map[string]string `json:"variables" yaml:"variables"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time         `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at" yaml:"updated_at"`
}

// cloneOption deep copies maps. time.Time has no exported fields, so it is
// copied by value through a converter.
var cloneOption = copier.Option{
	DeepCopy: true,
	Converters: []copier.TypeConverter{{
		SrcType: time.Time{},
		DstType: time.Time{},
		Fn: func(src interface{}) (interface{}, error) {
			return src, nil
		},
	}},
}

// Clone returns a deep copy of the configuration.
func (c *Configuration) Clone() *Configuration {
	if c == nil {
		return nil
	}
	out := &Configuration{}
	if err := copier.CopyWithOption(out, c, cloneOption); err != nil {
		// copier only fails on mismatched kinds, which cannot happen here.
		panic(fmt.Sprintf("stores: clone configuration %q: %v", c.Alias, err))
	}
	if out.Variables == nil {
		out.Variables = map[string]string{}
	}
	return out
}

// Document is the persisted root object: every configuration keyed by alias
// and the single active-configuration pointer.
type Document struct {
	Configs      map[string]*Configuration `json:"configs" yaml:"configs"`
	ActiveConfig *string                   `json:"active_config" yaml:"active_config"`
	LastModified time.Time                 `json:"last_modified" yaml:"last_modified"`
	Version      string                    `json:"version" yaml:"version"`
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{
		Configs: make(map[string]*Configuration),
		Version: DocumentVersion,
	}
}

// Active returns the active alias, or "" when none is set.
func (d *Document) Active() string {
	if d.ActiveConfig == nil {
		return ""
	}
	return *d.ActiveConfig
}

// SetActive points the document at alias. The alias must exist.
func (d *Document) SetActive(alias string) bool {
	if _, ok := d.Configs[alias]; !ok {
		return false
	}
	d.ActiveConfig = &alias
	return true
}

// ClearActive unsets the active pointer.
func (d *Document) ClearActive() {
	d.ActiveConfig = nil
}

// Get returns the stored configuration without copying.
func (d *Document) Get(alias string) (*Configuration, bool) {
	c, ok := d.Configs[alias]
	return c, ok
}

// Put stores cfg under its alias, replacing any previous entry.
func (d *Document) Put(cfg *Configuration) {
	if d.Configs == nil {
		d.Configs = make(map[string]*Configuration)
	}
	d.Configs[cfg.Alias] = cfg
}

// Remove deletes alias and clears the active pointer if it pointed there.
func (d *Document) Remove(alias string) bool {
	if _, ok := d.Configs[alias]; !ok {
		return false
	}
	delete(d.Configs, alias)
	if d.Active() == alias {
		d.ClearActive()
	}
	return true
}

// Aliases returns every alias in alphabetical order.
func (d *Document) Aliases() []string {
	aliases := make([]string, 0, len(d.Configs))
	for alias := range d.Configs {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	return aliases
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		Configs:      make(map[string]*Configuration, len(d.Configs)),
		LastModified: d.LastModified,
		Version:      d.Version,
	}
	for alias, cfg := range d.Configs {
		out.Configs[alias] = cfg.Clone()
	}
	if d.ActiveConfig != nil {
		active := *d.ActiveConfig
		out.ActiveConfig = &active
	}
	return out
}

// CheckConsistency verifies the structural invariants of a loaded document:
// every entry is non-nil and keyed by its own alias, and the active pointer
// names an existing configuration.
func (d *Document) CheckConsistency() error {
	for alias, cfg := range d.Configs {
		if cfg == nil {
			return fmt.Errorf("configuration %q is null", alias)
		}
		if cfg.Alias == "" {
			cfg.Alias = alias
		}
		if cfg.Alias != alias {
			return fmt.Errorf("alias mismatch: key %q vs configuration alias %q", alias, cfg.Alias)
		}
	}
	if active := d.Active(); active != "" {
		if _, ok := d.Configs[active]; !ok {
			return fmt.Errorf("active configuration %q does not exist", active)
		}
	}
	return nil
}

// normalize fills defaults for documents written by older versions.
func (d *Document) normalize() {
	if d.Configs == nil {
		d.Configs = make(map[string]*Configuration)
	}
	if d.Version == "" {
		d.Version = DocumentVersion
	}
	if d.ActiveConfig != nil && *d.ActiveConfig == "" {
		d.ActiveConfig = nil
	}
	for _, cfg := range d.Configs {
		if cfg != nil && cfg.Variables == nil {
			cfg.Variables = map[string]string{}
		}
	}
}
