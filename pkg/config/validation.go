package config

import (
	"fmt"
	"regexp"
	"sort"
	"unicode/utf8"

	"github.com/envswitch/envswitch/pkg/errdefs"
)

var (
	aliasPattern  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	envKeyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Limits bounds the size of user supplied data.
type Limits struct {
	MaxAliasLength       int `yaml:"max_alias_length" validate:"min=1,max=255"`
	MaxValueBytes        int `yaml:"max_value_bytes" validate:"min=1"`
	MaxVariables         int `yaml:"max_variables" validate:"min=1"`
	MaxDescriptionLength int `yaml:"max_description_length" validate:"min=0"`
}

// DefaultLimits returns the limits used when no settings file overrides them.
func DefaultLimits() Limits {
	return Limits{
		MaxAliasLength:       100,
		MaxValueBytes:        8192,
		MaxVariables:         1000,
		MaxDescriptionLength: 500,
	}
}

// Validator checks aliases and variables against a set of Limits.
// It is pure: no method touches the filesystem or mutates its input.
type Validator struct {
	limits Limits
}

// NewValidator creates a validator. Zero-valued limits fall back to defaults.
func NewValidator(limits Limits) *Validator {
	def := DefaultLimits()
	if limits.MaxAliasLength <= 0 {
		limits.MaxAliasLength = def.MaxAliasLength
	}
	if limits.MaxValueBytes <= 0 {
		limits.MaxValueBytes = def.MaxValueBytes
	}
	if limits.MaxVariables <= 0 {
		limits.MaxVariables = def.MaxVariables
	}
	if limits.MaxDescriptionLength <= 0 {
		limits.MaxDescriptionLength = def.MaxDescriptionLength
	}
	return &Validator{limits: limits}
}

// Limits returns the effective limits.
func (v *Validator) Limits() Limits {
	return v.limits
}

// ValidateAlias checks a configuration name.
func (v *Validator) ValidateAlias(alias string) error {
	switch {
	case alias == "":
		return errdefs.New(errdefs.KindInvalidName, "configuration name cannot be empty")
	case len(alias) > v.limits.MaxAliasLength:
		return errdefs.Newf(errdefs.KindInvalidName,
			"configuration name too long (max %d characters)", v.limits.MaxAliasLength).WithAlias(alias)
	case !aliasPattern.MatchString(alias):
		return errdefs.Newf(errdefs.KindInvalidName,
			"configuration name %q contains invalid characters", alias).WithAlias(alias)
	case alias[0] == '-':
		// Would be parsed as a flag by the CLI.
		return errdefs.Newf(errdefs.KindInvalidName,
			"configuration name %q cannot start with a hyphen", alias).WithAlias(alias)
	}
	return nil
}

// ValidateVarName checks an environment variable name.
func (v *Validator) ValidateVarName(name string) error {
	if name == "" {
		return errdefs.New(errdefs.KindInvalidVarName, "variable name cannot be empty")
	}
	if !envKeyPattern.MatchString(name) {
		return errdefs.Newf(errdefs.KindInvalidVarName,
			"variable name %q must start with a letter or underscore and contain only letters, digits and underscores", name).
			WithField(name)
	}
	return nil
}

// ValidateVarValue checks the byte length of a variable value. Values must
// be valid UTF-8 since the store document is JSON.
func (v *Validator) ValidateVarValue(value string) error {
	if len(value) > v.limits.MaxValueBytes {
		return errdefs.Newf(errdefs.KindValueTooLong,
			"value is %d bytes (max %d)", len(value), v.limits.MaxValueBytes)
	}
	if !utf8.ValidString(value) {
		return errdefs.New(errdefs.KindInvalidValue, "value is not valid UTF-8")
	}
	return nil
}

// ValidateVariableCount checks the number of variables in one configuration.
func (v *Validator) ValidateVariableCount(n int) error {
	if n > v.limits.MaxVariables {
		return errdefs.Newf(errdefs.KindTooManyVariables,
			"%d variables (max %d)", n, v.limits.MaxVariables)
	}
	return nil
}

// ValidateDescription checks the length of a description.
func (v *Validator) ValidateDescription(desc string) error {
	if len(desc) > v.limits.MaxDescriptionLength {
		return errdefs.Newf(errdefs.KindDescriptionTooLong,
			"description is %d characters (max %d)", len(desc), v.limits.MaxDescriptionLength)
	}
	if !utf8.ValidString(desc) {
		return errdefs.New(errdefs.KindInvalidValue, "description is not valid UTF-8").WithField("description")
	}
	return nil
}

// ValidateVariables checks every key and value of a variable map. Keys are
// visited in sorted order so the reported error is deterministic.
func (v *Validator) ValidateVariables(vars map[string]string) error {
	if err := v.ValidateVariableCount(len(vars)); err != nil {
		return err
	}

	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := v.ValidateVarName(k); err != nil {
			return err
		}
		if err := v.ValidateVarValue(vars[k]); err != nil {
			return withField(err, k)
		}
	}
	return nil
}

// ValidateConfiguration validates everything a stored configuration carries.
func (v *Validator) ValidateConfiguration(alias string, vars map[string]string, description string) error {
	if err := v.ValidateAlias(alias); err != nil {
		return err
	}
	if err := v.ValidateDescription(description); err != nil {
		return withAlias(err, alias)
	}
	if err := v.ValidateVariables(vars); err != nil {
		return withAlias(err, alias)
	}
	return nil
}

func withAlias(err error, alias string) error {
	if e, ok := err.(*errdefs.Error); ok {
		return e.WithAlias(alias)
	}
	return fmt.Errorf("%s: %w", alias, err)
}

func withField(err error, field string) error {
	if e, ok := err.(*errdefs.Error); ok {
		return e.WithField(field)
	}
	return fmt.Errorf("%s: %w", field, err)
}

var defaultValidator = NewValidator(DefaultLimits())

// ValidateAlias checks a configuration name against the default limits.
func ValidateAlias(alias string) error { return defaultValidator.ValidateAlias(alias) }

// ValidateVarName checks an environment variable name.
func ValidateVarName(name string) error { return defaultValidator.ValidateVarName(name) }

// ValidateVarValue checks a value against the default byte limit.
func ValidateVarValue(value string) error { return defaultValidator.ValidateVarValue(value) }

// ValidateVariableCount checks a variable count against the default limit.
func ValidateVariableCount(n int) error { return defaultValidator.ValidateVariableCount(n) }
