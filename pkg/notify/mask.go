package notify

import (
	"regexp"
	"strings"
)

// sensitivePattern matches variable names that usually hold secrets.
var sensitivePattern = regexp.MustCompile(`(?i)(PASSWORD|PASSWD|SECRET|TOKEN|API_?KEY|PRIVATE_?KEY|CREDENTIAL|AUTH)`)

// Masker hides secret-looking values in human-readable output. Stored
// values are never changed.
type Masker struct {
	enabled bool
	extra   map[string]struct{}
}

// NewMasker returns a Masker. Keys listed in extra are always treated as
// sensitive.
func NewMasker(enabled bool, extra []string) *Masker {
	m := &Masker{enabled: enabled, extra: make(map[string]struct{}, len(extra))}
	for _, k := range extra {
		m.extra[strings.ToUpper(k)] = struct{}{}
	}
	return m
}

// IsSensitive reports whether key names a secret.
func (m *Masker) IsSensitive(key string) bool {
	if _, ok := m.extra[strings.ToUpper(key)]; ok {
		return true
	}
	return sensitivePattern.MatchString(key)
}

// Value returns value as it should be displayed for key.
func (m *Masker) Value(key, value string) string {
	if m == nil || !m.enabled || !m.IsSensitive(key) {
		return value
	}
	return MaskValue(value)
}

// MaskValue keeps up to the first four characters of long values and
// replaces the rest with asterisks.
func MaskValue(value string) string {
	r := []rune(value)
	switch {
	case len(r) == 0:
		return ""
	case len(r) <= 8:
		return strings.Repeat("*", len(r))
	default:
		return string(r[:4]) + strings.Repeat("*", 8)
	}
}
