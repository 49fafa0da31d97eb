// Package config provides input validation and tool settings for envswitch.
//
// # Validation
//
// Validator checks configuration aliases and environment variables against
// configurable Limits. Every check is pure and returns an *errdefs.Error whose
// Kind identifies the failure (InvalidName, InvalidVarName, ValueTooLong,
// TooManyVariables, DescriptionTooLong), so callers can surface the specific
// problem instead of a generic failure.
//
//	v := config.NewValidator(config.DefaultLimits())
//	if err := v.ValidateAlias("my config"); err != nil {
//	    // errdefs.KindOf(err) == errdefs.KindInvalidName
//	}
//
// # Settings
//
// Settings are read from an optional settings.yaml in the configuration
// directory using koanf, layered over DefaultSettings, and validated with
// struct tags. The configuration directory is resolved from the --config-dir
// flag, then ENVSWITCH_CONFIG_DIR, then the user config directory.
//
//	limits:
//	  max_value_bytes: 8192
//	backups:
//	  keep: 5
//	history:
//	  enabled: true
//	display:
//	  sensitive_keys: [INTERNAL_PASSPHRASE]
package config
