package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	// DirName is the directory created under the user config dir.
	DirName = "envswitch"

	// StoreFileName is the persisted configuration document.
	StoreFileName = "config.json"

	// SettingsFileName is the optional tool settings file.
	SettingsFileName = "settings.yaml"

	// HistoryFileName is the SQLite audit database.
	HistoryFileName = "history.db"

	// DirEnvVar overrides the configuration directory.
	DirEnvVar = "ENVSWITCH_CONFIG_DIR"
)

// Settings holds the tool's own configuration, separate from the stored
// environment configurations.
type Settings struct {
	Limits    Limits            `yaml:"limits"`
	Backups   BackupSettings    `yaml:"backups"`
	History   HistorySettings   `yaml:"history"`
	Logging   LoggingSettings   `yaml:"logging"`
	Telemetry TelemetrySettings `yaml:"telemetry"`
	Shell     ShellSettings     `yaml:"shell"`
	Import    ImportSettings    `yaml:"import"`
	Display   DisplaySettings   `yaml:"display"`
}

// BackupSettings controls pre-import backups.
type BackupSettings struct {
	// Keep is how many backups survive a cleanup; 0 disables pruning.
	Keep int `yaml:"keep" validate:"min=0"`
}

// HistorySettings controls the audit history database.
type HistorySettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingSettings configures the diagnostic logger.
type LoggingSettings struct {
	Level  string `yaml:"level" validate:"omitempty,oneof=trace debug info warn error"`
	Format string `yaml:"format" validate:"omitempty,oneof=console json"`
}

// TelemetrySettings enables file-based metrics and trace output.
type TelemetrySettings struct {
	MetricsFile string `yaml:"metrics_file"`
	TraceFile   string `yaml:"trace_file"`
}

// ShellSettings configures shell detection.
type ShellSettings struct {
	// Default is used when the shell cannot be detected.
	Default string `yaml:"default" validate:"omitempty,oneof=bash zsh fish sh"`
}

// ImportSettings configures import defaults.
type ImportSettings struct {
	// DefaultAlias names configurations decoded from files without alias markers.
	DefaultAlias string `yaml:"default_alias" validate:"required,alias"`
}

// DisplaySettings controls how values are shown by list and show.
type DisplaySettings struct {
	// MaskValues hides secret-looking values in human-readable output.
	MaskValues bool `yaml:"mask_values"`

	// SensitiveKeys are extra variable names always masked.
	SensitiveKeys []string `yaml:"sensitive_keys" validate:"dive,envkey"`
}

// DefaultSettings returns the built-in settings.
func DefaultSettings() *Settings {
	return &Settings{
		Limits:  DefaultLimits(),
		Backups: BackupSettings{Keep: 10},
		History: HistorySettings{Enabled: true},
		Logging: LoggingSettings{
			Level:  "warn",
			Format: "console",
		},
		Import:  ImportSettings{DefaultAlias: "imported"},
		Display: DisplaySettings{MaskValues: true},
	}
}

// Paths locates every file envswitch owns.
type Paths struct {
	Dir          string
	StoreFile    string
	SettingsFile string
	HistoryFile  string
}

// ResolvePaths picks the configuration directory: explicit flag, then the
// ENVSWITCH_CONFIG_DIR variable, then the user config dir.
func ResolvePaths(flagDir string) (Paths, error) {
	dir := flagDir
	if dir == "" {
		dir = os.Getenv(DirEnvVar)
	}
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Paths{}, fmt.Errorf("failed to locate user config directory: %w", err)
		}
		dir = filepath.Join(base, DirName)
	}
	return PathsFor(dir), nil
}

// PathsFor returns the file layout rooted at dir.
func PathsFor(dir string) Paths {
	return Paths{
		Dir:          dir,
		StoreFile:    filepath.Join(dir, StoreFileName),
		SettingsFile: filepath.Join(dir, SettingsFileName),
		HistoryFile:  filepath.Join(dir, HistoryFileName),
	}
}

// EnsureDir creates the configuration directory with owner-only permissions.
func (p Paths) EnsureDir() error {
	if err := os.MkdirAll(p.Dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", p.Dir, err)
	}
	return nil
}

// LoadSettings reads the settings file at path over DefaultSettings. A
// missing file is not an error.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return settings, nil
		}
		return nil, fmt.Errorf("failed to stat settings file %q: %w", path, err)
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load settings from %q: %w", path, err)
	}

	if err := k.UnmarshalWithConf("", settings, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("failed to parse settings from %q: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("settings validation failed for %q: %w", path, err)
	}

	return settings, nil
}

// Validate checks the settings with struct tags.
func (s *Settings) Validate() error {
	return newStructValidator().Struct(s)
}

// newStructValidator returns a validator with the envswitch-specific tags
// "alias" and "envkey" registered.
func newStructValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("alias", func(fl validator.FieldLevel) bool {
		return ValidateAlias(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("envkey", func(fl validator.FieldLevel) bool {
		return ValidateVarName(fl.Field().String()) == nil
	})
	return v
}
