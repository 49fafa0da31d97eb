package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), SettingsFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadSettingsMissingFileReturnsDefaults(t *testing.T) {
	settings, err := LoadSettings(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), settings)
}

func TestLoadSettingsOverridesDefaults(t *testing.T) {
	path := writeSettings(t, `
limits:
  max_value_bytes: 1024
backups:
  keep: 3
logging:
  level: debug
import:
  default_alias: from-file
display:
  sensitive_keys: [INTERNAL_PASSPHRASE]
`)

	settings, err := LoadSettings(path)
	require.NoError(t, err)

	assert.Equal(t, 1024, settings.Limits.MaxValueBytes)
	assert.Equal(t, DefaultLimits().MaxVariables, settings.Limits.MaxVariables)
	assert.Equal(t, 3, settings.Backups.Keep)
	assert.Equal(t, "debug", settings.Logging.Level)
	assert.Equal(t, "console", settings.Logging.Format)
	assert.Equal(t, "from-file", settings.Import.DefaultAlias)
	assert.Equal(t, []string{"INTERNAL_PASSPHRASE"}, settings.Display.SensitiveKeys)
	assert.True(t, settings.History.Enabled)
}

func TestLoadSettingsRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"bad level":         "logging:\n  level: loud\n",
		"bad shell":         "shell:\n  default: powershell\n",
		"bad default alias": "import:\n  default_alias: \"has space\"\n",
		"bad sensitive key": "display:\n  sensitive_keys: [\"1BAD\"]\n",
		"negative keep":     "backups:\n  keep: -1\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSettings(writeSettings(t, content))
			assert.Error(t, err)
		})
	}
}

func TestLoadSettingsRejectsMalformedYAML(t *testing.T) {
	_, err := LoadSettings(writeSettings(t, "limits: [unclosed"))
	assert.Error(t, err)
}

func TestResolvePaths(t *testing.T) {
	dir := t.TempDir()

	paths, err := ResolvePaths(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, StoreFileName), paths.StoreFile)
	assert.Equal(t, filepath.Join(dir, HistoryFileName), paths.HistoryFile)

	envDir := filepath.Join(dir, "from-env")
	t.Setenv(DirEnvVar, envDir)
	paths, err = ResolvePaths("")
	require.NoError(t, err)
	assert.Equal(t, envDir, paths.Dir)

	require.NoError(t, paths.EnsureDir())
	info, err := os.Stat(envDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
}
