package engine

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envswitch/envswitch/pkg/codec"
	"github.com/envswitch/envswitch/pkg/errdefs"
	"github.com/envswitch/envswitch/pkg/stores"
)

func newTestExchange(t *testing.T, keep int, opts ...Option) (*Exchange, *Manager, *stores.FileStore) {
	t.Helper()
	m, store := newTestManager(t, opts...)
	return NewExchange(m, keep, zerolog.Nop()), m, store
}

// failingBackupStore refuses to create backups and counts saves.
type failingBackupStore struct {
	*stores.FileStore
	saves int
}

func (s *failingBackupStore) Backup() (string, error) {
	return "", errdefs.New(errdefs.KindBackupFailed, "disk full")
}

func (s *failingBackupStore) Save(doc *stores.Document) error {
	s.saves++
	return s.FileStore.Save(doc)
}

func seed(t *testing.T, m *Manager, alias string, vars map[string]string, description string) *stores.Configuration {
	t.Helper()
	cfg, err := m.Set(context.Background(), alias, vars, description, false)
	require.NoError(t, err)
	return cfg
}

func TestExportUnknownAlias(t *testing.T) {
	ex, m, _ := newTestExchange(t, 0)
	seed(t, m, "dev", map[string]string{"A": "1"}, "")

	_, err := ex.Export(context.Background(), ExportOptions{Aliases: []string{"dev", "nope"}, Format: codec.FormatJSON})
	require.Error(t, err)
	assert.Equal(t, errdefs.KindUnknownAlias, errdefs.KindOf(err))
	assert.True(t, errors.Is(err, errdefs.ErrUnknownAlias))
}

func TestExportDoesNotWriteStore(t *testing.T) {
	ex, m, store := newTestExchange(t, 0)
	seed(t, m, "dev", map[string]string{"A": "1"}, "")
	before := readFile(t, store.Path())

	for _, format := range codec.Formats {
		_, err := ex.Export(context.Background(), ExportOptions{Format: format, Metadata: true})
		require.NoError(t, err)
	}
	assert.Equal(t, before, readFile(t, store.Path()))
}

func TestExportSubsetStats(t *testing.T) {
	ex, m, _ := newTestExchange(t, 0)
	seed(t, m, "dev", map[string]string{"A": "1", "B": "2"}, "")
	seed(t, m, "prod", map[string]string{"C": "3"}, "")

	res, err := ex.Export(context.Background(), ExportOptions{Aliases: []string{"dev"}, Format: codec.FormatJSON})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Configurations)
	assert.Equal(t, 2, res.Variables)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Data, &decoded))
	configs := decoded["configs"].(map[string]interface{})
	assert.Contains(t, configs, "dev")
	assert.NotContains(t, configs, "prod")
}

func TestExportEnvReportsCollisions(t *testing.T) {
	ex, m, _ := newTestExchange(t, 0)
	seed(t, m, "a", map[string]string{"SHARED": "from-a", "ONLY_A": "1"}, "")
	seed(t, m, "b", map[string]string{"SHARED": "from-b"}, "")

	res, err := ex.Export(context.Background(), ExportOptions{Format: codec.FormatENV})
	require.NoError(t, err)
	assert.Contains(t, string(res.Data), "SHARED=from-b\n")
	require.Len(t, res.Collisions, 1)
	assert.Equal(t, "SHARED", res.Collisions[0].Key)
}

func TestExportImportForceRestoresExactConfiguration(t *testing.T) {
	ctx := context.Background()
	source, sourceManager, _ := newTestExchange(t, 0)
	exported := seed(t, sourceManager, "dev", map[string]string{"URL": "https://dev", "QUOTE": "it's"}, "development box")

	res, err := source.Export(ctx, ExportOptions{Aliases: []string{"dev"}, Format: codec.FormatJSON, Metadata: true})
	require.NoError(t, err)

	target, targetManager, _ := newTestExchange(t, 0)
	seed(t, targetManager, "dev", map[string]string{"OTHER": "x"}, "something else")
	seed(t, targetManager, "dev", map[string]string{"MORE": "y"}, "")

	result, err := target.Import(ctx, res.Data, ImportOptions{Mode: ModeForce})
	require.NoError(t, err)
	assert.Equal(t, []string{"dev"}, result.Imported)
	assert.Equal(t, []string{"dev"}, result.Overwritten)

	got, err := targetManager.Get(ctx, "dev")
	require.NoError(t, err)
	want, err := sourceManager.Get(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, exported.CreatedAt, got.CreatedAt)
	assert.Equal(t, "development box", got.Description)
}

func TestImportRejectOnConflictLeavesExistingAlias(t *testing.T) {
	ctx := context.Background()
	ex, m, _ := newTestExchange(t, 0)
	seed(t, m, "dev", map[string]string{"A": "1"}, "mine")
	before, err := m.Get(ctx, "dev")
	require.NoError(t, err)

	data := []byte(`{"configs": {
		"dev":  {"variables": {"A": "changed", "B": "2"}, "description": "theirs"},
		"prod": {"variables": {"C": "3"}}
	}}`)

	result, err := ex.Import(ctx, data, ImportOptions{Mode: ModeRejectOnConflict})
	require.NoError(t, err)
	assert.Equal(t, []string{"prod"}, result.Imported)
	assert.Equal(t, []string{"dev"}, result.Conflicts)
	assert.Empty(t, result.Errors)

	after, err := m.Get(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	prod, err := m.Get(ctx, "prod")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"C": "3"}, prod.Variables)
}

func TestImportMergeKeepsAbsentVariables(t *testing.T) {
	ctx := context.Background()
	ex, m, _ := newTestExchange(t, 0)
	existing := seed(t, m, "dev", map[string]string{"A": "1", "B": "2"}, "keep me")

	result, err := ex.Import(ctx, []byte("B=20\nC=3\n"), ImportOptions{
		Mode:         ModeMerge,
		DefaultAlias: "dev",
	})
	require.NoError(t, err)
	assert.Equal(t, codec.FormatENV, result.Format)
	assert.Equal(t, []string{"dev"}, result.Merged)

	got, err := m.Get(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "20", "C": "3"}, got.Variables)
	assert.Equal(t, "keep me", got.Description)
	assert.Equal(t, existing.CreatedAt, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(existing.UpdatedAt))
}

func TestImportMergeReplacesDescriptionWhenGiven(t *testing.T) {
	ctx := context.Background()
	ex, m, _ := newTestExchange(t, 0)
	seed(t, m, "dev", map[string]string{"A": "1"}, "old")

	data := []byte("# Configuration: dev\n# Description: new\nB=2\n")
	_, err := ex.Import(ctx, data, ImportOptions{Mode: ModeMerge, Format: codec.FormatENV})
	require.NoError(t, err)

	got, err := m.Get(ctx, "dev")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Description)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, got.Variables)
}

func TestImportDryRunDoesNotTouchStore(t *testing.T) {
	ctx := context.Background()
	ex, m, store := newTestExchange(t, 0)
	seed(t, m, "dev", map[string]string{"A": "1"}, "")
	before := readFile(t, store.Path())

	data := []byte(`{"configs": {"dev": {"variables": {"A": "2"}}, "new": {"variables": {"B": "1"}}}}`)
	for _, mode := range []ImportMode{ModeRejectOnConflict, ModeMerge, ModeForce} {
		result, err := ex.Import(ctx, data, ImportOptions{Mode: mode, DryRun: true, BackupFirst: true})
		require.NoError(t, err)
		assert.True(t, result.DryRun)
		assert.Contains(t, result.Imported, "new")
		assert.Empty(t, result.BackupPath)
	}

	assert.Equal(t, before, readFile(t, store.Path()))
	backups, err := store.ListBackups()
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestImportDryRunOnMissingStoreCreatesNothing(t *testing.T) {
	ex, _, store := newTestExchange(t, 0)

	_, err := ex.Import(context.Background(), []byte("A=1\n"), ImportOptions{DryRun: true})
	require.NoError(t, err)
	assert.False(t, store.Exists())
}

func TestImportDecodeFailureAborts(t *testing.T) {
	ctx := context.Background()
	ex, m, store := newTestExchange(t, 0)
	seed(t, m, "dev", map[string]string{"A": "1"}, "")
	before := readFile(t, store.Path())

	_, err := ex.Import(ctx, []byte(`{"configs": {"x": `), ImportOptions{Format: codec.FormatJSON, BackupFirst: true})
	assert.Equal(t, errdefs.KindFormatError, errdefs.KindOf(err))

	_, err = ex.Import(ctx, []byte("GOOD=1\nthis line is broken\n"), ImportOptions{Format: codec.FormatENV})
	require.Error(t, err)
	var e *errdefs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 2, e.Line)

	assert.Equal(t, before, readFile(t, store.Path()))
	backups, err := store.ListBackups()
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestImportUndetectableFormat(t *testing.T) {
	ex, _, _ := newTestExchange(t, 0)
	_, err := ex.Import(context.Background(), []byte("   \n"), ImportOptions{})
	assert.Equal(t, errdefs.KindUnknownFormat, errdefs.KindOf(err))
}

func TestImportCollectsPerAliasErrors(t *testing.T) {
	ctx := context.Background()
	ex, m, _ := newTestExchange(t, 0)

	data := []byte(`{"configs": {
		"good":     {"variables": {"A": "1"}},
		"bad vars": {"variables": {"A": "1"}},
		"badkey":   {"variables": {"1NOPE": "1"}}
	}}`)

	result, err := ex.Import(ctx, data, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, result.Imported)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "bad vars", result.Errors[0].Alias)
	assert.Equal(t, errdefs.KindInvalidName, errdefs.KindOf(result.Errors[0].Err))
	assert.Equal(t, "badkey", result.Errors[1].Alias)
	assert.Equal(t, errdefs.KindInvalidVarName, errdefs.KindOf(result.Errors[1].Err))

	list, err := m.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "good", list[0].Alias)
}

func TestImportRejectsInvalidUTF8Value(t *testing.T) {
	ctx := context.Background()
	ex, m, store := newTestExchange(t, 0)

	data := []byte("# Configuration: good\nA=1\n\n# Configuration: binary\nBLOB=\"ab\xffcd\"\n")
	result, err := ex.Import(ctx, data, ImportOptions{Format: codec.FormatENV})
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, result.Imported)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "binary", result.Errors[0].Alias)
	assert.Equal(t, errdefs.KindInvalidValue, errdefs.KindOf(result.Errors[0].Err))

	_, err = m.Get(ctx, "binary")
	assert.True(t, errdefs.IsNotFound(err))
	assert.NotContains(t, string(readFile(t, store.Path())), "binary")
}

func TestImportNeverChangesActive(t *testing.T) {
	ctx := context.Background()
	ex, m, _ := newTestExchange(t, 0)
	seed(t, m, "dev", map[string]string{"A": "1"}, "")
	require.NoError(t, m.SetActive(ctx, "dev"))

	data := []byte(`{"active_config": "prod", "configs": {"prod": {"variables": {"B": "2"}}, "dev": {"variables": {"A": "9"}}}}`)
	_, err := ex.Import(ctx, data, ImportOptions{Mode: ModeForce})
	require.NoError(t, err)

	active, err := m.GetActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dev", active)
}

func TestImportBackupFirst(t *testing.T) {
	ctx := context.Background()
	ex, m, store := newTestExchange(t, 2)
	seed(t, m, "dev", map[string]string{"A": "1"}, "")
	before := readFile(t, store.Path())

	result, err := ex.Import(ctx, []byte(`{"configs": {"prod": {"variables": {"B": "2"}}}}`), ImportOptions{BackupFirst: true})
	require.NoError(t, err)
	require.NotEmpty(t, result.BackupPath)
	assert.Equal(t, before, readFile(t, result.BackupPath), "backup holds the pre-import document")

	info, err := os.Stat(result.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestImportPrunesOldBackups(t *testing.T) {
	ctx := context.Background()
	ex, m, store := newTestExchange(t, 2)
	seed(t, m, "dev", map[string]string{"A": "1"}, "")

	for i := 0; i < 4; i++ {
		data := []byte(`{"configs": {"dev": {"variables": {"A": "` + string(rune('a'+i)) + `"}}}}`)
		_, err := ex.Import(ctx, data, ImportOptions{Mode: ModeForce, BackupFirst: true})
		require.NoError(t, err)
	}

	backups, err := store.ListBackups()
	require.NoError(t, err)
	assert.Len(t, backups, 2)
}

func TestImportBackupFailureAbortsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store := &failingBackupStore{FileStore: newTestStore(t)}
	m := NewManager(store, zerolog.Nop())
	ex := NewExchange(m, 0, zerolog.Nop())

	seed(t, m, "dev", map[string]string{"A": "1"}, "")
	saves := store.saves
	before := readFile(t, store.Path())

	_, err := ex.Import(ctx, []byte(`{"configs": {"prod": {"variables": {"B": "2"}}}}`), ImportOptions{BackupFirst: true})
	assert.Equal(t, errdefs.KindBackupFailed, errdefs.KindOf(err))
	assert.Equal(t, saves, store.saves)
	assert.Equal(t, before, readFile(t, store.Path()))
}

func TestImportWritesOnce(t *testing.T) {
	ctx := context.Background()
	store := &failingBackupStore{FileStore: newTestStore(t)}
	m := NewManager(store, zerolog.Nop())
	ex := NewExchange(m, 0, zerolog.Nop())

	data := []byte(`{"configs": {"a": {"variables": {"A": "1"}}, "b": {"variables": {"B": "2"}}, "c": {"variables": {"C": "3"}}}}`)
	result, err := ex.Import(ctx, data, ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, result.Imported)
	assert.Equal(t, 1, store.saves)
}

func TestImportRecordsHistory(t *testing.T) {
	history := &recordingHistory{}
	ex, _, _ := newTestExchange(t, 0, WithHistory(history))

	_, err := ex.Import(context.Background(), []byte("A=1\n"), ImportOptions{DefaultAlias: "fromenv"})
	require.NoError(t, err)
	require.Len(t, history.entries, 1)
	assert.Equal(t, stores.ActionImport, history.entries[0].Action)
	assert.Equal(t, "fromenv", history.entries[0].Alias)
}

func TestExportToFileAndImportFile(t *testing.T) {
	ctx := context.Background()
	ex, m, _ := newTestExchange(t, 0)
	seed(t, m, "dev", map[string]string{"A": "1", "MULTI": "line1\nline2"}, "desc")

	dir := t.TempDir()
	for _, name := range []string{"out.json", "out.yaml", "out.env"} {
		path := filepath.Join(dir, name)
		res, err := ex.ExportToFile(ctx, path, ExportOptions{Metadata: true})
		require.NoError(t, err)
		assert.Equal(t, codec.FormatFromPath(path), res.Format)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

		target, targetManager, _ := newTestExchange(t, 0)
		result, err := target.ImportFile(ctx, path, ImportOptions{})
		require.NoError(t, err, name)
		assert.Equal(t, []string{"dev"}, result.Imported, name)

		got, err := targetManager.Get(ctx, "dev")
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"A": "1", "MULTI": "line1\nline2"}, got.Variables, name)
	}
}

func TestImportFileMissing(t *testing.T) {
	ex, _, _ := newTestExchange(t, 0)
	_, err := ex.ImportFile(context.Background(), filepath.Join(t.TempDir(), "nope.json"), ImportOptions{})
	assert.True(t, errdefs.IsNotFound(err))
}

func TestParseImportMode(t *testing.T) {
	tests := map[string]ImportMode{
		"":          ModeRejectOnConflict,
		"reject":    ModeRejectOnConflict,
		"merge":     ModeMerge,
		"FORCE":     ModeForce,
		"overwrite": ModeForce,
	}
	for name, want := range tests {
		got, err := ParseImportMode(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseImportMode("sometimes")
	assert.Error(t, err)
}
