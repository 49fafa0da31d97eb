package stores

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envswitch/envswitch/pkg/errdefs"
)

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	return NewFileStore(filepath.Join(t.TempDir(), "envswitch", "config.json"), zerolog.Nop())
}

func sampleDocument() *Document {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := NewDocument()
	doc.Put(&Configuration{
		Alias:       "dev",
		Variables:   map[string]string{"API_URL": "http://localhost", "DEBUG": "true"},
		Description: "local development",
		CreatedAt:   now,
		UpdatedAt:   now.Add(time.Hour),
	})
	doc.Put(&Configuration{
		Alias:     "prod",
		Variables: map[string]string{"API_URL": "https://api.example.com"},
		CreatedAt: now,
		UpdatedAt: now,
	})
	doc.SetActive("dev")
	return doc
}

func TestLoadMissingFileReturnsEmptyDocument(t *testing.T) {
	store := newTestFileStore(t)

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, doc.Configs)
	assert.Nil(t, doc.ActiveConfig)
	assert.Equal(t, DocumentVersion, doc.Version)
	assert.False(t, store.Exists())
	assert.Zero(t, store.Size())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := newTestFileStore(t)
	doc := sampleDocument()

	require.NoError(t, store.Save(doc))
	assert.True(t, store.Exists())
	assert.Positive(t, store.Size())
	assert.False(t, doc.LastModified.IsZero())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, doc.Configs, loaded.Configs)
	assert.Equal(t, "dev", loaded.Active())
	assert.True(t, doc.LastModified.Equal(loaded.LastModified))
}

func TestSaveUsesRestrictivePermissions(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, store.Save(sampleDocument()))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	dirInfo, err := os.Stat(store.Dir())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, store.Save(sampleDocument()))
	require.NoError(t, store.Save(NewDocument()))

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "config.json", entries[0].Name())
}

func TestLoadCorruptFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid json", `{"configs": {`},
		{"not an object", `[1, 2, 3]`},
		{"dangling active", `{"configs": {}, "active_config": "ghost"}`},
		{"alias mismatch", `{"configs": {"dev": {"alias": "prod", "variables": {}}}}`},
		{"null entry", `{"configs": {"dev": null}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestFileStore(t)
			require.NoError(t, os.MkdirAll(store.Dir(), 0o700))
			require.NoError(t, os.WriteFile(store.Path(), []byte(tt.content), 0o600))

			_, err := store.Load()
			require.Error(t, err)
			assert.True(t, errdefs.IsCorrupt(err), "got %v", err)

			// The corrupt file is never overwritten by Load.
			data, err := os.ReadFile(store.Path())
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(data))
		})
	}
}

func TestLoadFillsDefaults(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, os.MkdirAll(store.Dir(), 0o700))
	content := `{"configs": {"dev": {"variables": null}}, "active_config": ""}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0o600))

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, DocumentVersion, doc.Version)
	assert.Nil(t, doc.ActiveConfig)
	require.Contains(t, doc.Configs, "dev")
	assert.Equal(t, "dev", doc.Configs["dev"].Alias)
	assert.NotNil(t, doc.Configs["dev"].Variables)
}

func TestBackupWithoutStoreFile(t *testing.T) {
	store := newTestFileStore(t)

	path, err := store.Backup()
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupListAndRestore(t *testing.T) {
	store := newTestFileStore(t)
	original := sampleDocument()
	require.NoError(t, store.Save(original))

	first, err := store.Backup()
	require.NoError(t, err)
	require.NotEmpty(t, first)
	assert.True(t, IsBackupName(filepath.Base(first)))

	second, err := store.Backup()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	backups, err := store.ListBackups()
	require.NoError(t, err)
	require.Len(t, backups, 2)
	assert.Equal(t, second, backups[0].Path, "newest first")
	assert.Equal(t, first, backups[1].Path)

	// Mutate the store, then restore.
	require.NoError(t, store.Save(NewDocument()))
	restored, err := store.Restore(first)
	require.NoError(t, err)
	assert.Equal(t, original.Configs, restored.Configs)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, original.Configs, loaded.Configs)
	assert.Equal(t, "dev", loaded.Active())
}

func TestRestoreRejectsCorruptBackup(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, store.Save(sampleDocument()))
	before, err := os.ReadFile(store.Path())
	require.NoError(t, err)

	bad := filepath.Join(store.Dir(), BackupPrefix+"bad"+BackupSuffix)
	require.NoError(t, os.WriteFile(bad, []byte("not json"), 0o600))

	_, err = store.Restore(bad)
	assert.True(t, errdefs.IsCorrupt(err))

	_, err = store.Restore(filepath.Join(store.Dir(), "missing.json"))
	assert.True(t, errdefs.IsNotFound(err))

	after, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestCleanupBackups(t *testing.T) {
	store := newTestFileStore(t)
	require.NoError(t, store.Save(sampleDocument()))

	for range 5 {
		_, err := store.Backup()
		require.NoError(t, err)
	}

	removed, err := store.CleanupBackups(0)
	require.NoError(t, err)
	assert.Zero(t, removed)

	backups, err := store.ListBackups()
	require.NoError(t, err)
	newest := backups[:2]

	removed, err = store.CleanupBackups(2)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	left, err := store.ListBackups()
	require.NoError(t, err)
	assert.Equal(t, newest, left)
	assert.True(t, store.Exists(), "store file is never a cleanup candidate")
}

func TestListBackupsMissingDir(t *testing.T) {
	store := newTestFileStore(t)

	backups, err := store.ListBackups()
	require.NoError(t, err)
	assert.Empty(t, backups)
}

func TestWriteFileAtomicReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.env")
	require.NoError(t, WriteFileAtomic(path, []byte("A=1\n")))
	require.NoError(t, WriteFileAtomic(path, []byte("B=2\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "B=2\n", string(data))
}
