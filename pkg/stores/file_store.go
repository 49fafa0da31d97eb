package stores

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/envswitch/envswitch/pkg/errdefs"
)

const (
	// BackupPrefix starts every backup file name.
	BackupPrefix = "config_backup_"

	// BackupSuffix ends every backup file name.
	BackupSuffix = ".json"

	backupTimeLayout = "20060102_150405.000"

	fileMode = 0o600
	dirMode  = 0o700
)

// BackupInfo describes one backup file on disk.
type BackupInfo struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// FileStore persists a Document as a single JSON file. It assumes one
// process at a time; concurrent invocations may race.
type FileStore struct {
	path   string
	dir    string
	logger zerolog.Logger
}

// NewFileStore creates a store backed by the file at path. Backups are
// written next to it.
func NewFileStore(path string, logger zerolog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		dir:    filepath.Dir(path),
		logger: logger.With().Str("component", "file_store").Logger(),
	}
}

// Path returns the store file path.
func (s *FileStore) Path() string {
	return s.path
}

// Dir returns the directory holding the store file and its backups.
func (s *FileStore) Dir() string {
	return s.dir
}

// Exists reports whether the store file has been written.
func (s *FileStore) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Size returns the store file size in bytes, or 0 if it does not exist.
func (s *FileStore) Size() int64 {
	info, err := os.Stat(s.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Load reads the document. A missing file yields an empty document; an
// unparseable or inconsistent one yields a CorruptFile error and is left
// untouched on disk.
func (s *FileStore) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug().Str("path", s.path).Msg("Store file not found, starting empty")
			return NewDocument(), nil
		}
		return nil, errdefs.Wrap(errdefs.KindIOError, "failed to read configuration file", err).
			WithOperation("load").
			WithDetail("path", s.path)
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindCorruptFile, "configuration file is corrupt", err).
			WithOperation("load").
			WithDetail("path", s.path)
	}

	s.logger.Debug().
		Str("path", s.path).
		Int("configs", len(doc.Configs)).
		Str("active", doc.Active()).
		Msg("Loaded store")

	return doc, nil
}

// Save atomically replaces the store file with doc. LastModified and
// Version are stamped on doc before writing.
func (s *FileStore) Save(doc *Document) error {
	doc.normalize()
	doc.LastModified = time.Now().UTC()
	doc.Version = DocumentVersion

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errdefs.Wrap(errdefs.KindIOError, "failed to encode configuration document", err).
			WithOperation("save")
	}

	if err := WriteFileAtomic(s.path, data); err != nil {
		return errdefs.Wrap(errdefs.KindIOError, "failed to write configuration file", err).
			WithOperation("save").
			WithDetail("path", s.path)
	}

	s.logger.Debug().
		Str("path", s.path).
		Int("configs", len(doc.Configs)).
		Int("bytes", len(data)).
		Msg("Saved store")

	return nil
}

// Backup copies the current store file to a timestamped sibling and returns
// its path. When no store file exists yet there is nothing to protect and
// Backup returns "" with a nil error.
func (s *FileStore) Backup() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", errdefs.Wrap(errdefs.KindBackupFailed, "failed to read configuration file for backup", err).
			WithOperation("backup")
	}

	path := s.nextBackupPath(time.Now().UTC())
	if err := WriteFileAtomic(path, data); err != nil {
		return "", errdefs.Wrap(errdefs.KindBackupFailed, "failed to write backup", err).
			WithOperation("backup").
			WithDetail("path", path)
	}

	s.logger.Info().Str("backup", path).Int("bytes", len(data)).Msg("Created backup")
	return path, nil
}

func (s *FileStore) nextBackupPath(now time.Time) string {
	base := BackupPrefix + now.Format(backupTimeLayout)
	path := filepath.Join(s.dir, base+BackupSuffix)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			return path
		}
		path = filepath.Join(s.dir, fmt.Sprintf("%s_%d%s", base, i, BackupSuffix))
	}
}

// ListBackups returns every backup in the store directory, newest first.
func (s *FileStore) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errdefs.Wrap(errdefs.KindIOError, "failed to read configuration directory", err).
			WithOperation("list_backups")
	}

	var backups []BackupInfo
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !IsBackupName(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Path:    filepath.Join(s.dir, name),
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	// The timestamp layout sorts lexically.
	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Name > backups[j].Name
	})
	return backups, nil
}

// CleanupBackups keeps the newest keep backups and removes the rest. It
// returns how many files were removed. keep <= 0 removes nothing.
func (s *FileStore) CleanupBackups(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	backups, err := s.ListBackups()
	if err != nil {
		return 0, err
	}
	if len(backups) <= keep {
		return 0, nil
	}

	removed := 0
	for _, b := range backups[keep:] {
		if err := os.Remove(b.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, errdefs.Wrap(errdefs.KindIOError, "failed to remove backup", err).
				WithOperation("cleanup_backups").
				WithDetail("path", b.Path)
		}
		removed++
	}

	s.logger.Info().Int("removed", removed).Int("kept", keep).Msg("Cleaned up backups")
	return removed, nil
}

// Restore replaces the store file with the backup at path. The backup must
// decode and be internally consistent; otherwise the store is untouched.
func (s *FileStore) Restore(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errdefs.Newf(errdefs.KindNotFound, "backup %q not found", path).
				WithOperation("restore")
		}
		return nil, errdefs.Wrap(errdefs.KindIOError, "failed to read backup", err).
			WithOperation("restore")
	}

	doc, err := decodeDocument(data)
	if err != nil {
		return nil, errdefs.Wrap(errdefs.KindCorruptFile, "backup is corrupt", err).
			WithOperation("restore").
			WithDetail("path", path)
	}

	if err := WriteFileAtomic(s.path, data); err != nil {
		return nil, errdefs.Wrap(errdefs.KindIOError, "failed to write configuration file", err).
			WithOperation("restore").
			WithDetail("path", s.path)
	}

	s.logger.Info().Str("backup", path).Int("configs", len(doc.Configs)).Msg("Restored backup")
	return doc, nil
}

// IsBackupName reports whether name looks like a file written by Backup.
func IsBackupName(name string) bool {
	return strings.HasPrefix(name, BackupPrefix) && strings.HasSuffix(name, BackupSuffix)
}

func decodeDocument(data []byte) (*Document, error) {
	doc := &Document{}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	doc.normalize()
	if err := doc.CheckConsistency(); err != nil {
		return nil, err
	}
	return doc, nil
}

// WriteFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers see either the old or the new content.
func WriteFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmp.Chmod(fileMode); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
