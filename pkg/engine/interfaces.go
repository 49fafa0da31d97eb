package engine

import (
	"context"

	"github.com/envswitch/envswitch/pkg/stores"
)

// Store persists the configuration document. *stores.FileStore is the
// production implementation.
type Store interface {
	// Load returns the current document; a missing file yields an empty one.
	Load() (*stores.Document, error)

	// Save atomically replaces the persisted document.
	Save(doc *stores.Document) error

	// Backup copies the persisted document to a timestamped sibling.
	Backup() (string, error)

	// ListBackups returns existing backups, newest first.
	ListBackups() ([]stores.BackupInfo, error)

	// CleanupBackups keeps the newest keep backups.
	CleanupBackups(keep int) (int, error)

	// Restore replaces the persisted document with a backup.
	Restore(path string) (*stores.Document, error)

	// Path is the location of the persisted document.
	Path() string

	// Size is the persisted document size in bytes, 0 if absent.
	Size() int64
}

// History receives one audit entry per committed mutation.
// *stores.HistoryStore is the production implementation.
type History interface {
	Record(ctx context.Context, entry *stores.HistoryEntry) error
}

var (
	_ Store   = (*stores.FileStore)(nil)
	_ History = (*stores.HistoryStore)(nil)
)
