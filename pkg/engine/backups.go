package engine

import (
	"context"
	"path/filepath"

	"github.com/envswitch/envswitch/pkg/errdefs"
	"github.com/envswitch/envswitch/pkg/stores"
	"github.com/envswitch/envswitch/pkg/telemetry"
)

// CreateBackup copies the store file to a timestamped backup. It returns
// "" when there is no store file yet.
func (m *Manager) CreateBackup(ctx context.Context) (path string, err error) {
	op := telemetry.StartOperation(ctx, "backup")
	defer func() { op.End(err) }()

	path, err = m.store.Backup()
	if err != nil {
		return "", err
	}
	if path != "" {
		telemetry.MetricsFromContext(op.Ctx).RecordBackup("created", 1)
	}
	return path, nil
}

// ListBackups returns the backups next to the store file, newest first.
func (m *Manager) ListBackups(ctx context.Context) ([]stores.BackupInfo, error) {
	return m.store.ListBackups()
}

// CleanupBackups keeps the newest keep backups and returns how many were
// removed.
func (m *Manager) CleanupBackups(ctx context.Context, keep int) (removed int, err error) {
	op := telemetry.StartOperation(ctx, "cleanup_backups")
	defer func() { op.End(err) }()

	removed, err = m.store.CleanupBackups(keep)
	telemetry.MetricsFromContext(op.Ctx).RecordBackup("removed", removed)
	return removed, err
}

// RestoreBackup replaces the store with a backup. name may be a path or the
// bare file name of a listed backup. The current store is backed up first
// so a restore can itself be undone.
func (m *Manager) RestoreBackup(ctx context.Context, name string) (safety string, err error) {
	op := telemetry.StartOperation(ctx, "restore")
	defer func() { op.End(err) }()

	path, err := m.resolveBackup(name)
	if err != nil {
		return "", err
	}

	safety, err = m.store.Backup()
	if err != nil {
		return "", err
	}

	doc, err := m.store.Restore(path)
	if err != nil {
		return safety, err
	}
	telemetry.MetricsFromContext(op.Ctx).SetConfigurations(len(doc.Configs))

	if m.history != nil {
		entry := stores.NewHistoryEntry(stores.ActionRestore, doc.Active(), map[string]interface{}{
			"backup":         filepath.Base(path),
			"configurations": len(doc.Configs),
		})
		if err := m.history.Record(op.Ctx, entry); err != nil {
			m.logger.Warn().Err(err).Msg("Failed to record history")
		}
	}
	return safety, nil
}

// resolveBackup maps a bare backup name to its path in the store dir.
func (m *Manager) resolveBackup(name string) (string, error) {
	if name == "" {
		return "", errdefs.New(errdefs.KindNotFound, "no backup given").WithOperation("restore")
	}
	if filepath.Base(name) != name {
		return name, nil
	}
	if !stores.IsBackupName(name) {
		return "", errdefs.Newf(errdefs.KindNotFound, "%q is not a backup file", name).WithOperation("restore")
	}
	return filepath.Join(filepath.Dir(m.store.Path()), name), nil
}
