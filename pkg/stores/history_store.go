package stores

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"

	// SQLite driver
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timestampLayout is fixed-width so stored timestamps order lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// Action names a kind of committed mutation.
type Action string

const (
	ActionCreate     Action = "create"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionRename     Action = "rename"
	ActionActivate   Action = "activate"
	ActionDeactivate Action = "deactivate"
	ActionImport     Action = "import"
	ActionRestore    Action = "restore"
)

// HistoryEntry is one audit record.
type HistoryEntry struct {
	ID        string          `json:"id"`
	Action    Action          `json:"action"`
	Alias     string          `json:"alias,omitempty"`
	Details   json.RawMessage `json:"details,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewHistoryEntry builds an entry with a fresh ID and the current time.
// details is marshaled to JSON; nil leaves Details empty.
func NewHistoryEntry(action Action, alias string, details interface{}) *HistoryEntry {
	entry := &HistoryEntry{
		ID:        uuid.New().String(),
		Action:    action,
		Alias:     alias,
		Timestamp: time.Now().UTC(),
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			entry.Details = raw
		}
	}
	return entry
}

// HistoryFilter narrows List results. Zero fields match everything.
type HistoryFilter struct {
	Alias  string
	Action Action
	Limit  int
	Offset int
}

// HistoryStore keeps the audit history in SQLite.
type HistoryStore struct {
	db   *sql.DB
	path string
}

// NewHistoryStore creates a history store for the database at path.
func NewHistoryStore(path string) (*HistoryStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &HistoryStore{path: path}, nil
}

// Init opens the database connection.
func (s *HistoryStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Short-lived CLI process; one connection avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the database connection.
func (s *HistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs database migrations.
func (s *HistoryStore) Migrate(_ context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Open is Init followed by Migrate.
func (s *HistoryStore) Open(ctx context.Context) error {
	if err := s.Init(ctx); err != nil {
		return err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		s.db = nil
		return err
	}
	return nil
}

// Record inserts an entry. Missing ID and Timestamp are filled in.
func (s *HistoryStore) Record(ctx context.Context, entry *HistoryEntry) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO history (id, action, alias, details, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`

	var details interface{}
	if len(entry.Details) > 0 {
		details = string(entry.Details)
	}

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		string(entry.Action),
		entry.Alias,
		details,
		entry.Timestamp.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record history entry: %w", err)
	}

	return nil
}

// List returns entries newest first.
func (s *HistoryStore) List(ctx context.Context, filter HistoryFilter) ([]*HistoryEntry, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	query := `
		SELECT id, action, alias, details, timestamp
		FROM history
		WHERE (? = '' OR alias = ?)
		  AND (? = '' OR action = ?)
		ORDER BY timestamp DESC, rowid DESC
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query,
		filter.Alias, filter.Alias,
		string(filter.Action), string(filter.Action),
		limit, filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list history entries: %w", err)
	}
	defer rows.Close()

	entries := []*HistoryEntry{}
	for rows.Next() {
		var (
			entry   HistoryEntry
			action  string
			details sql.NullString
			ts      string
		)
		if err := rows.Scan(&entry.ID, &action, &entry.Alias, &details, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.Action = Action(action)
		if details.Valid {
			entry.Details = json.RawMessage(details.String)
		}
		entry.Timestamp, err = time.Parse(timestampLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse history timestamp %q: %w", ts, err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history entries: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than cutoff and returns how many were removed.
func (s *HistoryStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM history WHERE timestamp < ?`,
		cutoff.UTC().Format(timestampLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned entries: %w", err)
	}
	return n, nil
}

// HealthCheck verifies the database connection is healthy.
func (s *HistoryStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return fmt.Errorf("database not initialized")
	}

	return s.db.PingContext(ctx)
}
