// Package stores persists envswitch state. FileStore owns the JSON
// configuration document and its timestamped backups; every write goes
// through a temp file and rename. HistoryStore keeps an audit trail of
// committed mutations in SQLite.
package stores
