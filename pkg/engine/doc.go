// Package engine implements the configuration manager and the import and
// export pipeline on top of a Store.
//
// Manager owns CRUD over named configurations and the active pointer.
// Every mutation is one Load, an in-memory change and one Save, so a
// failed call never leaves a partial write. Exchange encodes selected
// configurations through pkg/codec and imports files with conflict
// handling, dry runs and pre-import backups. Watcher re-imports a file
// when it changes.
//
// The store assumes a single process at a time. Two invocations that write
// concurrently may lose one of the writes; no file locking is done.
package engine
