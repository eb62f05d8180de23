// Package database provides the SQLite connection and migration runner
// backing the rule store and audit log.
//
// SQLite fits here for the same reason it fits embedded controllers: a
// single-writer, file-based store with no external service to manage.
// WAL mode allows concurrent reads while a commit is in flight.
//
// Migrations are embedded via the migrations package and applied on startup.
package database
