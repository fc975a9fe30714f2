// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside the process as a single file.
// No separate database server to install, configure, or manage. Use ":memory:"
// for a throwaway in-memory database.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go
// translation of the SQLite C code.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB  : a connection pool (NOT a single connection!)
//   - sql.Row : a single result row
//   - sql.Rows: multiple result rows (must be closed!)
//
// Every request borrows a connection from the pool for the duration of one
// query and gives it back when the query (or rows.Close) finishes.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/sakif/userreg/internal/apperror"

	// BLANK IMPORT:
	// The sqlite package's init() registers itself with database/sql as a
	// driver named "sqlite". After this import, sql.Open("sqlite", ...) works.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// busyTimeout is how long a connection waits on a locked database before
// failing with SQLITE_BUSY. Concurrent registrations queue behind the writer
// instead of erroring.
const busyTimeout = 5 * time.Second

// DB wraps a sql.DB connection pool and provides repository methods.
type DB struct {
	conn *sql.DB
	path string
}

// New opens the SQLite database at path and runs migrations.
//
// path examples:
//   - "users.db"  → file-based database (persistent)
//   - ":memory:"  → in-memory database (lost on close)
//
// Any failure is wrapped in apperror.ErrStorageUnavailable: the caller must
// not start serving when New fails.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, apperror.StorageUnavailable(path, fmt.Errorf("sqlite: opening database: %w", err))
	}

	if path == MemoryPath {
		// Each pooled connection to ":memory:" would get its own empty
		// database. Pin the pool to a single connection.
		conn.SetMaxOpenConns(1)
	}

	// Ping verifies the connection actually works. sql.Open is lazy, so a
	// bad path or permissions issue would otherwise surface on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, apperror.StorageUnavailable(path, fmt.Errorf("sqlite: pinging database: %w", err))
	}

	db := &DB{conn: conn, path: path}

	if err := db.Migrate(); err != nil {
		conn.Close()
		return nil, apperror.StorageUnavailable(path, err)
	}

	return db, nil
}

// dsn builds a modernc DSN. Pragmas passed as _pragma query parameters are
// applied to every connection the pool opens; a one-off PRAGMA Exec would
// only reach whichever connection ran it.
func dsn(path string) string {
	params := fmt.Sprintf("_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)", busyTimeout.Milliseconds())
	if path == MemoryPath {
		return "file::memory:?" + params
	}
	// The path is escaped because SQLite decodes URI filenames: a raw '#',
	// '?' or "%41" in it would name a different file.
	// WAL mode allows concurrent reads while a write is happening.
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?" + params + "&_pragma=journal_mode(WAL)"
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the location the database was opened with.
func (db *DB) Path() string {
	return db.path
}

// Ping checks that the database is still reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite: pinging database: %w", err)
	}
	return nil
}

// Migrate applies the embedded migrations. It is idempotent: a database that
// is already up to date is left untouched, and the CREATE TABLE IF NOT EXISTS
// in the first migration adopts a users table created before migrations were
// tracked.
func (db *DB) Migrate() error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("sqlite: loading migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db.conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite: creating migration driver: %w", err)
	}

	// No m.Close(): the sqlite driver's Close would close db.conn too.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("sqlite: preparing migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return nil
}
