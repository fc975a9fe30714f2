// Package postgres implements the repository interfaces on PostgreSQL.
//
// It is selected when DATABASE_URL is a postgres:// or postgresql:// URL and
// keeps the exact contract of the sqlite package: same schema (BIGSERIAL
// instead of AUTOINCREMENT), same unique-violation translation.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"github.com/sakif/userreg/internal/apperror"
)

//go:embed migrations/*.sql
var migrations embed.FS

const connectTimeout = 5 * time.Second

// DB wraps a sql.DB connection pool to a Postgres server.
type DB struct {
	conn *sql.DB
	dsn  string
}

// New connects to the server at dsn and runs migrations. Any failure is
// wrapped in apperror.ErrStorageUnavailable.
func New(dsn string) (*DB, error) {
	location := Redact(dsn)

	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperror.StorageUnavailable(location, fmt.Errorf("postgres: opening database: %w", err))
	}

	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, apperror.StorageUnavailable(location, fmt.Errorf("postgres: pinging database: %w", err))
	}

	db := &DB{conn: conn, dsn: dsn}

	if err := db.Migrate(ctx); err != nil {
		conn.Close()
		return nil, apperror.StorageUnavailable(location, err)
	}

	return db, nil
}

// Close closes the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Location returns the DSN with any password masked, safe to print.
func (db *DB) Location() string {
	return Redact(db.dsn)
}

// Ping checks that the server is still reachable.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: pinging database: %w", err)
	}
	return nil
}

// Migrate applies the embedded migrations on a dedicated connection that is
// returned to the pool afterwards. Already-applied migrations are a no-op.
func (db *DB) Migrate(ctx context.Context) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: loading migrations: %w", err)
	}

	c, err := db.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("postgres: acquiring migration connection: %w", err)
	}
	defer c.Close()

	// WithConnection (unlike WithInstance) leaves db.conn alone on close.
	driver, err := migratepg.WithConnection(ctx, c, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("postgres: creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("postgres: preparing migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: running migrations: %w", err)
	}

	return nil
}

// Redact masks the password in a postgres URL. Strings that don't parse as
// a URL are replaced entirely, since they may be key=value DSNs with a
// password inline.
func Redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" {
		return "postgres (redacted DSN)"
	}
	return u.Redacted()
}
