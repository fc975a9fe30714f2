package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/userreg/internal/apperror"
	"github.com/sakif/userreg/internal/model"
	"github.com/sakif/userreg/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Create inserts a new user and sets user.ID to the rowid SQLite assigned.
//
// There is no SELECT-before-INSERT for the email. Two concurrent requests
// could both see "not taken" and both insert; the UNIQUE index is the only
// thing that settles the race, so we let it and translate its error.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (name, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?)`,
		user.Name,
		user.Email,
		user.PasswordHash,
		model.FormatCreatedAt(user.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.DuplicateEmail()
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading inserted user id: %w", err)
	}
	user.ID = id

	return nil
}

// List returns all users, newest (highest id) first.
func (db *DB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, email, password_hash, created_at
		 FROM users
		 ORDER BY id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	// rows holds a pooled connection until closed.
	defer rows.Close()

	users := make([]model.User, 0)

	for rows.Next() {
		var (
			u         model.User
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		if u.CreatedAt, err = model.ParseCreatedAt(createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: user %d: parsing created_at %q: %w", u.ID, createdAt, err)
		}
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

// isUniqueViolation reports whether err is SQLite rejecting an insert on a
// UNIQUE index.
func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// Without extended result codes only the primary code is reported.
	return code&0xff == sqlite3.SQLITE_CONSTRAINT &&
		strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
}
