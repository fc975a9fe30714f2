package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/sakif/userreg/internal/apperror"
	"github.com/sakif/userreg/internal/model"
	"github.com/sakif/userreg/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

// uniqueViolation is the SQLSTATE Postgres reports for a UNIQUE index conflict.
const uniqueViolation pq.ErrorCode = "23505"

// Create inserts user and sets user.ID from the BIGSERIAL sequence.
// Duplicate emails are left to the unique index, see sqlite.DB.Create.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO users (name, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		user.Name,
		user.Email,
		user.PasswordHash,
		model.FormatCreatedAt(user.CreatedAt),
	).Scan(&user.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return apperror.DuplicateEmail()
		}
		return fmt.Errorf("postgres: inserting user: %w", err)
	}

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
		return nil, fmt.Errorf("postgres: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var (
			u         model.User
			createdAt string
		)
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt); err != nil {
			return nil, fmt.Errorf("postgres: scanning user row: %w", err)
		}
		if u.CreatedAt, err = model.ParseCreatedAt(createdAt); err != nil {
			return nil, fmt.Errorf("postgres: user %d: parsing created_at %q: %w", u.ID, createdAt, err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating users: %w", err)
	}

	return users, nil
}
