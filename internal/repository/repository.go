// Package repository declares the storage contracts used by the service layer.
// Implementations live in sub-packages (sqlite, postgres).
package repository

import (
	"context"

	"github.com/sakif/userreg/internal/model"
)

// UserRepository stores registered users.
//
// Create inserts user and sets user.ID from the storage engine. It returns
// an error matching apperror.ErrDuplicateEmail when the email is already
// taken; the unique index decides, callers must not pre-check.
//
// List returns every user, most recently created first (id descending).
// An empty store yields an empty, non-nil slice.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	List(ctx context.Context) ([]model.User, error)
	Ping(ctx context.Context) error
}
