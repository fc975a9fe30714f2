// Package model defines the data structures used throughout the application.
package model

import "time"

// CreatedAtLayout is the on-disk and on-the-wire format of User.CreatedAt:
// UTC, microsecond precision, RFC 3339 compatible.
const CreatedAtLayout = "2006-01-02T15:04:05.000000Z"

// User represents a registered user account.
//
// WHY PasswordHash HAS json:"-"?
// The hash must never leave the server. Tagging it "-" means encoding/json
// skips it, so even a handler that accidentally encodes a full User can't
// leak it.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// Public is the JSON view of a user returned by the API.
type Public struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// Public returns the client-safe view of u.
func (u *User) Public() Public {
	return Public{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CreatedAt: FormatCreatedAt(u.CreatedAt),
	}
}

// FormatCreatedAt renders t in CreatedAtLayout.
func FormatCreatedAt(t time.Time) string {
	return t.UTC().Format(CreatedAtLayout)
}

// createdAtFallbacks are accepted when reading rows written by older
// deployments: plain RFC 3339, and naive ISO-8601 assumed to be UTC.
var createdAtFallbacks = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

// ParseCreatedAt parses a created_at column value.
func ParseCreatedAt(s string) (time.Time, error) {
	t, err := time.Parse(CreatedAtLayout, s)
	if err == nil {
		return t, nil
	}
	for _, layout := range createdAtFallbacks {
		if t, ferr := time.Parse(layout, s); ferr == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, err
}
