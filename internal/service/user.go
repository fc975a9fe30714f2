// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → normalizes, validates, hashes, timestamps
//	Repository (Data layer)  → reads/writes to the database
//
// UserService takes a repository.UserRepository (interface), not a concrete
// store, so tests can pass a fake and main can pick SQLite or Postgres.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sakif/userreg/internal/apperror"
	"github.com/sakif/userreg/internal/model"
	"github.com/sakif/userreg/internal/password"
	"github.com/sakif/userreg/internal/repository"
)

// MinPasswordLength is the shortest accepted password, in characters.
const MinPasswordLength = 6

// Client-facing validation messages.
const (
	msgMissingFields    = "name, email and password are required"
	msgPasswordTooShort = "password must be at least 6 characters"
	msgPasswordTooLong  = "password must be 72 bytes or fewer"
)

// RegisterInput is the raw registration request. Fields are exactly what the
// client sent; normalization happens in Register.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// UserService handles registration and listing of users.
type UserService struct {
	repo   repository.UserRepository
	hasher *password.Hasher
	logger *slog.Logger
	now    func() time.Time
}

// NewUserService creates a new UserService.
func NewUserService(repo repository.UserRepository, hasher *password.Hasher, logger *slog.Logger) *UserService {
	return &UserService{
		repo:   repo,
		hasher: hasher,
		logger: logger,
		now:    time.Now,
	}
}

// Register validates in, hashes the password and stores a new user.
//
// Validation order:
//  1. name (trimmed), email (trimmed, lower-cased) and password must be non-empty → MissingField
//  2. password must be at least MinPasswordLength characters → WeakPassword
//  3. password must fit in bcrypt's 72 bytes → WeakPassword
//
// The insert is the only storage call. A taken email comes back from the
// repository as apperror.ErrDuplicateEmail and is returned unchanged.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	name := strings.TrimSpace(in.Name)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	switch {
	case name == "":
		return nil, apperror.MissingField(msgMissingFields, "name")
	case email == "":
		return nil, apperror.MissingField(msgMissingFields, "email")
	case in.Password == "":
		return nil, apperror.MissingField(msgMissingFields, "password")
	}

	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		return nil, apperror.WeakPassword(msgPasswordTooShort)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		if errors.Is(err, password.ErrTooLong) {
			return nil, apperror.WeakPassword(msgPasswordTooLong)
		}
		return nil, fmt.Errorf("registering user: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrDuplicateEmail) {
			s.logger.Info("registration rejected: email already registered",
				slog.String("email", email),
			)
			return nil, err
		}
		s.logger.Error("failed to create user",
			slog.String("email", email),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("registering user: %w", err)
	}

	s.logger.Info("user registered",
		slog.Int64("id", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// List returns every registered user, newest first.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.repo.List(ctx)
	if err != nil {
		s.logger.Error("failed to list users", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Ready reports whether the store can serve requests.
func (s *UserService) Ready(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Warn("storage not ready", slog.String("error", err.Error()))
		return apperror.StorageUnavailable("users store", err)
	}
	return nil
}
