// Package config loads runtime settings from the environment.
//
// A .env file in the working directory is read first (if present) with
// godotenv; variables already set in the real environment win over it.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultPort        = 5000
	DefaultDatabaseURL = "users.db"
)

// Config holds everything main needs to start the service.
type Config struct {
	Host        string // empty means all interfaces
	Port        int
	DatabaseURL string // SQLite file path or postgres:// URL
	LogLevel    slog.Level
	BcryptCost  int
}

// Addr is the listen address, e.g. ":5000" or "127.0.0.1:8080".
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// IsPostgres reports whether DatabaseURL points at a Postgres server.
func (c Config) IsPostgres() bool {
	u := strings.ToLower(c.DatabaseURL)
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}

// Load reads .env (if any) and the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from lookup, applying defaults and validating values.
func FromEnv(lookup func(string) (string, bool)) (Config, error) {
	cfg := Config{
		Port:        DefaultPort,
		DatabaseURL: DefaultDatabaseURL,
		LogLevel:    slog.LevelInfo,
		BcryptCost:  bcrypt.DefaultCost,
	}

	if v, ok := lookup("HOST"); ok {
		cfg.Host = strings.TrimSpace(v)
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return Config{}, fmt.Errorf("config: invalid PORT %q", v)
		}
		cfg.Port = port
	}

	if v, ok := lookup("DATABASE_URL"); ok && strings.TrimSpace(v) != "" {
		cfg.DatabaseURL = strings.TrimSpace(v)
	}

	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		// slog.Level understands "debug", "info", "warn", "error" (any case).
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("config: invalid LOG_LEVEL %q", v)
		}
	}

	if v, ok := lookup("BCRYPT_COST"); ok && v != "" {
		cost, err := strconv.Atoi(v)
		if err != nil || cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
			return Config{}, fmt.Errorf("config: invalid BCRYPT_COST %q (want %d-%d)", v, bcrypt.MinCost, bcrypt.MaxCost)
		}
		cfg.BcryptCost = cost
	}

	return cfg, nil
}
