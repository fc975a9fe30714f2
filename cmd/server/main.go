// Package main is the entry point for the user registration service.
//
// The main package stays minimal:
//  1. Read configuration (.env + environment)
//  2. Create dependencies (logger, store, password hasher)
//  3. Start the server
//
// If the store can't be opened or its schema can't be created, the process
// exits before listening.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sakif/userreg/internal/config"
	"github.com/sakif/userreg/internal/password"
	"github.com/sakif/userreg/internal/repository/postgres"
	"github.com/sakif/userreg/internal/repository/sqlite"
	"github.com/sakif/userreg/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	store, location, err := openStore(cfg)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.IsPostgres() {
		fmt.Printf("Using database: %s\n", location)
	} else {
		fmt.Printf("Using database file: %s\n", location)
	}

	hasher, err := password.NewHasher(cfg.BcryptCost)
	if err != nil {
		store.Close()
		logger.Error("invalid password hasher settings", slog.String("error", err.Error()))
		os.Exit(1)
	}

	srv := server.New(server.Config{Addr: cfg.Addr()}, store, hasher, logger)

	// Start() blocks until the server is shut down (via Ctrl+C or SIGTERM)
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// openStore opens the configured store and returns it with a printable location.
func openStore(cfg config.Config) (server.Store, string, error) {
	if cfg.IsPostgres() {
		db, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, "", err
		}
		return db, db.Location(), nil
	}

	location := cfg.DatabaseURL
	if location != sqlite.MemoryPath {
		if abs, err := filepath.Abs(location); err == nil {
			location = abs
		}
	}

	db, err := sqlite.New(location)
	if err != nil {
		return nil, "", err
	}
	return db, db.Path(), nil
}
