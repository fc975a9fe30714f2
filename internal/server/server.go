// Package server sets up the HTTP server, router, and all route definitions.
//
// This package is the "wiring" layer: it connects handlers, middleware, and
// routes, and owns the server's start/stop lifecycle.
//
// DEPENDENCY INJECTION FLOW:
//
//	main.go opens the store (sqlite or postgres) → passes it to server.New
//	server.New creates: UserService(store) → UserHandler(service)
//
// The store is handed in explicitly; there is no package-level database handle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/userreg/internal/handler"
	"github.com/sakif/userreg/internal/middleware"
	"github.com/sakif/userreg/internal/password"
	"github.com/sakif/userreg/internal/repository"
	"github.com/sakif/userreg/internal/service"
)

// Store is a user repository the server owns and closes on shutdown.
type Store interface {
	repository.UserRepository
	Close() error
}

// Config holds server configuration.
type Config struct {
	Addr            string // listen address, e.g. ":5000"
	ShutdownTimeout time.Duration
}

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the store. When the server shuts down, it closes the store
// to flush pending writes and release the file lock.
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	store  Store
}

// New creates a new Server and wires the dependency chain:
//
//	store → UserService → UserHandler → routes
func New(cfg Config, store Store, hasher *password.Hasher, logger *slog.Logger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}

	s.setupRoutes(service.NewUserService(store, hasher, logger))

	return s
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// POST   /register  → Register a user (JSON)
// GET    /users     → List users, newest first (JSON)
// GET    /healthz   → Storage health (JSON)
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns unique ID to each request (for tracing)
// 2. RealIP: extracts real client IP from proxy headers
// 3. Logger: logs each request with timing info
// 4. Recoverer: catches panics and returns 500 instead of crashing
//
// Logger runs outside Recoverer so recovered panics are logged with their 500.
func (s *Server) setupRoutes(users *service.UserService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	s.router.NotFound(handler.NotFound)
	s.router.MethodNotAllowed(handler.MethodNotAllowed)

	userHandler := handler.NewUserHandler(users, s.logger)

	s.router.Post("/register", userHandler.HandleRegister)
	s.router.Get("/users", userHandler.HandleList)
	s.router.Get("/healthz", userHandler.HandleHealth)
}

// Handler returns the root HTTP handler. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens on the configured address and serves until SIGINT/SIGTERM,
// then shuts down gracefully.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		s.store.Close()
		return fmt.Errorf("listening on %s: %w", s.config.Addr, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is cancelled.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (ShutdownTimeout)
// 3. Close the store (flushes WAL, releases file lock)
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// Runs after everything else in this function, on every exit path.
	defer func() {
		if err := s.store.Close(); err != nil {
			s.logger.Error("closing store", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting", slog.String("addr", ln.Addr().String()))
		serverErrors <- srv.Serve(ln)
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
