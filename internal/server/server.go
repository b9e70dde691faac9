// Package server is the composition root: it wires the database,
// repositories, services, and handlers together and owns the route table
// and the server lifecycle. main.go stays minimal; everything that knows
// how the pieces fit lives here.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/cardbinder/internal/auth"
	"github.com/sakif/cardbinder/internal/config"
	"github.com/sakif/cardbinder/internal/handler"
	"github.com/sakif/cardbinder/internal/middleware"
	sqliteRepo "github.com/sakif/cardbinder/internal/repository/sqlite"
	"github.com/sakif/cardbinder/internal/seed"
	"github.com/sakif/cardbinder/internal/service"
)

// Server owns the router, the configuration, and the database handle.
// The database is closed during shutdown so the WAL is flushed and the
// file lock released.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and assembles the full dependency chain.
//
// Each layer receives only what it needs: services get repository
// interfaces, handlers get services. Auth is mandatory because every data
// route is per-user; GitHub OAuth on top of that is optional and its
// routes degrade to 501 when the credentials are absent.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("server: JWT secret is required (set JWT_SECRET)")
	}

	db, err := sqliteRepo.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	// Global middleware, in execution order.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	tokens, err := auth.NewTokenService(s.cfg.Auth.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	var github *auth.GitHubProvider
	if s.cfg.Auth.GitHubClientID != "" && s.cfg.Auth.GitHubClientSecret != "" {
		github = auth.NewGitHubProvider(
			s.cfg.Auth.GitHubClientID,
			s.cfg.Auth.GitHubClientSecret,
			s.cfg.Auth.GitHubCallbackURL,
		)
	} else {
		s.logger.Warn("GitHub OAuth not configured; only email/password sign-in is available")
	}

	// Services share one per-user lock set so a restore, a default swap,
	// and a seed import for the same user serialize against each other.
	locks := service.NewUserLocks()

	collectionSvc := service.NewCollectionService(s.db.Collections, s.db.Cards, locks, s.logger)
	cardSvc := service.NewCardService(s.db.Cards, s.db.Collections, s.logger)
	backupSvc := service.NewBackupService(s.db.Cards, s.db.Backups, s.db.Collections, s.db.Users, locks, s.logger)
	seedSvc := service.NewSeedService(s.db.Cards, s.db.SeedMarkers, collectionSvc, seed.Version, seed.Load, locks, s.logger)
	exportSvc := service.NewExportService(s.db.Cards)
	authSvc := service.NewAuthService(s.db.Users, tokens, auth.NewPasswordService(), collectionSvc, seedSvc, s.logger)

	authHandler := handler.NewAuthHandler(github, authSvc, s.logger)
	collectionHandler := handler.NewCollectionHandler(collectionSvc, s.logger)
	cardHandler := handler.NewCardHandler(cardSvc, exportSvc, s.logger)
	backupHandler := handler.NewBackupHandler(backupSvc, s.logger)
	seedHandler := handler.NewSeedHandler(seedSvc, s.logger)

	// Public auth routes.
	s.router.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.HandleGitHubLogin)
		r.Get("/github/callback", authHandler.HandleGitHubCallback)
		r.Post("/register", authHandler.HandleRegister)
		r.Post("/login", authHandler.HandleLogin)
		r.Post("/logout", authHandler.HandleLogout)
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Everything under /api is per-user data and requires a valid token.
	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens))

		r.Get("/me", authHandler.HandleMe)

		r.Route("/collections", func(r chi.Router) {
			r.Get("/", collectionHandler.HandleList)
			r.Post("/", collectionHandler.HandleCreate)
			r.Get("/default", collectionHandler.HandleGetDefault)
			r.Get("/{id}", collectionHandler.HandleGet)
			r.Patch("/{id}", collectionHandler.HandleUpdate)
			r.Delete("/{id}", collectionHandler.HandleDelete)
			r.Post("/{id}/default", collectionHandler.HandleSetDefault)
			r.Delete("/{id}/default", collectionHandler.HandleUnsetDefault)
		})

		r.Route("/cards", func(r chi.Router) {
			r.Get("/", cardHandler.HandleList)
			r.Post("/", cardHandler.HandleCreate)
			r.Post("/move", cardHandler.HandleMove)
			r.Get("/export/csv", cardHandler.HandleExportCSV)
			r.Get("/{id}", cardHandler.HandleGet)
			r.Put("/{id}", cardHandler.HandleUpdate)
			r.Delete("/{id}", cardHandler.HandleDelete)
		})

		r.Route("/backups", func(r chi.Router) {
			r.Get("/", backupHandler.HandleList)
			r.Post("/", backupHandler.HandleCreate)
			r.Delete("/", backupHandler.HandleClear)
			r.Get("/export", backupHandler.HandleExport)
			r.Post("/import", backupHandler.HandleImport)
			r.Get("/{id}", backupHandler.HandleGet)
			r.Delete("/{id}", backupHandler.HandleDelete)
			r.Post("/{id}/restore", backupHandler.HandleRestore)
		})

		r.Route("/seed", func(r chi.Router) {
			r.Get("/", seedHandler.HandleStatus)
			r.Post("/import", seedHandler.HandleImport)
			r.Post("/reset", seedHandler.HandleReset)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully: stop accepting connections, wait up to 30s for in-flight
// requests, close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("database", s.cfg.Database.Path),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Router exposes the assembled router for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
