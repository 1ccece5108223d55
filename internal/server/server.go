// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It decides:
//   - which URL patterns map to which handler functions
//   - what middleware runs on which routes
//   - how the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → Server.New creates:
//	  sqlite.DB ──────────────┬→ AccountService ─→ AccountHandler, GitHubHandler
//	  PasswordService ────────┤
//	  picture.Store ──────────┘
//	  sqlite.DB ──────────────→ PostService ────→ PostHandler
//	  TokenService → SessionManager → auth.LoadUser middleware
//
// This is the "composition root": every dependency is built here and
// nowhere else.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/companyblog/internal/auth"
	"github.com/sakif/companyblog/internal/config"
	"github.com/sakif/companyblog/internal/handler"
	"github.com/sakif/companyblog/internal/middleware"
	"github.com/sakif/companyblog/internal/picture"
	sqliteRepo "github.com/sakif/companyblog/internal/repository/sqlite"
	"github.com/sakif/companyblog/internal/service"
	"github.com/sakif/companyblog/web"
)

// shutdownTimeout is how long in-flight requests get after SIGINT/SIGTERM.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection. Start closes it after the
// graceful shutdown; callers that never Start (tests, the CLI) call Close.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB

	accounts *service.AccountService
	posts    *service.PostService
}

// New builds every dependency from cfg and registers the routes.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
			return nil, fmt.Errorf("server: creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("server: opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("server: setting up routes: %w", err)
	}

	return s, nil
}

// newPictureStore picks the picture backend. The local store is also
// returned separately because its files must be served by this server.
func newPictureStore(ctx context.Context, cfg *config.Config) (picture.Store, *picture.LocalStore, error) {
	if cfg.PictureBackend == config.BackendS3 {
		store, err := picture.NewS3Store(ctx, picture.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			PublicURL: cfg.S3PublicURL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	}

	local, err := picture.NewLocalStore(cfg.PictureDir)
	if err != nil {
		return nil, nil, err
	}
	return local, local, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET       /static/*               → embedded CSS and images
//	GET       /static/profile_pics/*  → uploaded pictures (local backend only)
//	GET       /                       → all posts, paginated
//	GET|POST  /register               → registration form
//	GET|POST  /login                  → login form (?next=)
//	GET       /logout                 → end session
//	GET|POST  /account                → profile + picture (login required)
//	GET       /auth/github/login      → start GitHub sign-in  (if configured)
//	GET       /auth/github/callback   → finish GitHub sign-in (if configured)
//	GET       /{username}             → one author's posts, paginated
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID → assigns an id that Logger includes
//  2. RealIP    → client IP from proxy headers
//  3. Logger    → one line per request
//  4. Recoverer → a panic becomes a 500 instead of a crash
//  5. LoadUser  → current user from the session cookie, if any
//  6. CrossOrigin → 403 page for POSTs a browser sent from another site
func (s *Server) setupRoutes(ctx context.Context) error {
	cfg := s.cfg

	pictures, localPictures, err := newPictureStore(ctx, cfg)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	sessions := auth.NewSessionManager(tokens, cfg.SecureCookies)
	passwords := auth.NewPasswordServiceWithCost(cfg.BcryptCost)

	render, err := handler.NewRenderer(web.Templates(), pictures, s.logger)
	if err != nil {
		return err
	}
	errorPages := handler.NewErrorPages(render, s.logger)

	// DEPENDENCY CHAIN:
	//   s.db implements both repository.UserRepository and PostRepository.
	//   Services receive the interfaces; handlers receive the services.
	s.accounts = service.NewAccountService(s.db, passwords, pictures, s.logger)
	s.posts = service.NewPostService(s.db, s.db, s.logger)

	accountHandler := handler.NewAccountHandler(s.accounts, sessions, pictures, render, errorPages,
		handler.AccountHandlerConfig{
			MaxUploadBytes: cfg.MaxUploadBytes,
			GitHubEnabled:  cfg.GitHubEnabled(),
		}, s.logger)
	postHandler := handler.NewPostHandler(s.posts, render, errorPages, s.logger)

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(auth.LoadUser(sessions, s.accounts))
	s.router.Use(middleware.CrossOrigin(http.HandlerFunc(errorPages.Forbidden)))

	s.router.NotFound(errorPages.NotFound)

	// === Static Files ===
	// chi matches the longest prefix, so profile_pics wins over /static/*.
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(web.Static())))
	if localPictures != nil {
		s.router.Handle(picture.LocalURLPrefix+"*", localPictures.Handler())
	}

	// === Pages ===
	s.router.Get("/", postHandler.HandleIndex)

	s.router.Get("/register", accountHandler.HandleRegisterPage)
	s.router.Post("/register", accountHandler.HandleRegister)
	s.router.Get("/login", accountHandler.HandleLoginPage)
	s.router.Post("/login", accountHandler.HandleLogin)
	s.router.Get("/logout", accountHandler.HandleLogout)

	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireUser)
		r.Get("/account", accountHandler.HandleAccountPage)
		r.Post("/account", accountHandler.HandleUpdateAccount)
	})

	// === GitHub sign-in (optional) ===
	if cfg.GitHubEnabled() {
		github := auth.NewGitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.CallbackURL())
		githubHandler := handler.NewGitHubHandler(github, s.accounts, sessions, errorPages, cfg.SecureCookies, s.logger)

		s.router.Route("/auth/github", func(r chi.Router) {
			r.Get("/login", githubHandler.HandleLogin)
			r.Get("/callback", githubHandler.HandleCallback)
		})
		s.logger.Info("GitHub sign-in enabled", slog.String("callback", cfg.CallbackURL()))
	}

	// Registered last for readability only; chi prefers static segments
	// like /login over {username} regardless of order.
	s.router.Get("/{username}", postHandler.HandleUserPosts)

	return nil
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Accounts exposes the account service for the command line tools.
func (s *Server) Accounts() *service.AccountService {
	return s.accounts
}

// Close releases the database. Start calls it on shutdown.
func (s *Server) Close() error {
	return s.db.Close()
}

// Start serves until ctx is cancelled or SIGINT/SIGTERM arrives, then shuts
// down gracefully.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the database (flushes the WAL, releases the file lock)
func (s *Server) Start(ctx context.Context) error {
	defer s.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.cfg.Port)),
			slog.String("database", s.cfg.DBPath),
			slog.String("pictures", s.cfg.PictureBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
