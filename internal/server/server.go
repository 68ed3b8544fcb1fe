// Package server is the composition root: it builds every dependency from
// the configuration, mounts the routes and runs the HTTP server with a
// graceful shutdown.
//
//	config → sqlstore.DB → services → handlers → chi router
//	                     ↘ notify.Dispatcher (started here, drained on shutdown)
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
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/ranirkini2004/Open-Hub-API/internal/auth"
	"github.com/ranirkini2004/Open-Hub-API/internal/config"
	"github.com/ranirkini2004/Open-Hub-API/internal/handler"
	"github.com/ranirkini2004/Open-Hub-API/internal/middleware"
	"github.com/ranirkini2004/Open-Hub-API/internal/notify"
	"github.com/ranirkini2004/Open-Hub-API/internal/repository/sqlstore"
	"github.com/ranirkini2004/Open-Hub-API/internal/service"
)

// Option adjusts how New wires dependencies. Tests use it to point GitHub at
// an httptest server or to swap the email sender.
type Option func(*options)

type options struct {
	githubOpts []auth.GitHubOption
	sender     notify.Sender
	passwords  *auth.PasswordService
}

func WithGitHubOptions(opts ...auth.GitHubOption) Option {
	return func(o *options) { o.githubOpts = append(o.githubOpts, opts...) }
}

func WithSender(s notify.Sender) Option {
	return func(o *options) { o.sender = s }
}

// WithPasswords replaces the bcrypt hasher, usually with a cheap cost.
func WithPasswords(p *auth.PasswordService) Option {
	return func(o *options) { o.passwords = p }
}

// Server owns the database and the notification dispatcher; both are closed
// by Start on shutdown, or by Close.
type Server struct {
	router     *chi.Mux
	cfg        config.Config
	logger     *slog.Logger
	db         *sqlstore.DB
	dispatcher *notify.Dispatcher
}

// New opens the configured database and wires the application.
func New(cfg config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	if cfg.Database.Driver == sqlstore.DialectSQLite {
		if err := ensureDBDir(cfg.Database.DSN); err != nil {
			return nil, err
		}
	}

	db, err := sqlstore.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s, err := NewWithDB(cfg, db, logger, opts...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewWithDB wires the application around an already-open database.
func NewWithDB(cfg config.Config, db *sqlstore.DB, logger *slog.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// === AUTH ===
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	passwords := o.passwords
	if passwords == nil {
		passwords = auth.NewPasswordService()
	}
	github := auth.NewGitHubProvider(
		cfg.GitHub.ClientID,
		cfg.GitHub.ClientSecret,
		cfg.GitHub.CallbackURL,
		o.githubOpts...,
	)
	if !cfg.GitHub.Enabled() {
		logger.Warn("GitHub OAuth is not configured; /auth/github endpoints will return config errors")
	}

	// === NOTIFICATIONS ===
	sender := o.sender
	if sender == nil {
		sender = newSender(cfg.Email, logger)
	}
	dispatcher := notify.NewDispatcher(sender, notify.Options{
		QueueSize:   cfg.Email.QueueSize,
		Workers:     cfg.Email.Workers,
		MaxAttempts: cfg.Email.MaxAttempts,
		RetryDelay:  cfg.Email.RetryDelay,
		SendTimeout: cfg.Email.SendTimeout,
	}, logger.With(slog.String("component", "notify")))

	// === SERVICES ===
	// *sqlstore.DB implements every repository interface.
	authService := service.NewAuthService(db, tokens, passwords, github, logger)
	userService := service.NewUserService(db, logger)
	projectService := service.NewProjectService(db, db, github, logger)
	collabService := service.NewCollabService(db, db, db, dispatcher, logger)

	s := &Server{
		router:     chi.NewRouter(),
		cfg:        cfg,
		logger:     logger,
		db:         db,
		dispatcher: dispatcher,
	}

	s.routes(routeDeps{
		tokens:   tokens,
		health:   handler.NewHealthHandler(db, logger),
		auth:     handler.NewAuthHandler(authService, userService, github, handler.AuthOptions{FrontendURL: cfg.FrontendURL, CookieSecure: cfg.Auth.CookieSecure, TokenTTL: tokens.TTL()}, logger),
		projects: handler.NewProjectHandler(projectService, collabService, logger),
		requests: handler.NewRequestHandler(collabService, logger),
		users:    handler.NewUserHandler(userService, collabService, logger),
	})

	return s, nil
}

func newSender(cfg config.Email, logger *slog.Logger) notify.Sender {
	if cfg.SMTP.Host == "" {
		logger.Warn("EMAIL_SMTP_HOST not set; acceptance emails will only be logged")
		return notify.NewLogSender(logger)
	}
	return notify.NewMailSender(notify.SMTPConfig{
		SenderAddress: cfg.SenderAddress,
		Host:          cfg.SMTP.Host,
		Port:          cfg.SMTP.Port,
		Identity:      cfg.SMTP.Identity,
		Username:      cfg.SMTP.Username,
		Password:      cfg.SMTP.Password,
	})
}

type routeDeps struct {
	tokens   *auth.TokenService
	health   *handler.HealthHandler
	auth     *handler.AuthHandler
	projects *handler.ProjectHandler
	requests *handler.RequestHandler
	users    *handler.UserHandler
}

// routes mounts every endpoint.
//
// Middleware order: request ID, real IP, request log, panic recovery, CORS.
// The logger sits outside Recoverer so a recovered panic is logged as 500.
func (s *Server) routes(d routeDeps) {
	r := s.router

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-GitHub-Token"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	requireAuth := auth.RequireAuth(d.tokens)

	r.Get("/healthz", d.health.Healthz)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", d.auth.HandleGitHubLogin)
		r.Get("/github/callback", d.auth.HandleGitHubCallback)
		r.Post("/github", d.auth.HandleGitHubCode)
		r.Post("/register", d.auth.HandleRegister)
		r.Post("/login", d.auth.HandleLogin)
		r.Post("/logout", d.auth.HandleLogout)
	})

	r.With(requireAuth).Get("/api/me", d.auth.HandleMe)

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", d.projects.List)
		r.Get("/{id}", d.projects.Get)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", d.projects.Create)
			r.Get("/owned", d.projects.Owned)
			r.Get("/joined", d.projects.Joined)
			r.Get("/github/repos", d.projects.GitHubRepos)
			r.Post("/request", d.requests.Send)
			r.Get("/requests/pending", d.requests.Pending)
			r.Put("/requests/{id}", d.requests.Update)
			r.Delete("/{id}", d.projects.Delete)
		})
	})

	r.Route("/users", func(r chi.Router) {
		r.With(requireAuth).Put("/profile/me", d.users.UpdateMe)
		r.Get("/{username}", d.users.Get)
		r.Get("/{username}/joined", d.users.Joined)
	})
}

// Handler exposes the router, for tests and for embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Dispatcher exposes the notification dispatcher so callers that skip Start
// can run it themselves.
func (s *Server) Dispatcher() *notify.Dispatcher { return s.dispatcher }

// Close drains the dispatcher and closes the database.
func (s *Server) Close(ctx context.Context) error {
	var errs []error
	if err := s.dispatcher.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stopping dispatcher: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing database: %w", err))
	}
	return errors.Join(errs...)
}

// Start runs the HTTP server until SIGINT or SIGTERM, then shuts down in
// order: stop accepting requests, let in-flight ones finish, drain pending
// emails and close the database.
func (s *Server) Start() error {
	s.dispatcher.Start()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.Database.Driver),
			slog.String("frontend", s.cfg.FrontendURL),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			runErr = fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.Close(ctx); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if runErr == nil {
		s.logger.Info("server stopped gracefully")
	}
	return runErr
}

// ensureDBDir creates the parent directory of a file-backed SQLite DSN.
func ensureDBDir(dsn string) error {
	if dsn == "" || dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating database directory %s: %w", dir, err)
	}
	return nil
}
