// Package server is the composition root: it opens the database, builds
// every service and handler, and mounts them on one chi router.
//
// DEPENDENCY FLOW:
//
//	config.Config ─► sqlite.DB ─► services ─► handlers ─► routes
//
// Handlers never touch the database and services never touch HTTP; this
// package is the only place that knows about both.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/snapfeed/internal/auth"
	"github.com/sakif/snapfeed/internal/caption"
	"github.com/sakif/snapfeed/internal/config"
	"github.com/sakif/snapfeed/internal/handler"
	"github.com/sakif/snapfeed/internal/middleware"
	sqliteRepo "github.com/sakif/snapfeed/internal/repository/sqlite"
	"github.com/sakif/snapfeed/internal/service"
	"github.com/sakif/snapfeed/internal/storage"
)

// Server owns the router and every resource that must be released on
// shutdown (the database, the GCS client).
type Server struct {
	router  *chi.Mux
	config  *config.Config
	logger  *slog.Logger
	db      *sqliteRepo.DB
	closers []func() error

	tokens    *auth.TokenService
	passwords *auth.PasswordService
	store     storage.Store
	generator caption.Generator
}

// Option customises a Server before routes are built. Tests use it to swap
// out slow or external collaborators.
type Option func(*Server)

// WithPasswordService replaces the default bcrypt cost.
func WithPasswordService(p *auth.PasswordService) Option {
	return func(s *Server) { s.passwords = p }
}

// WithCaptionGenerator replaces the Hugging Face client.
func WithCaptionGenerator(g caption.Generator) Option {
	return func(s *Server) { s.generator = g }
}

// New wires the whole application. On error every resource opened so far is
// closed again.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		db:      db,
		closers: []func() error{db.Close},
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.setup(); err != nil {
		s.Close()
		return nil, err
	}

	return s, nil
}

func (s *Server) setup() error {
	tokens, err := auth.NewTokenService(s.config.AccessTokenSecret, s.config.RefreshTokenSecret, s.config.AccessTokenTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	s.tokens = tokens

	if s.passwords == nil {
		s.passwords = auth.NewPasswordService()
	}

	if s.store == nil {
		if s.store, err = s.openStore(); err != nil {
			return err
		}
	}

	if s.generator == nil {
		s.generator = caption.NewHuggingFace(s.config.HuggingFaceAPIKey, "")
	}

	s.setupRoutes()
	return nil
}

// openStore picks GCS when a bucket is configured and local disk otherwise.
func (s *Server) openStore() (storage.Store, error) {
	if s.config.GCSBucket != "" {
		gcs, err := storage.NewGCS(context.Background(), s.config.GCSBucket, s.config.GCSCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("opening upload bucket: %w", err)
		}
		s.closers = append(s.closers, gcs.Close)
		return gcs, nil
	}

	local, err := storage.NewLocal(s.config.UploadDir, s.config.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening upload dir: %w", err)
	}
	return local, nil
}

// setupRoutes mounts middleware and handlers.
//
// MIDDLEWARE ORDER:
//  1. RequestID, RealIP: tag the request and fix RemoteAddr behind proxies
//  2. Logger, metrics: see the final status of everything below them
//  3. Recoverer: turns panics into 500s that the logger still records
//  4. CORS
//
// Auth routes carry a per-IP rate limit; write routes carry RequireAuth.
// Feed reads are public, and OptionalAuth lets them mark the caller's likes.
func (s *Server) setupRoutes() {
	cfg := s.config
	timeout := cfg.OperationTimeout

	var verifier auth.IdentityVerifier
	if cfg.GoogleEnabled() {
		verifier = auth.NewGoogleVerifier(cfg.GoogleClientID)
	}
	var google *auth.GoogleProvider
	if cfg.GoogleEnabled() && cfg.GoogleClientSecret != "" {
		google = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
	}

	users := s.db.Users()
	authService := service.NewAuthService(users, s.tokens, s.passwords, verifier, timeout, s.logger)
	userService := service.NewUserService(users, timeout, s.logger)
	postService := service.NewPostService(s.db.Posts(), timeout, s.logger)
	commentService := service.NewCommentService(s.db.Comments(), timeout, s.logger)
	captions := caption.NewService(s.generator, nil, cfg.CaptionCacheTTL, s.logger)

	authHandler := handler.NewAuthHandler(authService, google, s.logger)
	userHandler := handler.NewUserHandler(userService, s.logger)
	postHandler := handler.NewPostHandler(postService, userService, s.store, cfg.MaxUploadBytes, s.logger)
	commentHandler := handler.NewCommentHandler(commentService, userService, s.logger)
	uploadHandler := handler.NewUploadHandler(s.store, cfg.MaxUploadBytes, s.logger)
	captionHandler := handler.NewCaptionHandler(captions, s.logger)
	healthHandler := handler.NewHealthHandler(s.db, s.logger)

	metrics := middleware.NewMetrics()
	limiter := middleware.NewRateLimiter(cfg.AuthRatePerSecond, cfg.AuthRateBurst)
	requireAuth := auth.RequireAuth(s.tokens)
	optionalAuth := auth.OptionalAuth(s.tokens)

	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(s.logger))
	r.Use(metrics.Instrument)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/healthz", healthHandler.HandleHealth)
	r.Handle("/metrics", metrics.Handler())

	if local, ok := s.store.(*storage.Local); ok {
		fileServer := http.FileServer(http.Dir(local.Dir()))
		r.Handle("/public/*", http.StripPrefix("/public/", fileServer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Use(limiter.Limit)
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/google", authHandler.HandleGoogle)
			r.Post("/refresh", authHandler.HandleRefresh)
			r.Post("/logout", authHandler.HandleLogout)
			if google != nil {
				r.Get("/google/login", authHandler.HandleGoogleLogin)
				r.Get("/google/callback", authHandler.HandleGoogleCallback)
			}
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", userHandler.HandleList)
			r.Get("/me", userHandler.HandleMe)
			r.Get("/email/{email}", userHandler.HandleGetByEmail)
			r.Get("/{id}", userHandler.HandleGetByID)
			r.Put("/{id}", userHandler.HandleUpdate)
			r.Delete("/{id}", userHandler.HandleDelete)
		})

		r.Route("/posts", func(r chi.Router) {
			r.With(optionalAuth).Get("/", postHandler.HandleList)
			r.With(optionalAuth).Get("/{id}", postHandler.HandleGetByID)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", postHandler.HandleCreate)
				r.Put("/{id}", postHandler.HandleUpdate)
				r.Delete("/{id}", postHandler.HandleDelete)
				r.Post("/{id}/like", postHandler.HandleLike)
			})
		})

		r.Route("/comments", func(r chi.Router) {
			r.Get("/", commentHandler.HandleList)
			r.Get("/{id}", commentHandler.HandleGetByID)
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", commentHandler.HandleCreate)
				r.Put("/{id}", commentHandler.HandleUpdate)
				r.Delete("/{id}", commentHandler.HandleDelete)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/file", uploadHandler.HandleUpload)
			r.Post("/ai/generate-caption", captionHandler.HandleGenerate)
		})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database and any storage client.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Start serves until SIGINT/SIGTERM, then drains in-flight requests for up
// to 30 seconds and closes the database.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
			slog.Bool("google", s.config.GoogleEnabled()),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
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
