// Package server exposes matching sessions over HTTP: a server-sent event
// stream, a websocket stream, a blocking JSON endpoint and candidate admin.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/matching"
	"github.com/kylin-feng/v0-ai-pitch-with-ai/internal/store"
)

// DefaultCredentialCookie carries the agent provider access token.
const DefaultCredentialCookie = "secondme_access_token"

// Config holds HTTP server settings.
type Config struct {
	Addr             string        `mapstructure:"addr"`
	CredentialCookie string        `mapstructure:"credential-cookie"`
	ShutdownTimeout  time.Duration `mapstructure:"shutdown-timeout"`
	KeepAlive        time.Duration `mapstructure:"keep-alive"`
	AllowedOrigins   []string      `mapstructure:"allowed-origins"`
}

// ProfileLookup resolves the submitter's display name from their credential.
type ProfileLookup interface {
	DisplayName(ctx context.Context, credential string) (string, error)
}

// Deps are the collaborators a Server needs. Profiles is optional.
type Deps struct {
	Coordinator *matching.Coordinator
	Store       store.Repository
	Profiles    ProfileLookup
	Logger      *zap.Logger
}

type Server struct {
	cfg         Config
	coordinator *matching.Coordinator
	store       store.Repository
	profiles    ProfileLookup
	logger      *zap.Logger
	router      chi.Router
}

func New(cfg Config, deps Deps) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.CredentialCookie == "" {
		cfg.CredentialCookie = DefaultCredentialCookie
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 15 * time.Second
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	s := &Server{
		cfg:         cfg,
		coordinator: deps.Coordinator,
		store:       deps.Store,
		profiles:    deps.Profiles,
		logger:      log,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Post("/match/continue", s.handleContinue)
		r.Post("/match/{role}", s.handleMatch)
		r.Post("/match/{role}/stream", s.handleMatchStream)

		r.Get("/candidates", s.handleListCandidates)
		r.Post("/candidates", s.handleUpsertCandidate)
		r.Delete("/candidates/{id}", s.handleDeleteCandidate)

		r.Get("/sessions/{id}", s.handleGetSession)
	})

	r.Get("/ws/match/{role}", s.handleMatchSocket)
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streams stay open for the whole session
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.Error(err))
			JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "database": "unreachable"})
			return
		}
	}
	JSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
