// ABOUTME: HTTP server wiring for the keygate API
// ABOUTME: Builds the route mux, runs the listener, and sweeps expired sessions

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/keygate/keygate/internal/auth"
	"github.com/keygate/keygate/internal/config"
	"github.com/keygate/keygate/internal/replay"
	"github.com/keygate/keygate/internal/store"
)

// sweepInterval is how often expired sessions are purged in the background.
const sweepInterval = time.Hour

// replayGuardSize bounds how many recent signatures the replay guard tracks.
const replayGuardSize = 100_000

// Server is the keygate HTTP API server.
type Server struct {
	store    store.Store
	verifier *auth.JWTVerifier
	replays  *replay.Guard
	logger   *slog.Logger

	httpAddr        string
	timestampWindow time.Duration
	sessionTTL      time.Duration
	tokenTTL        time.Duration
}

// New creates a Server from configuration and an opened store.
func New(cfg *config.Config, st store.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	window := cfg.Auth.TimestampWindow
	if window <= 0 {
		window = auth.DefaultTimestampWindow
	}
	return &Server{
		store:           st,
		verifier:        auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret)),
		replays:         replay.NewGuard(2*window, replayGuardSize),
		logger:          logger.With("component", "server"),
		httpAddr:        cfg.Server.HTTPAddr,
		timestampWindow: window,
		sessionTTL:      cfg.Auth.SessionTTL,
		tokenTTL:        cfg.Auth.DeveloperTokenTTL,
	}
}

// Routes builds the HTTP handler with all middleware applied.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Signed application endpoints
	appAuth := auth.AppAuthMiddleware(s.store, s.timestampWindow, s.replays, s.logger)
	session := auth.SessionMiddleware(s.store)
	mux.Handle("POST /api/users/register", appAuth(http.HandlerFunc(s.handleUserRegister)))
	mux.Handle("POST /api/users/login", appAuth(http.HandlerFunc(s.handleUserLogin)))
	mux.Handle("GET /api/users/me", appAuth(session(http.HandlerFunc(s.handleMe))))
	mux.Handle("POST /api/users/logout", appAuth(session(http.HandlerFunc(s.handleUserLogout))))

	// Developer endpoints
	mux.HandleFunc("POST /api/auth/register", s.handleDeveloperRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleDeveloperLogin)

	devAuth := auth.DeveloperAuthMiddleware(s.verifier)
	mux.Handle("POST /api/applications", devAuth(http.HandlerFunc(s.handleCreateApplication)))
	mux.Handle("GET /api/applications", devAuth(http.HandlerFunc(s.handleListApplications)))
	mux.Handle("GET /api/applications/{id}", devAuth(http.HandlerFunc(s.handleGetApplication)))
	mux.Handle("PUT /api/applications/{id}", devAuth(http.HandlerFunc(s.handleUpdateApplication)))
	mux.Handle("DELETE /api/applications/{id}", devAuth(http.HandlerFunc(s.handleDeleteApplication)))
	mux.Handle("POST /api/applications/{id}/rotate-secret", devAuth(http.HandlerFunc(s.handleRotateSecret)))
	mux.Handle("GET /api/applications/{id}/users", devAuth(http.HandlerFunc(s.handleListUsers)))

	return s.corsMiddleware(mux)
}

// Run starts the HTTP listener and blocks until ctx is canceled or the
// listener fails. Shutdown is graceful with a short drain timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.httpAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	defer s.replays.Close()
	go s.sweepExpiredSessions(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP API listening", "addr", s.httpAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// sweepExpiredSessions periodically removes sessions past their expiry.
func (s *Server) sweepExpiredSessions(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.store.DeleteExpiredSessions(ctx)
			if err != nil {
				s.logger.Warn("session sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("swept expired sessions", "count", n)
			}
		}
	}
}

// corsMiddleware sets CORS headers for browser-based management consoles.
// Signed application traffic comes from backends and ignores these.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers",
			"Accept, Authorization, Content-Type, X-Public-Key, X-Timestamp, X-Signature, X-Session-Token")
		w.Header().Set("Access-Control-Max-Age", "300")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleHealth reports liveness without touching authentication.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}
