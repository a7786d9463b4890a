// Package server provides the HTTP server setup and wiring.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/pendergraft/sourceproof/internal/config"
	"github.com/pendergraft/sourceproof/internal/ledger"
	"github.com/pendergraft/sourceproof/internal/middleware/logging"
	"github.com/pendergraft/sourceproof/internal/middleware/ratelimit"
	"github.com/pendergraft/sourceproof/internal/observability/metrics"
	"github.com/pendergraft/sourceproof/internal/storage"
	"github.com/pendergraft/sourceproof/internal/verification/domain"
	"github.com/pendergraft/sourceproof/internal/verification/transport"
)

// Server is the HTTP server
type Server struct {
	cfg    *config.Config
	store  storage.Store
	logger *slog.Logger
	router *chi.Mux

	verificationSvc domain.Service
}

// New creates a new server. store may be nil to run without an audit log.
func New(cfg *config.Config, store storage.Store, client ledger.ReadClient, logger *slog.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: logger,
		router: chi.NewRouter(),
	}

	// Build the verification engine and layer middleware around it. The
	// engine itself does not log or record; both live out here.
	var svc domain.Service = domain.NewVerifier(client,
		domain.WithFanOut(cfg.Verify.FanOut),
		domain.WithFailFast(cfg.Verify.FailFast),
	)
	if store != nil {
		svc = domain.RecordingMiddleware(&recorderAdapter{store: store}, logger)(svc)
	}
	svc = domain.LoggingMiddleware(logger)(svc)
	s.verificationSvc = svc

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler returns the metrics HTTP handler for separate metrics server
func (s *Server) MetricsHandler() http.Handler {
	return metrics.Handler()
}

func (s *Server) setupMiddleware() {
	// Rate limiting first, it bypasses health checks itself
	s.router.Use(ratelimit.Middleware(ratelimit.Config{
		Enabled:        s.cfg.RateLimit.Enabled,
		RequestsPerMin: s.cfg.RateLimit.RequestsPerMin,
		BurstSize:      s.cfg.RateLimit.BurstSize,
		CleanupMinutes: s.cfg.RateLimit.CleanupMinutes,
	}))

	// Standard middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(logging.Middleware(s.logger))
	s.router.Use(metrics.Middleware)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	// CORS
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})
}

func (s *Server) setupRoutes() {
	// Health checks
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/readyz", s.handleHealth)

	var auditStore transport.AuditStore
	if s.store != nil {
		auditStore = s.store
	}
	verificationHandler := transport.NewHandler(s.verificationSvc, auditStore)

	// API v1 routes
	s.router.Route("/api/v1", func(r chi.Router) {
		verificationHandler.RegisterRoutes(r)
	})
}

// Health check handler
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// recorderAdapter persists engine outcomes through the storage layer.
type recorderAdapter struct {
	store storage.Store
}

func (a *recorderAdapter) RecordVerification(ctx context.Context, rec domain.VerificationRecord) error {
	return a.store.CreateVerification(ctx, &storage.Verification{
		Package:     rec.Package,
		Fingerprint: rec.Fingerprint,
		Address:     rec.Address,
		Operation:   rec.Operation,
		Result:      rec.Result,
		Detail:      rec.Detail,
		DurationMS:  rec.Duration.Milliseconds(),
	})
}
