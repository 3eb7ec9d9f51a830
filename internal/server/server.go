// Package server exposes the curation queue over a JSON HTTP API, together
// with health and Prometheus endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/curation"
	"github.com/fillipeguerrabtc/AionSupreme-sub000/internal/logging"
)

// Config controls the listener and middleware.
type Config struct {
	Addr            string
	ShutdownTimeout time.Duration

	// RequestsPerSec and Burst bound the API request rate. 0 disables it.
	RequestsPerSec float64
	Burst          int

	// Gatherer backs /metrics. Nil omits the endpoint.
	Gatherer prometheus.Gatherer
}

// Server is the HTTP front of a curation store.
type Server struct {
	cfg     Config
	store   *curation.Store
	logger  logrus.FieldLogger
	handler http.Handler
}

// New builds the routes for store.
func New(store *curation.Store, cfg Config, logger logrus.FieldLogger) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{cfg: cfg, store: store, logger: logging.OrDiscard(logger).WithField("component", "http")}

	api := &handlers{store: store, logger: s.logger}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/curation/items", api.submit)
	mux.HandleFunc("GET /api/curation/items", api.listAll)
	mux.HandleFunc("GET /api/curation/items/{id}", api.get)
	mux.HandleFunc("PATCH /api/curation/items/{id}", api.edit)
	mux.HandleFunc("POST /api/curation/items/{id}/analyze", api.analyze)
	mux.HandleFunc("POST /api/curation/items/{id}/approve", api.approve)
	mux.HandleFunc("POST /api/curation/items/{id}/publish", api.publish)
	mux.HandleFunc("POST /api/curation/items/{id}/reject", api.reject)
	mux.HandleFunc("GET /api/curation/pending", api.listPending)
	mux.HandleFunc("GET /api/curation/history", api.listHistory)
	mux.HandleFunc("POST /api/curation/retention", api.retention)

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	if cfg.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	var h http.Handler = mux
	if cfg.RequestsPerSec > 0 {
		h = rateLimitMiddleware(h, rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), max(cfg.Burst, 1)))
	}
	s.handler = securityHeadersMiddleware(h)
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.handler }

// Start listens on cfg.Addr and serves until ctx ends, then shuts down
// gracefully. It returns the bound address, which differs from cfg.Addr
// when the port is 0, and a channel that yields the serve error.
func (s *Server) Start(ctx context.Context) (string, <-chan error, error) {
	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return "", nil, fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // approvals may wait on analysis and indexing
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		err := srv.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Warn("server shutdown error")
		}
	}()

	addr := listener.Addr().String()
	s.logger.WithField("addr", addr).Info("curation API listening")
	return addr, errCh, nil
}

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func rateLimitMiddleware(next http.Handler, limiter *rate.Limiter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
