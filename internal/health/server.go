// Package health serves the operational endpoints: a liveness probe and
// the Prometheus metrics registered by the rest of the process.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/harbormail/mailferry/internal/ports"
)

// Server exposes /health and /metrics on its own listener.
type Server struct {
	srv     *http.Server
	logger  ports.Logger
	version string
	started time.Time
}

// NewServer builds the server on the given address, e.g. ":9090".
func NewServer(addr, version string, logger ports.Logger) *Server {
	s := &Server{
		logger:  logger,
		version: version,
		started: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start serves until Stop is called or the listener fails. It blocks.
func (s *Server) Start() error {
	s.logger.Info("health server listening", ports.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler returns the mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}
