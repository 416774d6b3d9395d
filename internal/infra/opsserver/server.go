// Package opsserver exposes the operational HTTP surface: liveness and
// readiness probes, the dependency health summary, and Prometheus metrics.
// It is not the application's API layer.
package opsserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mediacast/internal/monitor"
)

// Server provides HTTP endpoints for operational probes.
// Endpoints:
//   - /health: liveness probe (always returns 200 OK)
//   - /health/ready: readiness probe (200 when ready and no dependency is
//     unhealthy, 503 otherwise)
//   - /health/dependencies: full system health summary as JSON
//   - /metrics: Prometheus metrics
//
// The server supports graceful shutdown via context cancellation.
type Server struct {
	addr    string
	logger  *slog.Logger
	mon     *monitor.Monitor
	isReady *atomic.Bool
	server  *http.Server
}

// healthResponse is the JSON response format for probe endpoints.
type healthResponse struct {
	Status string `json:"status"`
}

// New creates an operational server over the given monitor.
func New(addr string, mon *monitor.Monitor, logger *slog.Logger) *Server {
	isReady := &atomic.Bool{}
	isReady.Store(false) // start as not ready

	return &Server{
		addr:    addr,
		logger:  logger,
		mon:     mon,
		isReady: isReady,
	}
}

// Start starts the HTTP server. This is a blocking call that runs until
// the context is cancelled or an error occurs; shutdown is graceful with
// a 5-second timeout.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleLiveness)
	mux.HandleFunc("/health/ready", s.handleReadiness)
	mux.HandleFunc("/health/dependencies", s.handleDependencies)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("ops server starting", slog.String("addr", s.addr))
		if err := s.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("ops server shutting down")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("ops server shutdown failed", slog.Any("error", err))
			return err
		}
		s.logger.Info("ops server stopped")
		return http.ErrServerClosed

	case err := <-errChan:
		if err == http.ErrServerClosed {
			return err
		}
		s.logger.Error("ops server failed", slog.Any("error", err))
		return err
	}
}

// SetReady sets the readiness state. This affects /health/ready; mark
// ready after startup finishes and not ready before shutdown.
func (s *Server) SetReady(ready bool) {
	s.isReady.Store(ready)
	s.logger.Info("ops server readiness changed", slog.Bool("ready", ready))
}

// handleLiveness handles /health. Always returns 200 OK with
// {"status":"ok"}; a dead process simply won't answer.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok"}); err != nil {
		s.logger.Error("failed to encode liveness response", slog.Any("error", err))
	}
}

// handleReadiness handles /health/ready. Returns 200 only when startup
// has completed and no watched dependency is currently unhealthy.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ready := s.isReady.Load()
	status := "ok"
	if ready && s.mon != nil {
		if summary := s.mon.SystemHealthSummary(); summary.Status == monitor.StatusUnhealthy {
			ready = false
			status = "unhealthy dependencies"
		}
	}

	if ready {
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(healthResponse{Status: status}); err != nil {
			s.logger.Error("failed to encode readiness response", slog.Any("error", err))
		}
		return
	}

	if status == "ok" {
		status = "not ready"
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	if err := json.NewEncoder(w).Encode(healthResponse{Status: status}); err != nil {
		s.logger.Error("failed to encode not ready response", slog.Any("error", err))
	}
}

// dependenciesResponse is the JSON shape of the health summary endpoint.
type dependenciesResponse struct {
	Status        string            `json:"status"`
	Healthy       int               `json:"healthy"`
	Degraded      int               `json:"degraded"`
	Unhealthy     int               `json:"unhealthy"`
	Dependencies  map[string]string `json:"dependencies"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Timestamp     time.Time         `json:"timestamp"`
}

// handleDependencies handles /health/dependencies.
func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.mon == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	summary := s.mon.SystemHealthSummary()
	resp := dependenciesResponse{
		Status:        string(summary.Status),
		Healthy:       summary.Healthy,
		Degraded:      summary.Degraded,
		Unhealthy:     summary.Unhealthy,
		Dependencies:  make(map[string]string, len(summary.Dependencies)),
		UptimeSeconds: summary.UptimeSeconds,
		Timestamp:     summary.Timestamp,
	}
	for dep, status := range summary.Dependencies {
		resp.Dependencies[dep] = string(status)
	}

	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("failed to encode dependencies response", slog.Any("error", err))
	}
}
