// Package http serves the checkpoint status API alongside health, readiness
// and metrics endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/checkpoint-status-service/internal/domain"
)

// SnapshotView exposes the published snapshot. pipeline.Scheduler implements it.
type SnapshotView interface {
	Current() domain.Snapshot
	CheckReadiness(ctx context.Context) error
}

// Mutations runs user writes. mutation.Coordinator implements it.
type Mutations interface {
	SubmitReport(ctx context.Context, actor string, r domain.Report) (domain.PendingMutation, error)
	Vote(ctx context.Context, actor, itemID string) (domain.PendingMutation, error)
	AddBlacklistItem(ctx context.Context, actor string, n domain.NewBlacklistItem) (domain.PendingMutation, domain.BlacklistItem, error)
}

// TrafficProbe answers ad-hoc traffic lookups. pipeline.Prober implements it.
type TrafficProbe interface {
	Probe(ctx context.Context, checkpointID string, at *domain.Coordinate) domain.TrafficSample
}

// Server exposes the API and the health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	view       SnapshotView
	mutations  Mutations
	traffic    TrafficProbe
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /api routes plus /healthz,
// /readyz, and /metrics.
func NewServer(addr string, view SnapshotView, mutations Mutations, traffic TrafficProbe, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		view:      view,
		mutations: mutations,
		traffic:   traffic,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(view))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/checkpoints", s.handleCheckpoints)
	mux.HandleFunc("GET /api/checkpoints/nearest", s.handleNearest)
	mux.HandleFunc("GET /api/checkpoints/{id}/share", s.handleShare)
	mux.HandleFunc("POST /api/checkpoints/{id}/reports", s.handleSubmitReport)
	mux.HandleFunc("GET /api/blacklist", s.handleBlacklist)
	mux.HandleFunc("POST /api/blacklist", s.handleAddBlacklistItem)
	mux.HandleFunc("POST /api/blacklist/{id}/witness", s.handleWitness)
	mux.HandleFunc("GET /api/traffic", s.handleTraffic)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker SnapshotView) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
