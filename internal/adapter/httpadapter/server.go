package httpadapter

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server exposes the climate API alongside health, readiness, and metrics
// endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /v1 API routes.
func NewServer(addr string, svc ClimateService, ready sharedobs.ReadinessChecker, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	h := &handler{svc: svc, logger: logger}
	mux.HandleFunc("GET /v1/stations", h.listStations)
	mux.HandleFunc("GET /v1/stations/nearest", h.nearestStation)
	mux.HandleFunc("POST /v1/locations", h.createLocation)
	mux.HandleFunc("GET /v1/locations", h.listLocations)
	mux.HandleFunc("GET /v1/locations/{id}", h.getLocation)
	mux.HandleFunc("DELETE /v1/locations/{id}", h.deleteLocation)
	mux.HandleFunc("POST /v1/locations/{id}/resolve-station", h.resolveStation)
	mux.HandleFunc("GET /v1/locations/{id}/comparison", h.compareDate)
	mux.HandleFunc("GET /v1/locations/{id}/comparisons", h.compareRange)
	mux.HandleFunc("GET /v1/locations/{id}/export.csv", h.exportCSV)

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

// Readiness is ready when every checker is.
type Readiness []sharedobs.ReadinessChecker

func (rs Readiness) CheckReadiness(ctx context.Context) error {
	for _, r := range rs {
		if err := r.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}
