package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/edvin/backupd/internal/api/handler"
	mw "github.com/edvin/backupd/internal/api/middleware"
	"github.com/edvin/backupd/internal/audit"
	"github.com/edvin/backupd/internal/registry"
	"github.com/edvin/backupd/internal/restore"
)

// Server is the operator-facing HTTP API. It only reads and writes the
// registry; all execution happens in the worker process.
type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services *registry.Services
	pool     *pgxpool.Pool
	recorder *audit.Recorder
}

func NewServer(logger zerolog.Logger, pool *pgxpool.Pool, recorder *audit.Recorder) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: registry.NewServices(pool),
		pool:     pool,
		recorder: recorder,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	orchestrator := restore.NewOrchestrator(s.services.Jobs, s.services.Restores,
		s.services.Tenants, s.recorder, s.logger)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.Auth(s.pool))

		backup := handler.NewBackup(s.services.Jobs, s.services.Objects, s.services.Tenants, s.recorder)
		r.Get("/backups", backup.List)
		r.Post("/backups", backup.Create)
		r.Get("/backups/{id}", backup.Get)
		r.Post("/backups/{id}/cancel", backup.Cancel)
		r.Delete("/backups/{id}", backup.Delete)

		rest := handler.NewRestore(orchestrator, s.services.Restores)
		r.Post("/restores", rest.Initiate)
		r.Get("/restores/{id}", rest.Get)
		r.Post("/restores/{id}/confirm", rest.Confirm)
		r.Get("/tenants/{tenantID}/restores", rest.ListByTenant)

		schedule := handler.NewSchedule(s.services.Schedules, s.services.Tenants)
		r.Get("/schedules", schedule.List)
		r.Post("/schedules", schedule.Create)
		r.Get("/schedules/{id}", schedule.Get)
		r.Put("/schedules/{id}", schedule.Update)
		r.Post("/schedules/{id}/enable", schedule.Enable)
		r.Post("/schedules/{id}/disable", schedule.Disable)

		storage := handler.NewStorage(s.services.Health)
		r.Get("/storage/health", storage.Health)
		r.Get("/storage/{backend}/health", storage.BackendHealth)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true

	if err := s.pool.Ping(ctx); err != nil {
		checks["registry_db"] = err.Error()
		healthy = false
	} else {
		checks["registry_db"] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
