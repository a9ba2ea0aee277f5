package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/backupd/internal/metrics"
	"github.com/edvin/backupd/internal/model"
	"github.com/edvin/backupd/internal/registry"
)

// HealthMonitor probes both backends on an interval and persists the
// outcome so the API can answer health queries from the registry.
type HealthMonitor struct {
	store    *Store
	health   *registry.HealthService
	logger   zerolog.Logger
	interval time.Duration
}

func NewHealthMonitor(store *Store, health *registry.HealthService, logger zerolog.Logger, interval time.Duration) *HealthMonitor {
	return &HealthMonitor{
		store:    store,
		health:   health,
		logger:   logger.With().Str("component", "storage-health").Logger(),
		interval: interval,
	}
}

func (m *HealthMonitor) Run(ctx context.Context) {
	m.Probe(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Probe(ctx)
		}
	}
}

// Probe pings both backends once.
func (m *HealthMonitor) Probe(ctx context.Context) {
	m.probeBackend(ctx, model.BackendPrimary, m.store.Primary())
	m.probeBackend(ctx, model.BackendSecondary, m.store.Secondary())
}

func (m *HealthMonitor) probeBackend(ctx context.Context, name string, backend Backend) {
	stepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	err := backend.Ping(stepCtx)
	now := time.Now()

	if err != nil {
		msg := err.Error()
		metrics.StorageBackendUp.WithLabelValues(name).Set(0)
		m.logger.Warn().Err(err).Str("backend", name).Msg("storage backend unreachable")
		if uerr := m.health.Upsert(ctx, name, false, nil, &msg); uerr != nil {
			m.logger.Error().Err(uerr).Str("backend", name).Msg("failed to record storage health")
		}
		return
	}

	metrics.StorageBackendUp.WithLabelValues(name).Set(1)
	if uerr := m.health.Upsert(ctx, name, true, &now, nil); uerr != nil {
		m.logger.Error().Err(uerr).Str("backend", name).Msg("failed to record storage health")
	}
}
