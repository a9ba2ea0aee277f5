package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/backupd/internal/model"
)

// HealthService persists the last observed state of each storage backend so
// the API can answer health queries without touching the backends itself.
type HealthService struct {
	db DB
}

func NewHealthService(db DB) *HealthService {
	return &HealthService{db: db}
}

func (s *HealthService) Upsert(ctx context.Context, backend string, reachable bool, verifiedAt *time.Time, lastErr *string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO storage_health (backend, reachable, last_verified, last_error, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (backend) DO UPDATE
		 SET reachable = $2, last_verified = COALESCE($3, storage_health.last_verified),
		     last_error = $4, updated_at = now()`,
		backend, reachable, verifiedAt, lastErr,
	)
	if err != nil {
		return fmt.Errorf("upsert storage health for %s: %w", backend, err)
	}
	return nil
}

func (s *HealthService) Get(ctx context.Context, backend string) (*model.StorageHealth, error) {
	var h model.StorageHealth
	err := s.db.QueryRow(ctx,
		`SELECT backend, reachable, last_verified, last_error, updated_at FROM storage_health WHERE backend = $1`,
		backend,
	).Scan(&h.Backend, &h.Reachable, &h.LastVerified, &h.LastError, &h.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("storage health for %s: %w", backend, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get storage health for %s: %w", backend, err)
	}
	return &h, nil
}
