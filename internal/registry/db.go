package registry

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the registry needs. Every state
// transition is a single statement so claim semantics stay atomic without
// explicit transactions.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Services bundles the registry services sharing one DB handle.
type Services struct {
	Jobs      *JobService
	Schedules *ScheduleService
	Restores  *RestoreService
	Objects   *ObjectService
	Tenants   *TenantService
	Health    *HealthService
}

func NewServices(db DB) *Services {
	return &Services{
		Jobs:      NewJobService(db),
		Schedules: NewScheduleService(db),
		Restores:  NewRestoreService(db),
		Objects:   NewObjectService(db),
		Tenants:   NewTenantService(db),
		Health:    NewHealthService(db),
	}
}
