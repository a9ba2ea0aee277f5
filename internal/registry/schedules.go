package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/backupd/internal/model"
)

const scheduleColumns = `id, kind, tenant_id, cron_expression, retention_count, retention_days,
	enabled, last_run_at, next_run_at, created_at, updated_at`

type ScheduleService struct {
	db DB
}

func NewScheduleService(db DB) *ScheduleService {
	return &ScheduleService{db: db}
}

func scanSchedule(row interface{ Scan(dest ...any) error }) (model.BackupSchedule, error) {
	var s model.BackupSchedule
	err := row.Scan(&s.ID, &s.Kind, &s.TenantID, &s.CronExpression, &s.RetentionCount,
		&s.RetentionDays, &s.Enabled, &s.LastRunAt, &s.NextRunAt, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (s *ScheduleService) Create(ctx context.Context, sched *model.BackupSchedule) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO backup_schedules (id, kind, tenant_id, cron_expression, retention_count, retention_days, enabled, next_run_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		sched.ID, sched.Kind, sched.TenantID, sched.CronExpression, sched.RetentionCount,
		sched.RetentionDays, sched.Enabled, sched.NextRunAt, sched.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert backup schedule: %w", err)
	}
	return nil
}

func (s *ScheduleService) Update(ctx context.Context, sched *model.BackupSchedule) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_schedules
		 SET cron_expression = $2, retention_count = $3, retention_days = $4, next_run_at = $5, updated_at = now()
		 WHERE id = $1`,
		sched.ID, sched.CronExpression, sched.RetentionCount, sched.RetentionDays, sched.NextRunAt,
	)
	if err != nil {
		return fmt.Errorf("update backup schedule %s: %w", sched.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backup schedule %s: %w", sched.ID, model.ErrNotFound)
	}
	return nil
}

func (s *ScheduleService) Toggle(ctx context.Context, id string, enabled bool) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_schedules SET enabled = $2, updated_at = now() WHERE id = $1`,
		id, enabled,
	)
	if err != nil {
		return fmt.Errorf("toggle backup schedule %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backup schedule %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func (s *ScheduleService) GetByID(ctx context.Context, id string) (*model.BackupSchedule, error) {
	row := s.db.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM backup_schedules WHERE id = $1`, id)
	sched, err := scanSchedule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("backup schedule %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get backup schedule %s: %w", id, err)
	}
	return &sched, nil
}

func (s *ScheduleService) List(ctx context.Context) ([]model.BackupSchedule, error) {
	rows, err := s.db.Query(ctx, `SELECT `+scheduleColumns+` FROM backup_schedules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list backup schedules: %w", err)
	}
	defer rows.Close()

	var scheds []model.BackupSchedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan backup schedule: %w", err)
		}
		scheds = append(scheds, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backup schedules: %w", err)
	}
	return scheds, nil
}

// Due returns the enabled schedules whose next run is at or before now.
func (s *ScheduleService) Due(ctx context.Context, now time.Time) ([]model.BackupSchedule, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+scheduleColumns+` FROM backup_schedules WHERE enabled AND next_run_at <= $1 ORDER BY next_run_at`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("list due schedules: %w", err)
	}
	defer rows.Close()

	var scheds []model.BackupSchedule
	for rows.Next() {
		sched, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due schedule: %w", err)
		}
		scheds = append(scheds, sched)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due schedules: %w", err)
	}
	return scheds, nil
}

// Advance moves a schedule's next run forward. lastRun is set only when a
// job was actually enqueued; a skipped tick advances next_run_at alone.
func (s *ScheduleService) Advance(ctx context.Context, id string, lastRun *time.Time, nextRun time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE backup_schedules
		 SET last_run_at = COALESCE($2, last_run_at), next_run_at = $3, updated_at = now()
		 WHERE id = $1`,
		id, lastRun, nextRun,
	)
	if err != nil {
		return fmt.Errorf("advance backup schedule %s: %w", id, err)
	}
	return nil
}
