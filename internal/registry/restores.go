package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/backupd/internal/model"
)

const restoreColumns = `id, source_backup_id, target_tenant_id, status, requested_by,
	confirmed_by, confirmed_at, confirmation_input, error_message, started_at, completed_at, created_at, updated_at`

// RestoreService persists restore jobs. Terminal records are immutable and
// form the restore audit trail; a restore references its source backup by id
// only and never owns it.
type RestoreService struct {
	db DB
}

func NewRestoreService(db DB) *RestoreService {
	return &RestoreService{db: db}
}

func scanRestore(row interface{ Scan(dest ...any) error }) (model.RestoreJob, error) {
	var r model.RestoreJob
	err := row.Scan(&r.ID, &r.SourceBackupID, &r.TargetTenantID, &r.Status, &r.RequestedBy,
		&r.ConfirmedBy, &r.ConfirmedAt, &r.ConfirmationInput, &r.ErrorMessage,
		&r.StartedAt, &r.CompletedAt, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *RestoreService) Create(ctx context.Context, job *model.RestoreJob) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO restore_jobs (id, source_backup_id, target_tenant_id, status, requested_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		job.ID, job.SourceBackupID, job.TargetTenantID, model.RestoreStatusPending,
		job.RequestedBy, job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert restore job: %w", err)
	}
	return nil
}

func (s *RestoreService) GetByID(ctx context.Context, id string) (*model.RestoreJob, error) {
	row := s.db.QueryRow(ctx, `SELECT `+restoreColumns+` FROM restore_jobs WHERE id = $1`, id)
	job, err := scanRestore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("restore job %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get restore job %s: %w", id, err)
	}
	return &job, nil
}

// Confirm records a successful confirmation and moves pending to confirmed.
// The identifier comparison happens in the orchestrator; this is only the
// CAS write.
func (s *RestoreService) Confirm(ctx context.Context, id, confirmedBy, input string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE restore_jobs
		 SET status = $2, confirmed_by = $3, confirmed_at = now(), confirmation_input = $4, updated_at = now()
		 WHERE id = $1 AND status = $5`,
		id, model.RestoreStatusConfirmed, confirmedBy, input, model.RestoreStatusPending,
	)
	if err != nil {
		return fmt.Errorf("confirm restore job %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("restore job %s is not pending: %w", id, model.ErrInvalidTransition)
	}
	return nil
}

// ClaimNext atomically claims the oldest confirmed restore whose target
// tenant has no other restore running.
func (s *RestoreService) ClaimNext(ctx context.Context) (*model.RestoreJob, error) {
	row := s.db.QueryRow(ctx,
		`UPDATE restore_jobs SET status = $1, started_at = now(), updated_at = now()
		 WHERE id = (
		   SELECT j.id FROM restore_jobs j
		   WHERE j.status = $2
		     AND NOT EXISTS (
		       SELECT 1 FROM restore_jobs r
		       WHERE r.status = $1 AND r.target_tenant_id = j.target_tenant_id
		     )
		   ORDER BY j.confirmed_at
		   LIMIT 1
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+restoreColumns,
		model.RestoreStatusRunning, model.RestoreStatusConfirmed,
	)
	job, err := scanRestore(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim next restore: %w", err)
	}
	return &job, nil
}

func (s *RestoreService) Complete(ctx context.Context, id string) error {
	return s.transition(ctx, id, model.RestoreStatusRunning, model.RestoreStatusCompleted, nil)
}

func (s *RestoreService) Fail(ctx context.Context, id string, cause string) error {
	return s.transition(ctx, id, model.RestoreStatusRunning, model.RestoreStatusFailed, &cause)
}

func (s *RestoreService) transition(ctx context.Context, id, from, to string, errMsg *string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE restore_jobs SET status = $3, error_message = COALESCE($4, error_message),
		        completed_at = now(), updated_at = now()
		 WHERE id = $1 AND status = $2`,
		id, from, to, errMsg,
	)
	if err != nil {
		return fmt.Errorf("transition restore %s to %s: %w", id, to, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("restore %s is not %s: %w", id, from, model.ErrInvalidTransition)
	}
	return nil
}

// ListByTenant returns restores targeting one tenant, newest first.
func (s *RestoreService) ListByTenant(ctx context.Context, tenantID string, limit int, cursor string) ([]model.RestoreJob, bool, error) {
	query := `SELECT ` + restoreColumns + ` FROM restore_jobs WHERE target_tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND id > $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list restores for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var jobs []model.RestoreJob
	for rows.Next() {
		j, err := scanRestore(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan restore job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate restore jobs: %w", err)
	}

	hasMore := len(jobs) > limit
	if hasMore {
		jobs = jobs[:limit]
	}
	return jobs, hasMore, nil
}
