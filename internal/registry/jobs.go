package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/backupd/internal/model"
)

const jobColumns = `id, kind, tenant_id, status, progress, triggered_by, schedule_id,
	error_message, cancel_requested, purged, purged_at, started_at, completed_at, created_at, updated_at`

// JobService is the backup job state machine. All transitions are
// compare-and-set on status, so an illegal transition never changes state
// and two workers can never claim the same job.
type JobService struct {
	db DB
}

func NewJobService(db DB) *JobService {
	return &JobService{db: db}
}

func scanJob(row interface{ Scan(dest ...any) error }) (model.BackupJob, error) {
	var j model.BackupJob
	err := row.Scan(&j.ID, &j.Kind, &j.TenantID, &j.Status, &j.Progress, &j.TriggeredBy,
		&j.ScheduleID, &j.ErrorMessage, &j.CancelRequested, &j.Purged, &j.PurgedAt,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	return j, err
}

// Create inserts a pending job unless a pending or running job already
// exists for the same (tenant, kind) key. The duplicate is rejected with
// ErrConcurrentJobConflict, never silently dropped or queued twice.
func (s *JobService) Create(ctx context.Context, job *model.BackupJob) error {
	tag, err := s.db.Exec(ctx,
		`INSERT INTO backup_jobs (id, kind, tenant_id, status, progress, triggered_by, schedule_id, created_at, updated_at)
		 SELECT $1, $2, $3, $4, 0, $5, $6, $7, $7
		 WHERE NOT EXISTS (
		   SELECT 1 FROM backup_jobs
		   WHERE kind = $2 AND COALESCE(tenant_id, '') = COALESCE($3, '')
		     AND status IN ($8, $9)
		 )`,
		job.ID, job.Kind, job.TenantID, model.StatusPending, job.TriggeredBy,
		job.ScheduleID, job.CreatedAt, model.StatusPending, model.StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("insert backup job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("create job for %s: %w", job.TenantKey(), model.ErrConcurrentJobConflict)
	}
	return nil
}

// ClaimNext atomically claims the oldest pending job whose (tenant, kind)
// key has no running job, moving it to running. Returns nil when nothing is
// claimable. Jobs sharing a key are claimed strictly in creation order.
func (s *JobService) ClaimNext(ctx context.Context) (*model.BackupJob, error) {
	row := s.db.QueryRow(ctx,
		`UPDATE backup_jobs SET status = $1, started_at = now(), updated_at = now()
		 WHERE id = (
		   SELECT j.id FROM backup_jobs j
		   WHERE j.status = $2
		     AND NOT EXISTS (
		       SELECT 1 FROM backup_jobs r
		       WHERE r.status = $1 AND r.kind = j.kind
		         AND COALESCE(r.tenant_id, '') = COALESCE(j.tenant_id, '')
		     )
		   ORDER BY j.created_at
		   LIMIT 1
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING `+jobColumns,
		model.StatusRunning, model.StatusPending,
	)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return &job, nil
}

// Checkpoint records progress and serves as the cooperative cancellation
// point between pipeline steps. Progress is accepted only while running and
// must be non-decreasing; otherwise ErrInvalidTransition. When an operator
// has requested cancellation, the job flips to cancelled and ErrJobCancelled
// is returned so the pipeline stops before its next step.
func (s *JobService) Checkpoint(ctx context.Context, jobID string, progress int) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("progress %d out of range: %w", progress, model.ErrInvalidTransition)
	}

	var cancelRequested bool
	err := s.db.QueryRow(ctx,
		`UPDATE backup_jobs SET progress = $2, updated_at = now()
		 WHERE id = $1 AND status = $3 AND progress <= $2
		 RETURNING cancel_requested`,
		jobID, progress, model.StatusRunning,
	).Scan(&cancelRequested)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("progress update on job %s: %w", jobID, model.ErrInvalidTransition)
		}
		return fmt.Errorf("checkpoint job %s: %w", jobID, err)
	}

	if cancelRequested {
		if err := s.transition(ctx, jobID, model.StatusRunning, model.StatusCancelled, nil); err != nil {
			return fmt.Errorf("cancel job %s at checkpoint: %w", jobID, err)
		}
		return model.ErrJobCancelled
	}
	return nil
}

// Complete moves a running job to completed.
func (s *JobService) Complete(ctx context.Context, jobID string) error {
	return s.transition(ctx, jobID, model.StatusRunning, model.StatusCompleted, nil)
}

// Fail moves a running job to failed, capturing the full error text.
func (s *JobService) Fail(ctx context.Context, jobID string, cause string) error {
	return s.transition(ctx, jobID, model.StatusRunning, model.StatusFailed, &cause)
}

func (s *JobService) transition(ctx context.Context, jobID, from, to string, errMsg *string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_jobs SET status = $3, error_message = COALESCE($4, error_message),
		        completed_at = now(), updated_at = now()
		 WHERE id = $1 AND status = $2`,
		jobID, from, to, errMsg,
	)
	if err != nil {
		return fmt.Errorf("transition job %s to %s: %w", jobID, to, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not %s: %w", jobID, from, model.ErrInvalidTransition)
	}
	return nil
}

// RequestCancel cancels a pending job immediately, or flags a running job
// for cooperative cancellation at its next checkpoint. Terminal jobs are
// never resurrected or re-cancelled.
func (s *JobService) RequestCancel(ctx context.Context, jobID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_jobs SET status = $3, completed_at = now(), updated_at = now()
		 WHERE id = $1 AND status = $2`,
		jobID, model.StatusPending, model.StatusCancelled,
	)
	if err != nil {
		return fmt.Errorf("cancel pending job %s: %w", jobID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	tag, err = s.db.Exec(ctx,
		`UPDATE backup_jobs SET cancel_requested = true, updated_at = now()
		 WHERE id = $1 AND status = $2`,
		jobID, model.StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("flag running job %s for cancellation: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cancel job %s: %w", jobID, model.ErrInvalidTransition)
	}
	return nil
}

func (s *JobService) GetByID(ctx context.Context, id string) (*model.BackupJob, error) {
	row := s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM backup_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("backup job %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("get backup job %s: %w", id, err)
	}
	return &job, nil
}

// AppendLog appends one ordered log line to the job.
func (s *JobService) AppendLog(ctx context.Context, jobID, line string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO backup_job_logs (job_id, seq, at, line)
		 SELECT $1, COALESCE(MAX(seq), 0) + 1, now(), $2 FROM backup_job_logs WHERE job_id = $1`,
		jobID, line,
	)
	if err != nil {
		return fmt.Errorf("append log to job %s: %w", jobID, err)
	}
	return nil
}

func (s *JobService) Logs(ctx context.Context, jobID string) ([]model.JobLogEntry, error) {
	rows, err := s.db.Query(ctx,
		`SELECT job_id, seq, at, line FROM backup_job_logs WHERE job_id = $1 ORDER BY seq`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list logs for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var entries []model.JobLogEntry
	for rows.Next() {
		var e model.JobLogEntry
		if err := rows.Scan(&e.JobID, &e.Seq, &e.At, &e.Line); err != nil {
			return nil, fmt.Errorf("scan log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate log entries: %w", err)
	}
	return entries, nil
}

// ListFilter narrows List results. Zero values mean "any".
type ListFilter struct {
	Status   string
	Kind     string
	TenantID string
	From     *time.Time
	To       *time.Time
}

// List returns jobs matching the filter with cursor pagination, newest
// cursor order by id.
func (s *JobService) List(ctx context.Context, filter ListFilter, limit int, cursor string) ([]model.BackupJob, bool, error) {
	query := `SELECT ` + jobColumns + ` FROM backup_jobs WHERE 1=1`
	var args []any
	argIdx := 1

	add := func(clause string, v any) {
		query += fmt.Sprintf(clause, argIdx)
		args = append(args, v)
		argIdx++
	}

	if filter.Status != "" {
		add(` AND status = $%d`, filter.Status)
	}
	if filter.Kind != "" {
		add(` AND kind = $%d`, filter.Kind)
	}
	if filter.TenantID != "" {
		add(` AND tenant_id = $%d`, filter.TenantID)
	}
	if filter.From != nil {
		add(` AND created_at >= $%d`, *filter.From)
	}
	if filter.To != nil {
		add(` AND created_at <= $%d`, *filter.To)
	}
	if cursor != "" {
		add(` AND id > $%d`, cursor)
	}

	query += ` ORDER BY id`
	add(` LIMIT $%d`, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list backup jobs: %w", err)
	}
	defer rows.Close()

	var jobs []model.BackupJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, false, fmt.Errorf("scan backup job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate backup jobs: %w", err)
	}

	hasMore := len(jobs) > limit
	if hasMore {
		jobs = jobs[:limit]
	}
	return jobs, hasMore, nil
}

// HasActiveJob reports whether a pending or running job exists for the key.
func (s *JobService) HasActiveJob(ctx context.Context, kind string, tenantID *string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM backup_jobs
		   WHERE kind = $1 AND COALESCE(tenant_id, '') = COALESCE($2, '')
		     AND status IN ($3, $4)
		 )`,
		kind, tenantID, model.StatusPending, model.StatusRunning,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check active job for kind %s: %w", kind, err)
	}
	return exists, nil
}

// CompletedGroup returns the completed, un-purged jobs of one
// (tenant, kind) group ordered by completion time descending.
func (s *JobService) CompletedGroup(ctx context.Context, kind string, tenantID *string) ([]model.BackupJob, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM backup_jobs
		 WHERE kind = $1 AND COALESCE(tenant_id, '') = COALESCE($2, '')
		   AND status = $3 AND NOT purged
		 ORDER BY completed_at DESC`,
		kind, tenantID, model.StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("list completed group: %w", err)
	}
	defer rows.Close()

	var jobs []model.BackupJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completed job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed group: %w", err)
	}
	return jobs, nil
}

// Groups returns the distinct (kind, tenant) pairs that have completed,
// un-purged backups, for the retention sweep.
func (s *JobService) Groups(ctx context.Context) ([]model.BackupJob, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT kind, tenant_id FROM backup_jobs WHERE status = $1 AND NOT purged`,
		model.StatusCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("list retention groups: %w", err)
	}
	defer rows.Close()

	var groups []model.BackupJob
	for rows.Next() {
		var g model.BackupJob
		if err := rows.Scan(&g.Kind, &g.TenantID); err != nil {
			return nil, fmt.Errorf("scan retention group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retention groups: %w", err)
	}
	return groups, nil
}

// MarkPurged records purge completion on a completed job. Completed jobs are
// otherwise immutable; purge marking is the single exception.
func (s *JobService) MarkPurged(ctx context.Context, jobID string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE backup_jobs SET purged = true, purged_at = now(), updated_at = now()
		 WHERE id = $1 AND status = $2 AND NOT purged`,
		jobID, model.StatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("mark job %s purged: %w", jobID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("purge job %s: %w", jobID, model.ErrInvalidTransition)
	}
	return nil
}
