package retention

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/backupd/internal/audit"
	"github.com/edvin/backupd/internal/metrics"
	"github.com/edvin/backupd/internal/model"
)

type Jobs interface {
	GetByID(ctx context.Context, id string) (*model.BackupJob, error)
	CompletedGroup(ctx context.Context, kind string, tenantID *string) ([]model.BackupJob, error)
	MarkPurged(ctx context.Context, jobID string) error
}

type Schedules interface {
	List(ctx context.Context) ([]model.BackupSchedule, error)
}

type Objects interface {
	ByJob(ctx context.Context, jobID string) ([]model.StorageObject, error)
	Delete(ctx context.Context, id string) error
}

// ObjectStore deletes backend copies. Secondary goes first so a crash
// mid-purge leaves the authoritative copy, never an orphaned secondary.
type ObjectStore interface {
	DeletePrimary(ctx context.Context, key string) error
	DeleteSecondary(ctx context.Context, key string) error
}

type Auditor interface {
	Record(ev audit.Event)
}

// Manager applies each schedule's retention policy to its (tenant, kind)
// group of completed backups. Groups without a scheduled policy, manual
// one-off backups included, are never purged automatically.
type Manager struct {
	jobs      Jobs
	schedules Schedules
	objects   Objects
	store     ObjectStore
	recorder  Auditor
	logger    zerolog.Logger
	interval  time.Duration
	now       func() time.Time
}

func NewManager(jobs Jobs, schedules Schedules, objects Objects, store ObjectStore,
	recorder Auditor, logger zerolog.Logger, interval time.Duration) *Manager {
	return &Manager{
		jobs:      jobs,
		schedules: schedules,
		objects:   objects,
		store:     store,
		recorder:  recorder,
		logger:    logger.With().Str("component", "retention").Logger(),
		interval:  interval,
		now:       time.Now,
	}
}

func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Sweep purges out-of-policy backups for every schedule with a retention
// limit configured.
func (m *Manager) Sweep(ctx context.Context) {
	schedules, err := m.schedules.List(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to list schedules for retention sweep")
		return
	}

	for _, sched := range schedules {
		if sched.RetentionCount == nil && sched.RetentionDays == nil {
			continue
		}
		m.sweepGroup(ctx, &sched)
	}
}

func (m *Manager) sweepGroup(ctx context.Context, sched *model.BackupSchedule) {
	logger := m.logger.With().Str("schedule_id", sched.ID).Str("kind", sched.Kind).Logger()

	group, err := m.jobs.CompletedGroup(ctx, sched.Kind, sched.TenantID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load completed group")
		return
	}

	for _, job := range PurgeCandidates(group, sched.RetentionCount, sched.RetentionDays, m.now()) {
		if err := m.purge(ctx, &job); err != nil {
			logger.Error().Err(err).Str("job_id", job.ID).Msg("purge failed, will retry next sweep")
			continue
		}
		logger.Info().Str("job_id", job.ID).Msg("backup purged by retention policy")
	}
}

// PurgeBackup purges one backup on explicit operator request. The floor
// still holds: the last completed backup of a group cannot be removed.
func (m *Manager) PurgeBackup(ctx context.Context, jobID, actor string) error {
	job, err := m.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status != model.StatusCompleted || job.Purged {
		return fmt.Errorf("backup %s is not purgeable: %w", jobID, model.ErrInvalidTransition)
	}

	group, err := m.jobs.CompletedGroup(ctx, job.Kind, job.TenantID)
	if err != nil {
		return err
	}
	if ViolatesFloor(group, job.ID) {
		m.recorder.Record(audit.Event{
			Event:       model.AuditRetentionRefused,
			BackupJobID: &job.ID,
			TenantID:    job.TenantID,
			Actor:       actor,
		})
		return fmt.Errorf("backup %s is the last completed backup of its group: %w",
			jobID, model.ErrRetentionFloorViolation)
	}
	return m.purge(ctx, job)
}

// purge removes the backend copies and marks the job purged. Order matters:
// secondary, then primary, then the registry. A failure at any step leaves
// the records in place so the next sweep retries.
func (m *Manager) purge(ctx context.Context, job *model.BackupJob) error {
	objects, err := m.objects.ByJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("list objects of job %s: %w", job.ID, err)
	}

	for _, obj := range objects {
		if err := m.store.DeleteSecondary(ctx, obj.Key); err != nil {
			return fmt.Errorf("delete %s from secondary: %w", obj.Key, err)
		}
		if err := m.store.DeletePrimary(ctx, obj.Key); err != nil {
			return fmt.Errorf("delete %s from primary: %w", obj.Key, err)
		}
		if err := m.objects.Delete(ctx, obj.ID); err != nil {
			return fmt.Errorf("delete object record %s: %w", obj.ID, err)
		}
	}

	if err := m.jobs.MarkPurged(ctx, job.ID); err != nil {
		return err
	}

	metrics.BackupsPurged.Inc()
	m.recorder.Record(audit.Event{
		Event:       model.AuditJobPurged,
		BackupJobID: &job.ID,
		TenantID:    job.TenantID,
		Actor:       "retention",
	})
	return nil
}
