package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/backupd/internal/audit"
	"github.com/edvin/backupd/internal/metrics"
	"github.com/edvin/backupd/internal/model"
	"github.com/edvin/backupd/internal/platform"
)

// Jobs is the slice of the job registry the scheduler needs.
type Jobs interface {
	Create(ctx context.Context, job *model.BackupJob) error
	HasActiveJob(ctx context.Context, kind string, tenantID *string) (bool, error)
}

type Schedules interface {
	Due(ctx context.Context, now time.Time) ([]model.BackupSchedule, error)
	Advance(ctx context.Context, id string, lastRun *time.Time, nextRun time.Time) error
}

type Auditor interface {
	Record(ev audit.Event)
}

// Scheduler turns due backup schedules into pending jobs. A tick whose
// (tenant, kind) key still has an active job is skipped, not queued: the
// next cron slot covers it. Missed ticks after downtime collapse into at
// most one catch-up run because next_run_at is recomputed from now.
type Scheduler struct {
	jobs      Jobs
	schedules Schedules
	recorder  Auditor
	logger    zerolog.Logger
	interval  time.Duration
	now       func() time.Time
}

func New(jobs Jobs, schedules Schedules, recorder Auditor, logger zerolog.Logger, interval time.Duration) *Scheduler {
	return &Scheduler{
		jobs:      jobs,
		schedules: schedules,
		recorder:  recorder,
		logger:    logger.With().Str("component", "scheduler").Logger(),
		interval:  interval,
		now:       time.Now,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick processes every due schedule once.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	due, err := s.schedules.Due(ctx, now)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list due schedules")
		return
	}

	for i := range due {
		s.fire(ctx, &due[i], now)
	}
}

func (s *Scheduler) fire(ctx context.Context, sched *model.BackupSchedule, now time.Time) {
	logger := s.logger.With().Str("schedule_id", sched.ID).Str("kind", sched.Kind).Logger()

	nextRun, err := NextRun(sched.CronExpression, now)
	if err != nil {
		logger.Error().Err(err).Msg("schedule has unparseable cron expression, disabling tick")
		return
	}

	active, err := s.jobs.HasActiveJob(ctx, sched.Kind, sched.TenantID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to check for active job")
		return
	}
	if active {
		metrics.ScheduleSkips.Inc()
		logger.Info().Msg("schedule tick skipped, job for key still active")
		s.recorder.Record(audit.Event{
			Event:    model.AuditScheduleSkipped,
			TenantID: sched.TenantID,
			Actor:    "scheduler",
			Detail:   map[string]any{"schedule_id": sched.ID, "kind": sched.Kind},
		})
		if err := s.schedules.Advance(ctx, sched.ID, nil, nextRun); err != nil {
			logger.Error().Err(err).Msg("failed to advance skipped schedule")
		}
		return
	}

	job := &model.BackupJob{
		ID:          platform.NewID(),
		Kind:        sched.Kind,
		TenantID:    sched.TenantID,
		Status:      model.StatusPending,
		TriggeredBy: model.TriggeredByScheduled,
		ScheduleID:  &sched.ID,
		CreatedAt:   now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, model.ErrConcurrentJobConflict) {
			// Another process enqueued the key between the check and the
			// insert. Same outcome as a skip.
			metrics.ScheduleSkips.Inc()
			logger.Info().Msg("schedule tick lost the enqueue race, skipping")
			if aerr := s.schedules.Advance(ctx, sched.ID, nil, nextRun); aerr != nil {
				logger.Error().Err(aerr).Msg("failed to advance skipped schedule")
			}
			return
		}
		logger.Error().Err(err).Msg("failed to enqueue scheduled job")
		return
	}

	s.recorder.Record(audit.Event{
		Event:       model.AuditJobCreated,
		BackupJobID: &job.ID,
		TenantID:    sched.TenantID,
		Actor:       "scheduler",
		Detail:      map[string]any{"schedule_id": sched.ID},
	})
	logger.Info().Str("job_id", job.ID).Time("next_run", nextRun).Msg("scheduled job enqueued")

	if err := s.schedules.Advance(ctx, sched.ID, &now, nextRun); err != nil {
		logger.Error().Err(err).Msg("failed to advance schedule")
	}
}
