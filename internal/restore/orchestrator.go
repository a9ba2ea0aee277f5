package restore

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/backupd/internal/audit"
	"github.com/edvin/backupd/internal/metrics"
	"github.com/edvin/backupd/internal/model"
	"github.com/edvin/backupd/internal/platform"
)

type Jobs interface {
	GetByID(ctx context.Context, id string) (*model.BackupJob, error)
}

type Restores interface {
	Create(ctx context.Context, job *model.RestoreJob) error
	GetByID(ctx context.Context, id string) (*model.RestoreJob, error)
	Confirm(ctx context.Context, id, confirmedBy, input string) error
}

type Tenants interface {
	GetByID(ctx context.Context, id string) (*model.Tenant, error)
}

type Auditor interface {
	Record(ev audit.Event)
}

// Orchestrator owns the restore admission gate. A restore is destructive, so
// it stays pending until an operator types the target tenant's exact name
// back; only then does it become claimable by a worker.
type Orchestrator struct {
	jobs     Jobs
	restores Restores
	tenants  Tenants
	recorder Auditor
	logger   zerolog.Logger
}

func NewOrchestrator(jobs Jobs, restores Restores, tenants Tenants, recorder Auditor, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:     jobs,
		restores: restores,
		tenants:  tenants,
		recorder: recorder,
		logger:   logger.With().Str("component", "restore").Logger(),
	}
}

// Initiate creates a pending restore of sourceBackupID into the target
// tenant. The source must be a completed, un-purged backup and the tenant
// must exist; nothing is touched yet.
func (o *Orchestrator) Initiate(ctx context.Context, sourceBackupID, targetTenantID, requestedBy string) (*model.RestoreJob, error) {
	backup, err := o.jobs.GetByID(ctx, sourceBackupID)
	if err != nil {
		return nil, err
	}
	if backup.Status != model.StatusCompleted {
		return nil, fmt.Errorf("backup %s is %s, only completed backups can be restored: %w",
			backup.ID, backup.Status, model.ErrInvalidTransition)
	}
	if backup.Purged {
		return nil, fmt.Errorf("backup %s has been purged: %w", backup.ID, model.ErrNotFound)
	}

	tenant, err := o.tenants.GetByID(ctx, targetTenantID)
	if err != nil {
		return nil, err
	}

	job := &model.RestoreJob{
		ID:             platform.NewID(),
		SourceBackupID: backup.ID,
		TargetTenantID: tenant.ID,
		Status:         model.RestoreStatusPending,
		RequestedBy:    requestedBy,
		CreatedAt:      time.Now(),
	}
	if err := o.restores.Create(ctx, job); err != nil {
		return nil, err
	}

	o.recorder.Record(audit.Event{
		Event:        model.AuditRestoreInitiated,
		RestoreJobID: &job.ID,
		BackupJobID:  &backup.ID,
		TenantID:     &tenant.ID,
		Actor:        requestedBy,
	})
	o.logger.Info().Str("restore_id", job.ID).Str("source_backup_id", backup.ID).
		Str("tenant_id", tenant.ID).Msg("restore initiated, awaiting confirmation")
	return job, nil
}

// Confirm checks the typed identifier against the target tenant's name.
// The comparison is exact: no trimming, no case folding. A mismatch is
// audited and leaves the restore pending so the operator can retry.
func (o *Orchestrator) Confirm(ctx context.Context, restoreID, confirmedBy, input string) (*model.RestoreJob, error) {
	job, err := o.restores.GetByID(ctx, restoreID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.RestoreStatusPending {
		return nil, fmt.Errorf("restore %s is %s, not awaiting confirmation: %w",
			job.ID, job.Status, model.ErrInvalidTransition)
	}

	tenant, err := o.tenants.GetByID(ctx, job.TargetTenantID)
	if err != nil {
		return nil, err
	}

	if input != tenant.Name {
		metrics.RestoreConfirmDenied.Inc()
		o.recorder.Record(audit.Event{
			Event:        model.AuditRestoreConfirmDenied,
			RestoreJobID: &job.ID,
			TenantID:     &tenant.ID,
			Actor:        confirmedBy,
			Detail:       map[string]any{"input": input},
		})
		o.logger.Warn().Str("restore_id", job.ID).Str("tenant_id", tenant.ID).
			Msg("restore confirmation denied, identifier mismatch")
		return nil, fmt.Errorf("confirmation %q does not match tenant %q: %w",
			input, tenant.Name, model.ErrConfirmationMismatch)
	}

	if err := o.restores.Confirm(ctx, job.ID, confirmedBy, input); err != nil {
		return nil, err
	}

	o.recorder.Record(audit.Event{
		Event:        model.AuditRestoreConfirmed,
		RestoreJobID: &job.ID,
		TenantID:     &tenant.ID,
		Actor:        confirmedBy,
	})
	o.logger.Info().Str("restore_id", job.ID).Str("tenant_id", tenant.ID).
		Msg("restore confirmed, queued for execution")

	return o.restores.GetByID(ctx, job.ID)
}
