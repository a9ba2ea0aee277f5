package executor

import (
	"context"
	"fmt"

	"github.com/edvin/backupd/internal/audit"
	"github.com/edvin/backupd/internal/dump"
	"github.com/edvin/backupd/internal/metrics"
	"github.com/edvin/backupd/internal/model"
)

// runRestore drives one confirmed restore. The snapshot is downloaded with
// checksum verification before any byte reaches the restore tool, and the
// tool stages its work so a failure leaves the tenant's current data intact.
func (e *Executor) runRestore(ctx context.Context, job *model.RestoreJob) {
	logger := e.logger.With().Str("restore_id", job.ID).
		Str("source_backup_id", job.SourceBackupID).
		Str("tenant_id", job.TargetTenantID).Logger()
	logger.Info().Msg("restore job claimed")

	metrics.JobsRunning.Inc()
	defer metrics.JobsRunning.Dec()

	if err := e.applyRestore(ctx, job); err != nil {
		if ferr := e.restores.Fail(ctx, job.ID, err.Error()); ferr != nil {
			logger.Error().Err(ferr).Msg("failed to mark restore failed")
		}
		e.recorder.Record(audit.Event{
			Event:        model.AuditRestoreFailed,
			RestoreJobID: &job.ID,
			TenantID:     &job.TargetTenantID,
			Actor:        "executor",
			Detail:       map[string]any{"error": err.Error()},
		})
		logger.Error().Err(err).Msg("restore job failed")
		return
	}

	if err := e.restores.Complete(ctx, job.ID); err != nil {
		logger.Error().Err(err).Msg("failed to mark restore completed")
		return
	}
	e.recorder.Record(audit.Event{
		Event:        model.AuditRestoreCompleted,
		RestoreJobID: &job.ID,
		TenantID:     &job.TargetTenantID,
		Actor:        "executor",
	})
	logger.Info().Msg("restore job completed")
}

func (e *Executor) applyRestore(ctx context.Context, job *model.RestoreJob) error {
	backup, err := e.jobs.GetByID(ctx, job.SourceBackupID)
	if err != nil {
		return fmt.Errorf("resolve source backup: %w", err)
	}
	if backup.Status != model.StatusCompleted || backup.Purged {
		return fmt.Errorf("source backup %s is not restorable", backup.ID)
	}

	objects, err := e.objects.ByJob(ctx, backup.ID)
	if err != nil {
		return fmt.Errorf("resolve backup artifact: %w", err)
	}
	if len(objects) == 0 {
		return fmt.Errorf("source backup %s has no stored artifact", backup.ID)
	}
	obj := objects[0]

	tenant, err := e.tenants.GetByID(ctx, job.TargetTenantID)
	if err != nil {
		return fmt.Errorf("resolve target tenant: %w", err)
	}
	scope := dump.TenantScope(tenant.SchemaName)

	rc, err := e.store.Download(ctx, obj.Key, obj.Checksum)
	if err != nil {
		return fmt.Errorf("download snapshot: %w", err)
	}
	defer rc.Close()

	if err := e.tool.Apply(ctx, scope, rc); err != nil {
		return err
	}
	return nil
}
