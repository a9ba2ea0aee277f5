package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/edvin/backupd/internal/audit"
	"github.com/edvin/backupd/internal/metrics"
	"github.com/edvin/backupd/internal/model"
	"github.com/edvin/backupd/internal/platform"
	"github.com/edvin/backupd/internal/storage"
)

// runBackup drives one claimed backup job through dump, redundant upload and
// verification. Progress checkpoints double as cancellation points; a
// cancellation request takes effect between steps, never mid-step.
func (e *Executor) runBackup(ctx context.Context, job *model.BackupJob) {
	logger := e.logger.With().Str("job_id", job.ID).Str("kind", job.Kind).Logger()
	logger.Info().Msg("backup job claimed")

	metrics.JobsRunning.Inc()
	defer metrics.JobsRunning.Dec()

	e.recorder.Record(audit.Event{
		Event:       model.AuditJobClaimed,
		BackupJobID: &job.ID,
		TenantID:    job.TenantID,
		Actor:       "executor",
	})
	e.log(ctx, job.ID, "job claimed by worker")

	cp := func(progress int) error {
		return e.jobs.Checkpoint(ctx, job.ID, progress)
	}

	if err := cp(10); err != nil {
		e.finishBackup(ctx, job, nil, err)
		return
	}

	scope, err := e.scopeFor(ctx, job.Kind, job.TenantID)
	if err != nil {
		e.finishBackup(ctx, job, nil, fmt.Errorf("resolve scope: %w", err))
		return
	}

	e.log(ctx, job.ID, "dump started")
	stream, err := e.tool.Dump(ctx, scope)
	if err != nil {
		e.finishBackup(ctx, job, nil, err)
		return
	}

	key := platform.ObjectKey(job.Kind, job.TenantID, job.ID)

	// Checkpoint 40 fires when the dump stream is fully consumed, which
	// happens while Upload spools it. 70, 90 and 100 come from the store.
	result, uploadErr := e.store.Upload(ctx, key, &dumpDoneCheckpoint{r: stream, cp: cp}, cp)
	closeErr := stream.Close()

	if uploadErr == nil && closeErr != nil {
		// The tool exited non-zero after emitting a clean-looking stream.
		// The uploaded bytes cannot be trusted.
		uploadErr = closeErr
	}
	if uploadErr != nil {
		e.recordPartial(ctx, job, key, result)
		e.finishBackup(ctx, job, nil, uploadErr)
		return
	}

	obj := &model.StorageObject{
		ID:                platform.NewID(),
		BackupJobID:       job.ID,
		Key:               key,
		Checksum:          result.Checksum,
		SizeBytes:         result.SizeBytes,
		ReplicationStatus: result.ReplicationStatus,
		CreatedAt:         time.Now(),
	}
	if err := e.objects.Create(ctx, obj); err != nil {
		e.finishBackup(ctx, job, nil, fmt.Errorf("record storage object: %w", err))
		return
	}

	if result.Warning != nil {
		metrics.ReplicationWarnings.Inc()
		e.log(ctx, job.ID, "secondary replication deferred: "+result.Warning.Error())
		logger.Warn().Err(result.Warning).Msg("backup completed with replication warning")
	}
	e.log(ctx, job.ID, fmt.Sprintf("uploaded %d bytes, checksum %s, replication %s",
		result.SizeBytes, result.Checksum, result.ReplicationStatus))

	e.finishBackup(ctx, job, result.Warning, nil)
}

// finishBackup moves the job to its terminal status and records the outcome.
func (e *Executor) finishBackup(ctx context.Context, job *model.BackupJob, warning, cause error) {
	logger := e.logger.With().Str("job_id", job.ID).Str("kind", job.Kind).Logger()

	switch {
	case cause == nil:
		if err := e.jobs.Complete(ctx, job.ID); err != nil {
			logger.Error().Err(err).Msg("failed to mark job completed")
			return
		}
		metrics.JobsCompleted.WithLabelValues(job.Kind).Inc()
		detail := map[string]any{}
		if warning != nil {
			detail["replication_warning"] = warning.Error()
		}
		e.recorder.Record(audit.Event{
			Event:       model.AuditJobCompleted,
			BackupJobID: &job.ID,
			TenantID:    job.TenantID,
			Actor:       "executor",
			Detail:      detail,
		})
		logger.Info().Msg("backup job completed")

	case errors.Is(cause, model.ErrJobCancelled):
		// Checkpoint already flipped the status.
		metrics.JobsCancelled.Inc()
		e.log(ctx, job.ID, "job cancelled at checkpoint")
		e.recorder.Record(audit.Event{
			Event:       model.AuditJobCancelled,
			BackupJobID: &job.ID,
			TenantID:    job.TenantID,
			Actor:       "executor",
		})
		logger.Info().Msg("backup job cancelled")

	default:
		e.log(ctx, job.ID, "job failed: "+cause.Error())
		if err := e.jobs.Fail(ctx, job.ID, cause.Error()); err != nil {
			logger.Error().Err(err).Msg("failed to mark job failed")
		}
		metrics.JobsFailed.WithLabelValues(job.Kind).Inc()
		e.recorder.Record(audit.Event{
			Event:       model.AuditJobFailed,
			BackupJobID: &job.ID,
			TenantID:    job.TenantID,
			Actor:       "executor",
			Detail:      map[string]any{"error": cause.Error()},
		})
		logger.Error().Err(cause).Msg("backup job failed")
	}
}

// recordPartial registers bytes that reached a backend before the job died,
// flagged for deletion so the reconciler cleans them up.
func (e *Executor) recordPartial(ctx context.Context, job *model.BackupJob, key string, result *storage.UploadResult) {
	if result == nil || result.ReplicationStatus == model.ReplicationPending {
		return
	}
	obj := &model.StorageObject{
		ID:                platform.NewID(),
		BackupJobID:       job.ID,
		Key:               key,
		Checksum:          result.Checksum,
		SizeBytes:         result.SizeBytes,
		ReplicationStatus: result.ReplicationStatus,
		DeleteMarked:      true,
		CreatedAt:         time.Now(),
	}
	if err := e.objects.Create(ctx, obj); err != nil {
		e.logger.Error().Err(err).Str("job_id", job.ID).Str("key", key).
			Msg("failed to record partial artifact for cleanup")
	}
}

func (e *Executor) log(ctx context.Context, jobID, line string) {
	if err := e.jobs.AppendLog(ctx, jobID, line); err != nil {
		e.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to append job log")
	}
}

// dumpDoneCheckpoint reports progress 40 the moment the dump stream is
// exhausted. A checkpoint abort surfaces as a read error, stopping the
// upload before the primary write.
type dumpDoneCheckpoint struct {
	r    io.Reader
	cp   func(int) error
	done bool
}

func (d *dumpDoneCheckpoint) Read(p []byte) (int, error) {
	n, err := d.r.Read(p)
	if err == io.EOF && !d.done {
		d.done = true
		if cerr := d.cp(40); cerr != nil {
			return n, cerr
		}
	}
	return n, err
}
