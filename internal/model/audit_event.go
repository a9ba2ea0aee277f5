package model

import (
	"encoding/json"
	"time"
)

// Audit event names, one per state transition or confirmation decision.
const (
	AuditJobCreated           = "backup_job.created"
	AuditJobClaimed           = "backup_job.claimed"
	AuditJobCompleted         = "backup_job.completed"
	AuditJobFailed            = "backup_job.failed"
	AuditJobCancelled         = "backup_job.cancelled"
	AuditJobPurged            = "backup_job.purged"
	AuditScheduleSkipped      = "backup_schedule.skipped"
	AuditRestoreInitiated     = "restore_job.initiated"
	AuditRestoreConfirmed     = "restore_job.confirmed"
	AuditRestoreConfirmDenied = "restore_job.confirmation_denied"
	AuditRestoreCompleted     = "restore_job.completed"
	AuditRestoreFailed        = "restore_job.failed"
	AuditRetentionRefused     = "retention.floor_refused"
)

type AuditEvent struct {
	ID           string          `json:"id"`
	Event        string          `json:"event"`
	BackupJobID  *string         `json:"backup_job_id,omitempty"`
	RestoreJobID *string         `json:"restore_job_id,omitempty"`
	TenantID     *string         `json:"tenant_id,omitempty"`
	Actor        string          `json:"actor"`
	Detail       json.RawMessage `json:"detail,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
