package model

import "time"

// RestoreJob tracks one gated restore. It references its source backup by
// id only; it never owns the backup or its storage objects. Once terminal
// the record is immutable and forms the audit trail.
type RestoreJob struct {
	ID                string     `json:"id"`
	SourceBackupID    string     `json:"source_backup_id"`
	TargetTenantID    string     `json:"target_tenant_id"`
	Status            string     `json:"status"`
	RequestedBy       string     `json:"requested_by"`
	ConfirmedBy       *string    `json:"confirmed_by,omitempty"`
	ConfirmedAt       *time.Time `json:"confirmed_at,omitempty"`
	ConfirmationInput *string    `json:"confirmation_input,omitempty"`
	ErrorMessage      *string    `json:"error_message,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
