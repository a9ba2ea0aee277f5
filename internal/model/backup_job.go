package model

import "time"

// Backup kinds. System-wide kinds have no tenant; tenant_schema backups
// always carry the tenant they cover.
const (
	KindFullSystem        = "full_system"
	KindDatabaseOnly      = "database_only"
	KindConfigurationOnly = "configuration_only"
	KindTenantSchema      = "tenant_schema"
)

// Trigger sources for a backup job.
const (
	TriggeredByManual    = "manual"
	TriggeredByScheduled = "scheduled"
)

type BackupJob struct {
	ID              string     `json:"id"`
	Kind            string     `json:"kind"`
	TenantID        *string    `json:"tenant_id,omitempty"`
	Status          string     `json:"status"`
	Progress        int        `json:"progress"`
	TriggeredBy     string     `json:"triggered_by"`
	ScheduleID      *string    `json:"schedule_id,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	CancelRequested bool       `json:"cancel_requested"`
	Purged          bool       `json:"purged"`
	PurgedAt        *time.Time `json:"purged_at,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// JobLogEntry is one ordered log line attached to a backup job.
type JobLogEntry struct {
	JobID string    `json:"job_id"`
	Seq   int       `json:"seq"`
	At    time.Time `json:"at"`
	Line  string    `json:"line"`
}

// TenantKey returns the serialization key for the job. Jobs sharing a key
// never run concurrently; system-wide kinds share the empty-tenant key.
func (j *BackupJob) TenantKey() string {
	if j.TenantID == nil {
		return j.Kind
	}
	return *j.TenantID + "/" + j.Kind
}

// KindRequiresTenant reports whether the backup kind operates on a single
// tenant's schema rather than system-wide data.
func KindRequiresTenant(kind string) bool {
	return kind == KindTenantSchema
}

// ValidKind reports whether kind is a known backup kind.
func ValidKind(kind string) bool {
	switch kind {
	case KindFullSystem, KindDatabaseOnly, KindConfigurationOnly, KindTenantSchema:
		return true
	}
	return false
}
