package model

import "time"

// Storage backend names. Primary is authoritative; secondary exists for
// redundancy only.
const (
	BackendPrimary   = "primary"
	BackendSecondary = "secondary"
)

// Replication statuses for a stored object.
const (
	ReplicationPending       = "pending"
	ReplicationBoth          = "both"
	ReplicationPrimaryOnly   = "primary_only"
	ReplicationSecondaryOnly = "secondary_only"
	ReplicationFailed        = "failed"
)

// StorageObject is one uploaded artifact owned by exactly one backup job.
type StorageObject struct {
	ID                string    `json:"id"`
	BackupJobID       string    `json:"backup_job_id"`
	Key               string    `json:"key"`
	Checksum          string    `json:"checksum"`
	SizeBytes         int64     `json:"size_bytes"`
	ReplicationStatus string    `json:"replication_status"`
	DeleteMarked      bool      `json:"delete_marked"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// StorageHealth is the last observed state of one backend.
type StorageHealth struct {
	Backend      string     `json:"backend"`
	Reachable    bool       `json:"reachable"`
	LastVerified *time.Time `json:"last_verified,omitempty"`
	LastError    *string    `json:"last_error,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ValidBackend reports whether name is a known storage backend.
func ValidBackend(name string) bool {
	return name == BackendPrimary || name == BackendSecondary
}
