package model

import "errors"

// Domain error taxonomy. Callers branch with errors.Is; wrapped errors keep
// the full underlying text.
var (
	// ErrInvalidTransition is returned when an illegal state change is
	// attempted. The stored state is left unchanged.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrDumpFailure wraps an error from the external dump tool.
	ErrDumpFailure = errors.New("dump failed")

	// ErrUploadFailure wraps a failed write to the primary storage backend.
	// Primary is authoritative: this fails the job.
	ErrUploadFailure = errors.New("primary upload failed")

	// ErrReplicationWarning wraps a failed write to the secondary backend.
	// Non-fatal: the object stays primary_only until reconciled.
	ErrReplicationWarning = errors.New("secondary replication failed")

	// ErrIntegrityMismatch is returned when no storage backend can produce
	// bytes matching the recorded checksum.
	ErrIntegrityMismatch = errors.New("checksum integrity mismatch")

	// ErrConfirmationMismatch is returned when the typed identifier does not
	// exactly match the restore target's identifier. The restore job stays
	// pending and may be re-confirmed.
	ErrConfirmationMismatch = errors.New("confirmation identifier mismatch")

	// ErrConcurrentJobConflict is returned when a job for the same
	// (tenant, kind) key is already pending or running.
	ErrConcurrentJobConflict = errors.New("concurrent job for same tenant and kind")

	// ErrRetentionFloorViolation is returned when a deletion would remove
	// the last completed backup of a (tenant, kind) group.
	ErrRetentionFloorViolation = errors.New("deletion would violate retention floor")

	// ErrJobCancelled is returned from a pipeline checkpoint once an
	// operator has requested cancellation.
	ErrJobCancelled = errors.New("job cancelled")

	// ErrNotFound is returned when a registry record does not exist.
	ErrNotFound = errors.New("not found")
)
