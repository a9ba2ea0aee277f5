package model

// Backup job statuses. Transitions are forward-only; terminal states are
// never left.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Restore job statuses. A restore additionally passes through the
// confirmation gate before it may run.
const (
	RestoreStatusPending   = "pending"
	RestoreStatusConfirmed = "confirmed"
	RestoreStatusRunning   = "running"
	RestoreStatusCompleted = "completed"
	RestoreStatusFailed    = "failed"
)

var jobTransitions = map[string][]string{
	StatusPending: {StatusRunning, StatusCancelled},
	StatusRunning: {StatusCompleted, StatusFailed, StatusCancelled},
}

var restoreTransitions = map[string][]string{
	RestoreStatusPending:   {RestoreStatusConfirmed},
	RestoreStatusConfirmed: {RestoreStatusRunning, RestoreStatusFailed},
	RestoreStatusRunning:   {RestoreStatusCompleted, RestoreStatusFailed},
}

// CanTransition reports whether a backup job may move from one status to
// another.
func CanTransition(from, to string) bool {
	for _, t := range jobTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// CanTransitionRestore reports whether a restore job may move from one
// status to another.
func CanTransitionRestore(from, to string) bool {
	for _, t := range restoreTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// TerminalStatus reports whether a backup job status is terminal.
func TerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed || status == StatusCancelled
}

// ValidStatus reports whether status is a known backup job status.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
