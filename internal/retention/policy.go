package retention

import (
	"time"

	"github.com/edvin/backupd/internal/model"
)

// PurgeCandidates selects the completed backups of one (tenant, kind) group
// that fall outside the retention policy. jobs must be ordered newest first
// by completion time, as CompletedGroup returns them.
//
// A backup survives when any configured limit still covers it: within the
// retention_count newest, or completed within retention_days. With no limits
// configured nothing is purged. The newest completed backup of the group
// always survives regardless of policy, so a group that has ever completed a
// backup never loses its last one.
func PurgeCandidates(jobs []model.BackupJob, retentionCount, retentionDays *int, now time.Time) []model.BackupJob {
	if retentionCount == nil && retentionDays == nil {
		return nil
	}

	var cutoff time.Time
	if retentionDays != nil {
		cutoff = now.AddDate(0, 0, -*retentionDays)
	}

	var candidates []model.BackupJob
	for i, job := range jobs {
		if i == 0 {
			continue
		}
		if retentionCount != nil && i < *retentionCount {
			continue
		}
		if retentionDays != nil && job.CompletedAt != nil && job.CompletedAt.After(cutoff) {
			continue
		}
		candidates = append(candidates, job)
	}
	return candidates
}

// ViolatesFloor reports whether purging the job would leave its group
// without any completed backup. jobs is the group ordered newest first.
func ViolatesFloor(jobs []model.BackupJob, jobID string) bool {
	return len(jobs) > 0 && jobs[0].ID == jobID
}
