package retention

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/backupd/internal/model"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

// group builds completed jobs newest first, one day apart.
func group(n int) []model.BackupJob {
	jobs := make([]model.BackupJob, n)
	for i := range jobs {
		completed := testNow.AddDate(0, 0, -i)
		jobs[i] = model.BackupJob{
			ID:          fmt.Sprintf("job-%d", i),
			Kind:        model.KindFullSystem,
			Status:      model.StatusCompleted,
			CompletedAt: &completed,
		}
	}
	return jobs
}

func intPtr(v int) *int { return &v }

func ids(jobs []model.BackupJob) []string {
	var out []string
	for _, j := range jobs {
		out = append(out, j.ID)
	}
	return out
}

func TestPurgeCandidates_KeepNewestThree(t *testing.T) {
	// Five completed runs, retention_count 3: the two oldest go.
	candidates := PurgeCandidates(group(5), intPtr(3), nil, testNow)
	assert.Equal(t, []string{"job-3", "job-4"}, ids(candidates))
}

func TestPurgeCandidates_NoPolicyKeepsAll(t *testing.T) {
	assert.Empty(t, PurgeCandidates(group(5), nil, nil, testNow))
}

func TestPurgeCandidates_ZeroCountStillKeepsNewest(t *testing.T) {
	candidates := PurgeCandidates(group(3), intPtr(0), nil, testNow)
	assert.Equal(t, []string{"job-1", "job-2"}, ids(candidates))
}

func TestPurgeCandidates_DaysLimit(t *testing.T) {
	// Jobs are one day apart; a 2-day window keeps job-0 and job-1.
	candidates := PurgeCandidates(group(5), nil, intPtr(2), testNow)
	assert.Equal(t, []string{"job-2", "job-3", "job-4"}, ids(candidates))
}

func TestPurgeCandidates_EitherLimitKeeps(t *testing.T) {
	// count 2 keeps job-0 and job-1; a 4-day window additionally keeps
	// job-2 and job-3. Only job-4 is outside both.
	candidates := PurgeCandidates(group(5), intPtr(2), intPtr(4), testNow)
	assert.Equal(t, []string{"job-4"}, ids(candidates))
}

func TestPurgeCandidates_EmptyGroup(t *testing.T) {
	assert.Empty(t, PurgeCandidates(nil, intPtr(1), nil, testNow))
}

func TestPurgeCandidates_SingleJobAlwaysSurvives(t *testing.T) {
	require.Empty(t, PurgeCandidates(group(1), intPtr(0), intPtr(0), testNow))
}

func TestViolatesFloor(t *testing.T) {
	g := group(3)
	assert.True(t, ViolatesFloor(g, "job-0"))
	assert.False(t, ViolatesFloor(g, "job-1"))
	assert.False(t, ViolatesFloor(nil, "job-0"))
}
