package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/backupd/internal/audit"
	"github.com/edvin/backupd/internal/model"
)

type fakeJobs struct {
	created   []*model.BackupJob
	active    map[string]bool
	createErr error
}

func (f *fakeJobs) Create(ctx context.Context, job *model.BackupJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, job)
	return nil
}

func (f *fakeJobs) HasActiveJob(ctx context.Context, kind string, tenantID *string) (bool, error) {
	key := kind
	if tenantID != nil {
		key = *tenantID + "/" + kind
	}
	return f.active[key], nil
}

type advance struct {
	id      string
	lastRun *time.Time
	nextRun time.Time
}

type fakeSchedules struct {
	due      []model.BackupSchedule
	advances []advance
}

func (f *fakeSchedules) Due(ctx context.Context, now time.Time) ([]model.BackupSchedule, error) {
	return f.due, nil
}

func (f *fakeSchedules) Advance(ctx context.Context, id string, lastRun *time.Time, nextRun time.Time) error {
	f.advances = append(f.advances, advance{id: id, lastRun: lastRun, nextRun: nextRun})
	return nil
}

type fakeRecorder struct {
	events []audit.Event
}

func (f *fakeRecorder) Record(ev audit.Event) { f.events = append(f.events, ev) }

func newTestScheduler(t *testing.T) (*Scheduler, *fakeJobs, *fakeSchedules, *fakeRecorder) {
	t.Helper()
	jobs := &fakeJobs{active: map[string]bool{}}
	schedules := &fakeSchedules{}
	recorder := &fakeRecorder{}
	s := New(jobs, schedules, recorder, zerolog.Nop(), time.Minute)
	s.now = func() time.Time { return time.Date(2026, 3, 10, 2, 0, 30, 0, time.UTC) }
	return s, jobs, schedules, recorder
}

func dailySchedule(id, kind string, tenantID *string) model.BackupSchedule {
	return model.BackupSchedule{
		ID:             id,
		Kind:           kind,
		TenantID:       tenantID,
		CronExpression: "0 2 * * *",
		Enabled:        true,
		NextRunAt:      time.Date(2026, 3, 10, 2, 0, 0, 0, time.UTC),
	}
}

func TestTick_EnqueuesDueSchedule(t *testing.T) {
	s, jobs, schedules, _ := newTestScheduler(t)
	schedules.due = []model.BackupSchedule{dailySchedule("sched-1", model.KindFullSystem, nil)}

	s.Tick(context.Background())

	require.Len(t, jobs.created, 1)
	job := jobs.created[0]
	assert.Equal(t, model.KindFullSystem, job.Kind)
	assert.Equal(t, model.TriggeredByScheduled, job.TriggeredBy)
	require.NotNil(t, job.ScheduleID)
	assert.Equal(t, "sched-1", *job.ScheduleID)

	require.Len(t, schedules.advances, 1)
	adv := schedules.advances[0]
	require.NotNil(t, adv.lastRun)
	assert.Equal(t, time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC), adv.nextRun)
}

func TestTick_SkipsWhenJobActive(t *testing.T) {
	s, jobs, schedules, recorder := newTestScheduler(t)
	tenantID := "t-acme"
	jobs.active["t-acme/tenant_schema"] = true
	schedules.due = []model.BackupSchedule{dailySchedule("sched-1", model.KindTenantSchema, &tenantID)}

	s.Tick(context.Background())

	assert.Empty(t, jobs.created)

	// The tick is skipped, not queued: next_run_at still advances and the
	// skip is audited.
	require.Len(t, schedules.advances, 1)
	assert.Nil(t, schedules.advances[0].lastRun)
	require.Len(t, recorder.events, 1)
	assert.Equal(t, model.AuditScheduleSkipped, recorder.events[0].Event)
}

func TestTick_EnqueueRaceCountsAsSkip(t *testing.T) {
	s, jobs, schedules, _ := newTestScheduler(t)
	jobs.createErr = fmt.Errorf("create job: %w", model.ErrConcurrentJobConflict)
	schedules.due = []model.BackupSchedule{dailySchedule("sched-1", model.KindDatabaseOnly, nil)}

	s.Tick(context.Background())

	assert.Empty(t, jobs.created)
	require.Len(t, schedules.advances, 1)
	assert.Nil(t, schedules.advances[0].lastRun)
}

func TestTick_MissedTicksCollapseToOneRun(t *testing.T) {
	s, jobs, schedules, _ := newTestScheduler(t)

	// The schedule was due three days ago; the service was down. One catch-up
	// run is enqueued and next_run_at lands strictly in the future.
	sched := dailySchedule("sched-1", model.KindFullSystem, nil)
	sched.NextRunAt = time.Date(2026, 3, 7, 2, 0, 0, 0, time.UTC)
	schedules.due = []model.BackupSchedule{sched}

	s.Tick(context.Background())

	require.Len(t, jobs.created, 1)
	require.Len(t, schedules.advances, 1)
	assert.Equal(t, time.Date(2026, 3, 11, 2, 0, 0, 0, time.UTC), schedules.advances[0].nextRun)
}

func TestNextRun_RejectsBadExpression(t *testing.T) {
	_, err := NextRun("not a cron line", time.Now())
	require.Error(t, err)

	_, err = ParseCron("61 2 * * *")
	require.Error(t, err)
}

func TestNextRun_FiveFieldExpression(t *testing.T) {
	next, err := NextRun("*/15 * * * *", time.Date(2026, 3, 10, 2, 7, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 10, 2, 15, 0, 0, time.UTC), next)
}
