package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/backupd/internal/audit"
	"github.com/edvin/backupd/internal/model"
)

type fakeJobs struct {
	byID   map[string]*model.BackupJob
	groups map[string][]model.BackupJob
	purged []string
}

func groupKey(kind string, tenantID *string) string {
	if tenantID == nil {
		return kind
	}
	return *tenantID + "/" + kind
}

func (f *fakeJobs) GetByID(ctx context.Context, id string) (*model.BackupJob, error) {
	j, ok := f.byID[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return j, nil
}

func (f *fakeJobs) CompletedGroup(ctx context.Context, kind string, tenantID *string) ([]model.BackupJob, error) {
	return f.groups[groupKey(kind, tenantID)], nil
}

func (f *fakeJobs) MarkPurged(ctx context.Context, jobID string) error {
	f.purged = append(f.purged, jobID)
	return nil
}

type fakeSchedules struct {
	schedules []model.BackupSchedule
}

func (f *fakeSchedules) List(ctx context.Context) ([]model.BackupSchedule, error) {
	return f.schedules, nil
}

type fakeObjects struct {
	byJob   map[string][]model.StorageObject
	deleted []string
}

func (f *fakeObjects) ByJob(ctx context.Context, jobID string) ([]model.StorageObject, error) {
	return f.byJob[jobID], nil
}

func (f *fakeObjects) Delete(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeStore struct {
	ops          []string
	secondaryErr error
}

func (f *fakeStore) DeletePrimary(ctx context.Context, key string) error {
	f.ops = append(f.ops, "primary:"+key)
	return nil
}

func (f *fakeStore) DeleteSecondary(ctx context.Context, key string) error {
	if f.secondaryErr != nil {
		return f.secondaryErr
	}
	f.ops = append(f.ops, "secondary:"+key)
	return nil
}

type fakeRecorder struct {
	events []audit.Event
}

func (f *fakeRecorder) Record(ev audit.Event) { f.events = append(f.events, ev) }

type fixture struct {
	jobs      *fakeJobs
	schedules *fakeSchedules
	objects   *fakeObjects
	store     *fakeStore
	recorder  *fakeRecorder
	manager   *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		jobs:      &fakeJobs{byID: map[string]*model.BackupJob{}, groups: map[string][]model.BackupJob{}},
		schedules: &fakeSchedules{},
		objects:   &fakeObjects{byJob: map[string][]model.StorageObject{}},
		store:     &fakeStore{},
		recorder:  &fakeRecorder{},
	}
	f.manager = NewManager(f.jobs, f.schedules, f.objects, f.store, f.recorder, zerolog.Nop(), time.Hour)
	f.manager.now = func() time.Time { return testNow }
	return f
}

func (f *fixture) seedGroup(kind string, tenantID *string, n int) {
	jobs := group(n)
	for i := range jobs {
		jobs[i].Kind = kind
		jobs[i].TenantID = tenantID
		job := jobs[i]
		f.jobs.byID[job.ID] = &job
		f.objects.byJob[job.ID] = []model.StorageObject{{
			ID:          "obj-" + job.ID,
			BackupJobID: job.ID,
			Key:         "backups/" + job.ID + ".dump",
		}}
	}
	f.jobs.groups[groupKey(kind, tenantID)] = jobs
}

func TestSweep_PurgesBeyondCount(t *testing.T) {
	f := newFixture(t)
	f.seedGroup(model.KindFullSystem, nil, 5)
	f.schedules.schedules = []model.BackupSchedule{{
		ID:             "sched-1",
		Kind:           model.KindFullSystem,
		RetentionCount: intPtr(3),
	}}

	f.manager.Sweep(context.Background())

	assert.Equal(t, []string{"job-3", "job-4"}, f.jobs.purged)
	assert.Equal(t, []string{"obj-job-3", "obj-job-4"}, f.objects.deleted)

	// Secondary copy goes before primary for each artifact.
	assert.Equal(t, []string{
		"secondary:backups/job-3.dump", "primary:backups/job-3.dump",
		"secondary:backups/job-4.dump", "primary:backups/job-4.dump",
	}, f.store.ops)
}

func TestSweep_NoRetentionPolicyUntouched(t *testing.T) {
	f := newFixture(t)
	f.seedGroup(model.KindFullSystem, nil, 5)
	f.schedules.schedules = []model.BackupSchedule{{
		ID:   "sched-1",
		Kind: model.KindFullSystem,
	}}

	f.manager.Sweep(context.Background())
	assert.Empty(t, f.jobs.purged)
}

func TestSweep_SecondaryDeleteFailureRetriesNextSweep(t *testing.T) {
	f := newFixture(t)
	f.seedGroup(model.KindFullSystem, nil, 3)
	f.schedules.schedules = []model.BackupSchedule{{
		ID:             "sched-1",
		Kind:           model.KindFullSystem,
		RetentionCount: intPtr(1),
	}}

	f.store.secondaryErr = errors.New("secondary unreachable")
	f.manager.Sweep(context.Background())

	// Nothing was removed from the registry or the primary.
	assert.Empty(t, f.jobs.purged)
	assert.Empty(t, f.objects.deleted)
	assert.Empty(t, f.store.ops)

	f.store.secondaryErr = nil
	f.manager.Sweep(context.Background())
	assert.Equal(t, []string{"job-1", "job-2"}, f.jobs.purged)
}

func TestPurgeBackup_FloorRefusesLastBackup(t *testing.T) {
	f := newFixture(t)
	f.seedGroup(model.KindTenantSchema, strPtr("t-acme"), 1)

	err := f.manager.PurgeBackup(context.Background(), "job-0", "operator@example.com")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrRetentionFloorViolation)
	assert.Empty(t, f.jobs.purged)

	require.Len(t, f.recorder.events, 1)
	assert.Equal(t, model.AuditRetentionRefused, f.recorder.events[0].Event)
}

func TestPurgeBackup_OlderBackupAllowed(t *testing.T) {
	f := newFixture(t)
	f.seedGroup(model.KindFullSystem, nil, 2)

	require.NoError(t, f.manager.PurgeBackup(context.Background(), "job-1", "operator@example.com"))
	assert.Equal(t, []string{"job-1"}, f.jobs.purged)
}

func TestPurgeBackup_NonCompletedRefused(t *testing.T) {
	f := newFixture(t)
	f.seedGroup(model.KindFullSystem, nil, 2)
	f.jobs.byID["job-1"].Status = model.StatusFailed

	err := f.manager.PurgeBackup(context.Background(), "job-1", "operator@example.com")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func strPtr(s string) *string { return &s }
