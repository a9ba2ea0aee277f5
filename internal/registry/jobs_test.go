package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/backupd/internal/model"
)

func scanJobRow(id, kind, status string, progress int, cancelRequested bool) func(dest ...any) error {
	now := time.Now()
	return func(dest ...any) error {
		*(dest[0].(*string)) = id
		*(dest[1].(*string)) = kind
		*(dest[2].(**string)) = nil // tenant_id
		*(dest[3].(*string)) = status
		*(dest[4].(*int)) = progress
		*(dest[5].(*string)) = model.TriggeredByManual
		*(dest[6].(**string)) = nil // schedule_id
		*(dest[7].(**string)) = nil // error_message
		*(dest[8].(*bool)) = cancelRequested
		*(dest[9].(*bool)) = false // purged
		*(dest[10].(**time.Time)) = nil
		*(dest[11].(**time.Time)) = nil
		*(dest[12].(**time.Time)) = nil
		*(dest[13].(*time.Time)) = now
		*(dest[14].(*time.Time)) = now
		return nil
	}
}

// ---------- Create ----------

func TestJobService_Create_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execOK(), nil)

	job := &model.BackupJob{
		ID:          "job-1",
		Kind:        model.KindFullSystem,
		TriggeredBy: model.TriggeredByManual,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, svc.Create(ctx, job))
	db.AssertExpectations(t)
}

func TestJobService_Create_ConcurrentConflict(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	// Guarded insert affects zero rows when an active job holds the key.
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execNone(), nil)

	tenant := "t-1"
	job := &model.BackupJob{
		ID:          "job-2",
		Kind:        model.KindTenantSchema,
		TenantID:    &tenant,
		TriggeredBy: model.TriggeredByManual,
		CreatedAt:   time.Now(),
	}
	err := svc.Create(ctx, job)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConcurrentJobConflict)
	db.AssertExpectations(t)
}

// ---------- ClaimNext ----------

func TestJobService_ClaimNext_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: scanJobRow("job-1", model.KindFullSystem, model.StatusRunning, 0, false)})

	job, err := svc.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "job-1", job.ID)
	assert.Equal(t, model.StatusRunning, job.Status)
}

func TestJobService_ClaimNext_NothingClaimable(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(noRow())

	job, err := svc.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, job)
}

// ---------- Checkpoint ----------

func TestJobService_Checkpoint_UpdatesProgress(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*bool)) = false // cancel_requested
			return nil
		}})

	require.NoError(t, svc.Checkpoint(ctx, "job-1", 40))
}

func TestJobService_Checkpoint_NotRunning(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	// The guarded update matches no row for a non-running job or a
	// decreasing progress value.
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(noRow())

	err := svc.Checkpoint(ctx, "job-1", 70)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestJobService_Checkpoint_CancelRequested(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).
		Return(&mockRow{scanFunc: func(dest ...any) error {
			*(dest[0].(*bool)) = true
			return nil
		}})
	// The checkpoint then flips running -> cancelled.
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execOK(), nil)

	err := svc.Checkpoint(ctx, "job-1", 70)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrJobCancelled)
	db.AssertExpectations(t)
}

func TestJobService_Checkpoint_OutOfRange(t *testing.T) {
	svc := NewJobService(&mockDB{})

	err := svc.Checkpoint(context.Background(), "job-1", 101)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

// ---------- Transitions ----------

func TestJobService_Complete_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execOK(), nil)

	require.NoError(t, svc.Complete(ctx, "job-1"))
}

func TestJobService_Complete_NotRunning(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execNone(), nil)

	err := svc.Complete(ctx, "job-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestJobService_Fail_NotRunning(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execNone(), nil)

	err := svc.Fail(ctx, "job-1", "dump exploded")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

// ---------- RequestCancel ----------

func TestJobService_RequestCancel_Pending(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	// First CAS (pending -> cancelled) succeeds; no second statement runs.
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execOK(), nil).Once()

	require.NoError(t, svc.RequestCancel(ctx, "job-1"))
	db.AssertExpectations(t)
}

func TestJobService_RequestCancel_Running(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execNone(), nil).Once()
	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execOK(), nil).Once()

	require.NoError(t, svc.RequestCancel(ctx, "job-1"))
	db.AssertExpectations(t)
}

func TestJobService_RequestCancel_Terminal(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execNone(), nil).Twice()

	err := svc.RequestCancel(ctx, "job-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

// ---------- List ----------

func TestJobService_List_Pagination(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	rows := newMockRows(
		scanJobRow("job-1", model.KindFullSystem, model.StatusCompleted, 100, false),
		scanJobRow("job-2", model.KindFullSystem, model.StatusCompleted, 100, false),
		scanJobRow("job-3", model.KindFullSystem, model.StatusPending, 0, false),
	)
	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(rows, nil)

	jobs, hasMore, err := svc.List(ctx, ListFilter{Kind: model.KindFullSystem}, 2, "")
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	assert.True(t, hasMore)
	assert.Equal(t, "job-1", jobs[0].ID)
}

// ---------- MarkPurged ----------

func TestJobService_MarkPurged_OnlyCompleted(t *testing.T) {
	db := &mockDB{}
	svc := NewJobService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(execNone(), nil)

	err := svc.MarkPurged(ctx, "job-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}
