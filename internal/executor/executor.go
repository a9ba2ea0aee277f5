package executor

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/edvin/backupd/internal/audit"
	"github.com/edvin/backupd/internal/dump"
	"github.com/edvin/backupd/internal/model"
	"github.com/edvin/backupd/internal/storage"
)

const pollInterval = 2 * time.Second

// Jobs is the slice of the backup job registry the executor drives.
type Jobs interface {
	ClaimNext(ctx context.Context) (*model.BackupJob, error)
	Checkpoint(ctx context.Context, jobID string, progress int) error
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, cause string) error
	AppendLog(ctx context.Context, jobID, line string) error
	GetByID(ctx context.Context, id string) (*model.BackupJob, error)
}

type Restores interface {
	ClaimNext(ctx context.Context) (*model.RestoreJob, error)
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id string, cause string) error
}

type Objects interface {
	Create(ctx context.Context, obj *model.StorageObject) error
	ByJob(ctx context.Context, jobID string) ([]model.StorageObject, error)
}

type Tenants interface {
	GetByID(ctx context.Context, id string) (*model.Tenant, error)
}

// Tool produces and consumes snapshot streams for a scope.
type Tool interface {
	Dump(ctx context.Context, scope dump.Scope) (io.ReadCloser, error)
	Apply(ctx context.Context, scope dump.Scope, r io.Reader) error
}

// ObjectStore is the redundant storage surface the pipelines use.
type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, cp storage.Checkpoint) (*storage.UploadResult, error)
	Download(ctx context.Context, key, checksum string) (io.ReadCloser, error)
}

type Auditor interface {
	Record(ev audit.Event)
}

// Executor runs a bounded pool of workers that claim jobs from the registry
// and drive them through the backup and restore pipelines. Workers on
// different processes coordinate through the registry alone.
type Executor struct {
	jobs     Jobs
	restores Restores
	objects  Objects
	tenants  Tenants
	tool     Tool
	store    ObjectStore
	recorder Auditor
	logger   zerolog.Logger
	poolSize int
}

func New(jobs Jobs, restores Restores, objects Objects, tenants Tenants,
	tool Tool, store ObjectStore, recorder Auditor, logger zerolog.Logger, poolSize int) *Executor {
	return &Executor{
		jobs:     jobs,
		restores: restores,
		objects:  objects,
		tenants:  tenants,
		tool:     tool,
		store:    store,
		recorder: recorder,
		logger:   logger.With().Str("component", "executor").Logger(),
		poolSize: poolSize,
	}
}

// Run blocks until ctx is cancelled, keeping poolSize workers polling.
func (e *Executor) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < e.poolSize; i++ {
		worker := i
		g.Go(func() error {
			e.workerLoop(ctx, worker)
			return nil
		})
	}
	return g.Wait()
}

func (e *Executor) workerLoop(ctx context.Context, worker int) {
	logger := e.logger.With().Int("worker", worker).Logger()
	logger.Debug().Msg("worker loop started")
	for {
		if ctx.Err() != nil {
			logger.Debug().Msg("worker loop stopped")
			return
		}
		if e.RunOnce(ctx) {
			continue
		}
		select {
		case <-ctx.Done():
			logger.Debug().Msg("worker loop stopped")
			return
		case <-time.After(pollInterval):
		}
	}
}

// RunOnce claims and executes at most one job, backups before restores.
// Returns true when a job was executed.
func (e *Executor) RunOnce(ctx context.Context) bool {
	job, err := e.jobs.ClaimNext(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to claim backup job")
		return false
	}
	if job != nil {
		e.runBackup(ctx, job)
		return true
	}

	restore, err := e.restores.ClaimNext(ctx)
	if err != nil {
		e.logger.Error().Err(err).Msg("failed to claim restore job")
		return false
	}
	if restore != nil {
		e.runRestore(ctx, restore)
		return true
	}
	return false
}

// scopeFor resolves the dump scope for a job. Tenant scopes are built from
// the tenant row the job references, never from request input.
func (e *Executor) scopeFor(ctx context.Context, kind string, tenantID *string) (dump.Scope, error) {
	switch kind {
	case model.KindFullSystem:
		return dump.SystemScope(), nil
	case model.KindDatabaseOnly:
		return dump.DatabaseScope(), nil
	case model.KindConfigurationOnly:
		return dump.ConfigurationScope(), nil
	}
	tenant, err := e.tenants.GetByID(ctx, *tenantID)
	if err != nil {
		return dump.Scope{}, err
	}
	return dump.TenantScope(tenant.SchemaName), nil
}
