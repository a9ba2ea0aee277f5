package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/edvin/backupd/internal/metrics"
	"github.com/edvin/backupd/internal/model"
	"github.com/edvin/backupd/internal/registry"
)

const reconcileBatchSize = 100

// Reconciler finishes the work the synchronous path could not: it copies
// primary_only objects to the secondary backend and removes delete-marked
// objects from both backends. Per sweep each object gets a bounded
// exponential backoff (5s base, capped at 2m, 5 attempts); whatever still
// fails stays primary_only for the next sweep.
type Reconciler struct {
	store    *Store
	objects  *registry.ObjectService
	logger   zerolog.Logger
	interval time.Duration
}

func NewReconciler(store *Store, objects *registry.ObjectService, logger zerolog.Logger, interval time.Duration) *Reconciler {
	return &Reconciler{
		store:    store,
		objects:  objects,
		logger:   logger.With().Str("component", "reconciler").Logger(),
		interval: interval,
	}
}

// Run sweeps on the configured interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep performs one reconciliation pass.
func (r *Reconciler) Sweep(ctx context.Context) {
	r.replicatePrimaryOnly(ctx)
	r.purgeDeleteMarked(ctx)
}

func (r *Reconciler) replicatePrimaryOnly(ctx context.Context) {
	objects, err := r.objects.PrimaryOnly(ctx, reconcileBatchSize)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list primary-only objects")
		return
	}

	for _, obj := range objects {
		backoff := retry.WithMaxRetries(5, retry.WithCappedDuration(2*time.Minute, retry.NewExponential(5*time.Second)))
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			if err := r.store.ReplicateToSecondary(ctx, obj.Key, obj.Checksum); err != nil {
				return retry.RetryableError(err)
			}
			return nil
		})
		if err != nil {
			metrics.ReconcileAttempts.WithLabelValues("failure").Inc()
			r.logger.Warn().Err(err).Str("key", obj.Key).Msg("secondary reconciliation failed, will retry next sweep")
			continue
		}

		if err := r.objects.UpdateReplication(ctx, obj.ID, model.ReplicationBoth); err != nil {
			r.logger.Error().Err(err).Str("object", obj.ID).Msg("failed to record reconciled replication")
			continue
		}
		metrics.ReconcileAttempts.WithLabelValues("success").Inc()
		r.logger.Info().Str("key", obj.Key).Msg("object reconciled to both backends")
	}
}

// purgeDeleteMarked removes delete-marked objects, secondary first so a
// crash mid-deletion never leaves the authoritative copy gone while the
// record survives.
func (r *Reconciler) purgeDeleteMarked(ctx context.Context) {
	objects, err := r.objects.DeleteMarked(ctx, reconcileBatchSize)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to list delete-marked objects")
		return
	}

	for _, obj := range objects {
		if err := r.store.DeleteFrom(ctx, r.store.Secondary(), obj.Key); err != nil {
			r.logger.Warn().Err(err).Str("key", obj.Key).Msg("secondary delete failed, will retry next sweep")
			continue
		}
		if err := r.store.DeleteFrom(ctx, r.store.Primary(), obj.Key); err != nil {
			r.logger.Warn().Err(err).Str("key", obj.Key).Msg("primary delete failed, will retry next sweep")
			continue
		}
		if err := r.objects.Delete(ctx, obj.ID); err != nil {
			r.logger.Error().Err(err).Str("object", obj.ID).Msg("failed to remove object record")
		}
	}
}
