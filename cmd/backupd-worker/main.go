package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edvin/backupd/internal/audit"
	"github.com/edvin/backupd/internal/config"
	"github.com/edvin/backupd/internal/db"
	"github.com/edvin/backupd/internal/dump"
	"github.com/edvin/backupd/internal/executor"
	"github.com/edvin/backupd/internal/logging"
	"github.com/edvin/backupd/internal/metrics"
	"github.com/edvin/backupd/internal/model"
	"github.com/edvin/backupd/internal/registry"
	"github.com/edvin/backupd/internal/retention"
	"github.com/edvin/backupd/internal/scheduler"
	"github.com/edvin/backupd/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate("worker"); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to registry database")
	}
	defer pool.Close()
	metrics.RegisterPgxPoolMetrics(pool)

	services := registry.NewServices(pool)
	recorder := audit.NewRecorder(pool, logger)
	defer recorder.Close()

	primary := storage.NewS3Backend(model.BackendPrimary, cfg.PrimaryStorage)
	secondary := storage.NewS3Backend(model.BackendSecondary, cfg.SecondaryStorage)
	store := storage.NewStore(primary, secondary, logger, cfg.StepTimeout)

	tool := dump.NewTool(logger, cfg.DumpTool, cfg.RestoreTool)

	exec := executor.New(services.Jobs, services.Restores, services.Objects, services.Tenants,
		tool, store, recorder, logger, cfg.WorkerPoolSize)
	sched := scheduler.New(services.Jobs, services.Schedules, recorder, logger, cfg.SchedulerInterval)
	manager := retention.NewManager(services.Jobs, services.Schedules, services.Objects, store,
		recorder, logger, cfg.RetentionInterval)
	reconciler := storage.NewReconciler(store, services.Objects, logger, cfg.ReconcileInterval)
	health := storage.NewHealthMonitor(store, services.Health, logger, cfg.HealthInterval)

	metricsServer := metrics.NewServer(cfg.MetricsAddr)

	g, runCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return exec.Run(runCtx) })
	g.Go(func() error { sched.Run(runCtx); return nil })
	g.Go(func() error { manager.Run(runCtx); return nil })
	g.Go(func() error { reconciler.Run(runCtx); return nil })
	g.Go(func() error { health.Run(runCtx); return nil })
	g.Go(func() error {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("starting metrics server")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	logger.Info().Int("pool_size", cfg.WorkerPoolSize).Msg("backup worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		logger.Info().Msg("shutting down worker")
	case <-runCtx.Done():
		logger.Error().Msg("component failed, shutting down")
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	metricsServer.Shutdown(shutdownCtx)

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("worker exited with error")
	}
}
