package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backupd_jobs_completed_total",
		Help: "Backup jobs that reached completed, by kind",
	}, []string{"kind"})

	JobsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backupd_jobs_failed_total",
		Help: "Backup jobs that reached failed, by kind",
	}, []string{"kind"})

	JobsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backupd_jobs_cancelled_total",
		Help: "Backup jobs cancelled by operator request",
	})

	JobsRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "backupd_jobs_running",
		Help: "Backup and restore jobs currently executing",
	})

	ReplicationWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backupd_replication_warnings_total",
		Help: "Secondary-backend write failures left for reconciliation",
	})

	ReconcileAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "backupd_reconcile_attempts_total",
		Help: "Secondary reconciliation attempts, by outcome",
	}, []string{"outcome"})

	BackupsPurged = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backupd_backups_purged_total",
		Help: "Backup jobs purged by the retention manager",
	})

	ScheduleSkips = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backupd_schedule_skips_total",
		Help: "Schedule ticks skipped because a job for the same key was active",
	})

	RestoreConfirmDenied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "backupd_restore_confirmations_denied_total",
		Help: "Restore confirmations rejected by the identifier gate",
	})

	StorageBackendUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "backupd_storage_backend_up",
		Help: "Whether the storage backend answered its last health probe",
	}, []string{"backend"})
)
