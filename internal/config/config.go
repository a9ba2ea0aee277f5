package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type S3BackendConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

type Config struct {
	DatabaseURL    string
	HTTPListenAddr string
	MetricsAddr    string
	LogLevel       string
	ServiceName    string

	PrimaryStorage   S3BackendConfig
	SecondaryStorage S3BackendConfig

	// DumpTool and RestoreTool are the external snapshot binaries. They are
	// treated as opaque: given a scope they emit or apply a byte stream.
	DumpTool    string
	RestoreTool string

	WorkerPoolSize    int
	SchedulerInterval time.Duration
	RetentionInterval time.Duration
	ReconcileInterval time.Duration
	HealthInterval    time.Duration
	// StepTimeout bounds every external call: dump/restore invocations and
	// storage put/get/delete. Exceeding it fails that step without retry.
	StepTimeout time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8090"),
		MetricsAddr:    getEnv("METRICS_ADDR", ":9100"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ServiceName:    getEnv("SERVICE_NAME", ""),
		PrimaryStorage: S3BackendConfig{
			Endpoint:  getEnv("PRIMARY_S3_ENDPOINT", ""),
			Region:    getEnv("PRIMARY_S3_REGION", "us-east-1"),
			Bucket:    getEnv("PRIMARY_S3_BUCKET", "backups-primary"),
			AccessKey: getEnv("PRIMARY_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("PRIMARY_S3_SECRET_KEY", ""),
		},
		SecondaryStorage: S3BackendConfig{
			Endpoint:  getEnv("SECONDARY_S3_ENDPOINT", ""),
			Region:    getEnv("SECONDARY_S3_REGION", "us-east-1"),
			Bucket:    getEnv("SECONDARY_S3_BUCKET", "backups-secondary"),
			AccessKey: getEnv("SECONDARY_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("SECONDARY_S3_SECRET_KEY", ""),
		},
		DumpTool:          getEnv("DUMP_TOOL", "platform-dump"),
		RestoreTool:       getEnv("RESTORE_TOOL", "platform-restore"),
		WorkerPoolSize:    getEnvInt("WORKER_POOL_SIZE", 4),
		SchedulerInterval: getEnvDuration("SCHEDULER_INTERVAL", time.Minute),
		RetentionInterval: getEnvDuration("RETENTION_INTERVAL", time.Hour),
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 5*time.Minute),
		HealthInterval:    getEnvDuration("HEALTH_INTERVAL", time.Minute),
		StepTimeout:       getEnvDuration("STEP_TIMEOUT", 10*time.Minute),
	}

	return cfg, nil
}

// Validate checks the fields required by the given role ("api" or "worker").
func (c *Config) Validate(role string) error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if role == "worker" {
		if c.PrimaryStorage.Endpoint == "" {
			return fmt.Errorf("PRIMARY_S3_ENDPOINT is required")
		}
		if c.SecondaryStorage.Endpoint == "" {
			return fmt.Errorf("SECONDARY_S3_ENDPOINT is required")
		}
		if c.WorkerPoolSize < 1 {
			return fmt.Errorf("WORKER_POOL_SIZE must be at least 1")
		}
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
