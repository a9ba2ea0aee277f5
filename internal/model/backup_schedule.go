package model

import "time"

type BackupSchedule struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	TenantID       *string    `json:"tenant_id,omitempty"`
	CronExpression string     `json:"cron_expression"`
	RetentionCount *int       `json:"retention_count,omitempty"`
	RetentionDays  *int       `json:"retention_days,omitempty"`
	Enabled        bool       `json:"enabled"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	NextRunAt      time.Time  `json:"next_run_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
