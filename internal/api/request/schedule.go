package request

type CreateSchedule struct {
	Kind           string  `json:"kind" validate:"required,oneof=full_system database_only configuration_only tenant_schema"`
	TenantID       *string `json:"tenant_id,omitempty"`
	CronExpression string  `json:"cron_expression" validate:"required,cron"`
	RetentionCount *int    `json:"retention_count,omitempty" validate:"omitempty,min=0"`
	RetentionDays  *int    `json:"retention_days,omitempty" validate:"omitempty,min=0"`
}

type UpdateSchedule struct {
	CronExpression string `json:"cron_expression" validate:"required,cron"`
	RetentionCount *int   `json:"retention_count,omitempty" validate:"omitempty,min=0"`
	RetentionDays  *int   `json:"retention_days,omitempty" validate:"omitempty,min=0"`
}
