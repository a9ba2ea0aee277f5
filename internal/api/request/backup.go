package request

type CreateBackup struct {
	Kind     string  `json:"kind" validate:"required,oneof=full_system database_only configuration_only tenant_schema"`
	TenantID *string `json:"tenant_id,omitempty"`
}
