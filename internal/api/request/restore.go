package request

type InitiateRestore struct {
	SourceBackupID string `json:"source_backup_id" validate:"required"`
	TargetTenantID string `json:"target_tenant_id" validate:"required"`
}

// ConfirmRestore carries the typed tenant identifier. It is compared
// verbatim against the tenant's name; the server never normalizes it.
type ConfirmRestore struct {
	Confirmation string `json:"confirmation" validate:"required"`
}
