package platform

import (
	"fmt"

	"github.com/google/uuid"
)

func NewID() string {
	return uuid.New().String()
}

// ObjectKey builds the storage key for a backup job's artifact. The same key
// is used on both backends; the layout groups objects by kind and tenant so
// operators can inspect buckets directly.
func ObjectKey(kind string, tenantID *string, jobID string) string {
	scope := "system"
	if tenantID != nil {
		scope = *tenantID
	}
	return fmt.Sprintf("backups/%s/%s/%s.dump", kind, scope, jobID)
}
