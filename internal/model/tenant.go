package model

import "time"

// Tenant is the read-only directory entry used for restore confirmation and
// scope isolation. Tenant lifecycle is managed elsewhere.
type Tenant struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	SchemaName string    `json:"schema_name"`
	CreatedAt  time.Time `json:"created_at"`
}
