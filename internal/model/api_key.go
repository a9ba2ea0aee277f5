package model

import "time"

// APIKey authenticates an operator. Only the SHA-256 hash of the key is
// stored; the raw key is shown once at creation.
type APIKey struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}
