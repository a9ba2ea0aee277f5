package registry

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/edvin/backupd/internal/model"
	"github.com/edvin/backupd/internal/platform"
)

type APIKeyService struct {
	db DB
}

func NewAPIKeyService(db DB) *APIKeyService {
	return &APIKeyService{db: db}
}

// Create generates a new API key and stores its hash. The raw key is
// returned once and never persisted.
func (s *APIKeyService) Create(ctx context.Context, name string) (*model.APIKey, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", fmt.Errorf("generate api key: %w", err)
	}
	rawKey := hex.EncodeToString(raw)

	hash := sha256.Sum256([]byte(rawKey))
	key := &model.APIKey{
		ID:        platform.NewID(),
		Name:      name,
		CreatedAt: time.Now(),
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO api_keys (id, name, key_hash, created_at) VALUES ($1, $2, $3, $4)`,
		key.ID, key.Name, hex.EncodeToString(hash[:]), key.CreatedAt,
	)
	if err != nil {
		return nil, "", fmt.Errorf("insert api key: %w", err)
	}
	return key, rawKey, nil
}

// Revoke disables a key; revoked keys fail authentication immediately.
func (s *APIKeyService) Revoke(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE api_keys SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("revoke api key %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("api key %s: %w", id, model.ErrNotFound)
	}
	return nil
}
