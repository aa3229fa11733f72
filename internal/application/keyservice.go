package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flamedesk/flamedesk/internal/domain/model"
	"github.com/flamedesk/flamedesk/internal/domain/port/driven"
)

// KeyService manages user-issued API keys: issuance, listing, and logical
// revocation. Keys are never hard-deleted.
type KeyService struct {
	keys   driven.APIKeyStore
	vault  driven.VaultStore
	logger *slog.Logger
}

// NewKeyService creates a KeyService.
func NewKeyService(keys driven.APIKeyStore, vault driven.VaultStore, logger *slog.Logger) *KeyService {
	return &KeyService{
		keys:   keys,
		vault:  vault,
		logger: logger,
	}
}

// Issue mints a new API key for the principal and returns its metadata plus
// the full plaintext key. The plaintext is shown to the caller exactly once
// and is not recoverable afterwards.
func (s *KeyService) Issue(ctx context.Context, principal *model.Principal, name string, scope model.Scope, expiresAt *time.Time) (model.APIKey, string, error) {
	gen, err := model.GenerateKey(scope)
	if err != nil {
		return model.APIKey{}, "", err
	}

	key := model.APIKey{
		ID:             uuid.NewString(),
		UserID:         principal.UserID,
		OrganizationID: principal.OrganizationID,
		Name:           name,
		Scope:          scope,
		Prefix:         gen.Prefix,
		Hash:           gen.Hash,
		CreatedAt:      time.Now().UTC(),
		ExpiresAt:      expiresAt,
	}

	if err := s.keys.Insert(ctx, key); err != nil {
		return model.APIKey{}, "", fmt.Errorf("persist api key: %w", err)
	}

	s.logger.Info("api key issued", "user_id", principal.UserID, "key_id", key.ID, "scope", scope)

	return key, gen.FullKey, nil
}

// List returns all of the principal's keys, newest first. Metadata only; the
// stored hash never leaves the persistence layer boundary unredacted by the
// HTTP adapter.
func (s *KeyService) List(ctx context.Context, principal *model.Principal) ([]model.APIKey, error) {
	return s.keys.ListByUser(ctx, principal.UserID)
}

// Revoke logically revokes the principal's key and retires any vault entry
// referencing it. Returns false when the key does not exist or belongs to a
// different user.
func (s *KeyService) Revoke(ctx context.Context, principal *model.Principal, keyID string) (bool, error) {
	ok, err := s.keys.Revoke(ctx, keyID, principal.UserID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := s.vault.RevokeByAPIKey(ctx, keyID); err != nil {
		return false, fmt.Errorf("revoke vault entry: %w", err)
	}

	s.logger.Info("api key revoked", "user_id", principal.UserID, "key_id", keyID)

	return true, nil
}
