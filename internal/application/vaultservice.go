package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/flamedesk/flamedesk/internal/crypto/envelope"
	"github.com/flamedesk/flamedesk/internal/domain/model"
	"github.com/flamedesk/flamedesk/internal/domain/port/driven"
)

// machineKeyName is the display name stamped on vault-minted credentials.
const machineKeyName = "Assistant MCP"

// VaultService guarantees each user exactly one usable machine credential for
// tool invocation, stored only in encrypted form.
type VaultService struct {
	keys   driven.APIKeyStore
	vault  driven.VaultStore
	secret string
	group  singleflight.Group
	logger *slog.Logger
}

// NewVaultService creates a VaultService. secret is the process-wide
// key-derivation input; when empty, every operation fails with
// driven.ErrVaultSecretNotSet.
func NewVaultService(keys driven.APIKeyStore, vault driven.VaultStore, secret string, logger *slog.Logger) *VaultService {
	return &VaultService{
		keys:   keys,
		vault:  vault,
		secret: secret,
		logger: logger,
	}
}

// GetOrCreate returns the user's machine credential in plaintext, minting and
// vaulting one on first use. Concurrent calls for the same user are collapsed
// in-process via singleflight; across processes the store's per-user upsert
// remains the only concurrency control, and a concurrently minted but
// never-vaulted key row is tolerated.
func (s *VaultService) GetOrCreate(ctx context.Context, userID, organizationID string) (string, error) {
	if s.secret == "" {
		return "", driven.ErrVaultSecretNotSet
	}

	v, err, _ := s.group.Do(userID, func() (any, error) {
		return s.getOrCreate(ctx, userID, organizationID)
	})
	if err != nil {
		return "", err
	}

	return v.(string), nil
}

func (s *VaultService) getOrCreate(ctx context.Context, userID, organizationID string) (string, error) {
	entry, err := s.vault.Get(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("read vault: %w", err)
	}

	if entry != nil {
		plaintext, err := envelope.Open(entry.EncryptedKey, s.secret)
		if err != nil {
			return "", fmt.Errorf("decrypt vault entry for user %s: %w", userID, err)
		}
		return plaintext, nil
	}

	gen, err := model.GenerateKey(model.ScopeReadWrite)
	if err != nil {
		return "", fmt.Errorf("generate machine credential: %w", err)
	}

	key := model.APIKey{
		ID:             uuid.NewString(),
		UserID:         userID,
		OrganizationID: organizationID,
		Name:           machineKeyName,
		Scope:          gen.Scope,
		Prefix:         gen.Prefix,
		Hash:           gen.Hash,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.keys.Insert(ctx, key); err != nil {
		return "", fmt.Errorf("persist machine credential: %w", err)
	}

	sealed, err := envelope.Seal(gen.FullKey, s.secret)
	if err != nil {
		return "", fmt.Errorf("encrypt machine credential: %w", err)
	}

	if err := s.vault.Upsert(ctx, model.VaultEntry{
		UserID:       userID,
		APIKeyID:     key.ID,
		EncryptedKey: sealed,
	}); err != nil {
		return "", fmt.Errorf("vault machine credential: %w", err)
	}

	s.logger.Info("minted machine credential", "user_id", userID, "key_id", key.ID)

	return gen.FullKey, nil
}
