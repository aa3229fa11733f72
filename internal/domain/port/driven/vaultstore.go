package driven

import (
	"context"
	"errors"

	"github.com/flamedesk/flamedesk/internal/domain/model"
)

// ErrVaultSecretNotSet is returned by vault operations when
// FLAMEDESK_VAULT_SECRET has not been configured.
var ErrVaultSecretNotSet = errors.New("vault encryption secret not configured: set FLAMEDESK_VAULT_SECRET")

// VaultStore defines the driven port for encrypted machine-credential
// persistence. The store holds opaque envelopes; encryption and decryption
// happen in the application layer.
type VaultStore interface {
	// Get retrieves the live (non-revoked) entry for a user.
	// Returns nil, nil when the user has no live entry.
	Get(ctx context.Context, userID string) (*model.VaultEntry, error)

	// Upsert inserts the entry or, when one already exists for the user,
	// overwrites its credential reference and payload, bumps updated_at, and
	// clears any revocation. The storage-level upsert is the concurrency
	// control that guarantees exactly one entry per user survives.
	Upsert(ctx context.Context, entry model.VaultEntry) error

	// RevokeByAPIKey stamps revoked_at on any entry referencing the given API
	// key, so revoking the underlying credential also retires the vault copy.
	RevokeByAPIKey(ctx context.Context, apiKeyID string) error
}
