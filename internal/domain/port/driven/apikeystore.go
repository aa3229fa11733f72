package driven

import (
	"context"

	"github.com/flamedesk/flamedesk/internal/domain/model"
)

// APIKeyStore defines the driven port for API key persistence. Keys are never
// hard-deleted; revocation stamps revoked_at and the key stops resolving.
type APIKeyStore interface {
	// Insert persists a newly generated key (prefix + hash only, never the secret).
	Insert(ctx context.Context, key model.APIKey) error

	// GetByPrefix retrieves a live key by its public prefix. Revoked and
	// expired keys are filtered out. Returns nil, nil when no live key matches.
	GetByPrefix(ctx context.Context, prefix string) (*model.APIKey, error)

	// ListByUser returns all of a user's keys, newest first, including revoked
	// and expired ones.
	ListByUser(ctx context.Context, userID string) ([]model.APIKey, error)

	// Revoke stamps revoked_at on the key iff it belongs to userID and is not
	// already revoked. Returns false when no such key exists.
	Revoke(ctx context.Context, id, userID string) (bool, error)

	// TouchLastUsed stamps last_used_at. Best-effort monitoring metadata:
	// callers fire it asynchronously and only log failures.
	TouchLastUsed(ctx context.Context, id string) error
}
