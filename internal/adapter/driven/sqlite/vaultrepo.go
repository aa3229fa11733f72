package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flamedesk/flamedesk/internal/domain/model"
	"github.com/flamedesk/flamedesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.VaultStore = (*VaultRepo)(nil)

// VaultRepo is the SQLite implementation of the VaultStore port interface.
// It stores opaque encrypted envelopes keyed uniquely by user; the single-row
// upsert is what guarantees at most one live entry per user under concurrent
// creation.
type VaultRepo struct {
	db *DB
}

// NewVaultRepo creates a new VaultRepo backed by the given DB.
func NewVaultRepo(db *DB) *VaultRepo {
	return &VaultRepo{db: db}
}

// Get retrieves the live entry for a user. Returns nil, nil when the user has
// no non-revoked entry.
func (r *VaultRepo) Get(ctx context.Context, userID string) (*model.VaultEntry, error) {
	const query = `SELECT user_id, api_key_id, encrypted_key, created_at, updated_at, revoked_at
		FROM vault_keys
		WHERE user_id = ? AND revoked_at IS NULL
		LIMIT 1`

	entry, err := scanVaultEntry(r.db.Reader.QueryRowContext(ctx, query, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get vault entry: %w", err)
	}

	return entry, nil
}

// Upsert inserts the entry or overwrites the existing one for the same user,
// replacing the credential reference and payload, bumping updated_at, and
// clearing any revocation. Concurrent creators converge on whichever write
// lands last; exactly one row per user survives.
func (r *VaultRepo) Upsert(ctx context.Context, entry model.VaultEntry) error {
	const query = `INSERT INTO vault_keys (user_id, api_key_id, encrypted_key, created_at, updated_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, NULL)
		ON CONFLICT (user_id) DO UPDATE SET
			api_key_id = excluded.api_key_id,
			encrypted_key = excluded.encrypted_key,
			updated_at = excluded.updated_at,
			revoked_at = NULL`

	now := time.Now().UTC()
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := entry.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = now
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		entry.UserID,
		entry.APIKeyID,
		entry.EncryptedKey,
		formatTime(createdAt),
		formatTime(updatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert vault entry for user %s: %w", entry.UserID, err)
	}

	return nil
}

// RevokeByAPIKey stamps revoked_at on any entry referencing the given API key.
func (r *VaultRepo) RevokeByAPIKey(ctx context.Context, apiKeyID string) error {
	const query = `UPDATE vault_keys SET revoked_at = ?
		WHERE api_key_id = ? AND revoked_at IS NULL`

	if _, err := r.db.Writer.ExecContext(ctx, query, formatTime(time.Now()), apiKeyID); err != nil {
		return fmt.Errorf("revoke vault entry for api key %s: %w", apiKeyID, err)
	}

	return nil
}

func scanVaultEntry(s scanner) (*model.VaultEntry, error) {
	var (
		entry     model.VaultEntry
		createdAt string
		updatedAt string
		revoked   sql.NullString
	)

	err := s.Scan(&entry.UserID, &entry.APIKeyID, &entry.EncryptedKey, &createdAt, &updatedAt, &revoked)
	if err != nil {
		return nil, err
	}

	if entry.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if entry.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	if entry.RevokedAt, err = parseTimePtr(revoked); err != nil {
		return nil, fmt.Errorf("parse revoked_at: %w", err)
	}

	return &entry, nil
}
