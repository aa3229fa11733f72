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
var _ driven.APIKeyStore = (*APIKeyRepo)(nil)

// APIKeyRepo is the SQLite implementation of the APIKeyStore port interface.
type APIKeyRepo struct {
	db *DB
}

// NewAPIKeyRepo creates a new APIKeyRepo backed by the given DB.
func NewAPIKeyRepo(db *DB) *APIKeyRepo {
	return &APIKeyRepo{db: db}
}

const apiKeyColumns = `id, user_id, organization_id, name, key_prefix, key_hash, scope, created_at, last_used_at, expires_at, revoked_at`

// Insert persists a newly generated key. Only the prefix and hash are stored.
func (r *APIKeyRepo) Insert(ctx context.Context, key model.APIKey) error {
	const query = `INSERT INTO api_keys (id, user_id, organization_id, name, key_prefix, key_hash, scope, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	createdAt := key.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		key.ID,
		key.UserID,
		nullString(key.OrganizationID),
		key.Name,
		key.Prefix,
		key.Hash,
		string(key.Scope),
		formatTime(createdAt),
		formatTimePtr(key.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("insert api key %s: %w", key.ID, err)
	}

	return nil
}

// GetByPrefix retrieves a live key by its public prefix. Revoked and expired
// keys never match. Returns nil, nil when no live key exists.
func (r *APIKeyRepo) GetByPrefix(ctx context.Context, prefix string) (*model.APIKey, error) {
	const query = `SELECT ` + apiKeyColumns + ` FROM api_keys
		WHERE key_prefix = ?
		  AND revoked_at IS NULL
		  AND (expires_at IS NULL OR expires_at > ?)
		LIMIT 1`

	key, err := scanAPIKey(r.db.Reader.QueryRowContext(ctx, query, prefix, formatTime(time.Now())))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}

	return key, nil
}

// ListByUser returns all of a user's keys, newest first.
func (r *APIKeyRepo) ListByUser(ctx context.Context, userID string) ([]model.APIKey, error) {
	const query = `SELECT ` + apiKeyColumns + ` FROM api_keys
		WHERE user_id = ?
		ORDER BY created_at DESC, id`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []model.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, *key)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}

	return keys, nil
}

// Revoke stamps revoked_at on the key iff it belongs to userID and is not
// already revoked. Returns false when no matching key exists.
func (r *APIKeyRepo) Revoke(ctx context.Context, id, userID string) (bool, error) {
	const query = `UPDATE api_keys SET revoked_at = ?
		WHERE id = ? AND user_id = ? AND revoked_at IS NULL`

	result, err := r.db.Writer.ExecContext(ctx, query, formatTime(time.Now()), id, userID)
	if err != nil {
		return false, fmt.Errorf("revoke api key %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check rows affected: %w", err)
	}

	return rows > 0, nil
}

// TouchLastUsed stamps last_used_at on the key.
func (r *APIKeyRepo) TouchLastUsed(ctx context.Context, id string) error {
	const query = `UPDATE api_keys SET last_used_at = ? WHERE id = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, formatTime(time.Now()), id); err != nil {
		return fmt.Errorf("touch api key %s: %w", id, err)
	}

	return nil
}

func scanAPIKey(s scanner) (*model.APIKey, error) {
	var (
		key       model.APIKey
		orgID     sql.NullString
		scope     string
		createdAt string
		lastUsed  sql.NullString
		expires   sql.NullString
		revoked   sql.NullString
	)

	err := s.Scan(&key.ID, &key.UserID, &orgID, &key.Name, &key.Prefix, &key.Hash, &scope, &createdAt, &lastUsed, &expires, &revoked)
	if err != nil {
		return nil, err
	}

	key.OrganizationID = orgID.String
	key.Scope = model.Scope(scope)

	if key.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if key.LastUsedAt, err = parseTimePtr(lastUsed); err != nil {
		return nil, fmt.Errorf("parse last_used_at: %w", err)
	}
	if key.ExpiresAt, err = parseTimePtr(expires); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if key.RevokedAt, err = parseTimePtr(revoked); err != nil {
		return nil, fmt.Errorf("parse revoked_at: %w", err)
	}

	return &key, nil
}
