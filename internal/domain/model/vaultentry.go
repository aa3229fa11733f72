package model

import "time"

// VaultEntry is the encrypted-at-rest copy of one user's machine credential.
// At most one non-revoked entry exists per user; creating a new one supersedes
// any prior entry via an upsert keyed on UserID. EncryptedKey is an opaque
// envelope (see the envelope package); no key material is stored beside it.
type VaultEntry struct {
	UserID       string
	APIKeyID     string
	EncryptedKey string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	RevokedAt    *time.Time
}
