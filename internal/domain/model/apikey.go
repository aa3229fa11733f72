package model

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Scope is the coarse permission attached to an API key.
type Scope string

const (
	// ScopeRead permits only safe HTTP methods (GET, HEAD, OPTIONS).
	ScopeRead Scope = "read"

	// ScopeReadWrite permits all HTTP methods.
	ScopeReadWrite Scope = "read_write"
)

// ParseScope validates a scope string. Only "read" and "read_write" are accepted.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case ScopeRead, ScopeReadWrite:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("invalid scope %q", s)
	}
}

// AllowsMethod reports whether the scope permits the given HTTP method.
// Read scope is restricted to safe methods; read_write allows everything.
func (s Scope) AllowsMethod(method string) bool {
	if s == ScopeReadWrite {
		return true
	}
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

// Token segment tags and delimiter. A full key reads
// flame_ak_<prefix>_<secret>; the prefix is stored in the clear for lookup,
// the secret is never persisted.
const (
	keyAppTag   = "flame"
	keyClassTag = "ak"
	keyDelim    = "_"

	keyPrefixLen = 8
)

// APIKey is one issuable, revocable bearer credential. Only the prefix and
// the one-way hash of the secret are ever stored; the full key exists in
// plaintext only at generation time (and inside the vault, encrypted).
type APIKey struct {
	ID             string
	UserID         string
	OrganizationID string // empty when the key is not organization-bound
	Name           string
	Scope          Scope
	Prefix         string
	Hash           string
	CreatedAt      time.Time
	LastUsedAt     *time.Time
	ExpiresAt      *time.Time
	RevokedAt      *time.Time
}

// IsRevoked reports whether the key has been logically revoked.
func (k *APIKey) IsRevoked() bool {
	return k.RevokedAt != nil
}

// IsExpired reports whether the key has an expiry in the past relative to now.
func (k *APIKey) IsExpired(now time.Time) bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(now)
}

// GeneratedKey is the result of minting a new API key. FullKey is returned to
// the caller exactly once and is not recoverable from Prefix and Hash.
type GeneratedKey struct {
	FullKey string
	Prefix  string
	Hash    string
	Scope   Scope
}

// GenerateKey mints a new API key for the given scope. The key is built from
// 32 random bytes rendered as hex: the first 8 characters form the public
// lookup prefix, the remainder forms the secret.
func GenerateKey(scope Scope) (GeneratedKey, error) {
	if _, err := ParseScope(string(scope)); err != nil {
		return GeneratedKey{}, err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return GeneratedKey{}, fmt.Errorf("generate key material: %w", err)
	}

	raw := hex.EncodeToString(buf)
	prefix := raw[:keyPrefixLen]
	secret := raw[keyPrefixLen:]

	return GeneratedKey{
		FullKey: strings.Join([]string{keyAppTag, keyClassTag, prefix, secret}, keyDelim),
		Prefix:  prefix,
		Hash:    HashKeySecret(prefix, secret),
		Scope:   scope,
	}, nil
}

// HashKeySecret computes the stored verifier for a key: the SHA-256 hex digest
// of "<prefix>.<secret>". Verification recomputes this from a claimed secret;
// the secret cannot be recovered from the digest.
func HashKeySecret(prefix, secret string) string {
	sum := sha256.Sum256([]byte(prefix + "." + secret))
	return hex.EncodeToString(sum[:])
}

// ParseKeyToken splits a presented bearer token into its prefix and secret
// segments. It returns ok=false unless the token has at least four
// underscore-separated parts and the leading parts match the fixed tags.
// Everything after the third delimiter is rejoined as the secret, so a secret
// containing the delimiter survives parsing.
func ParseKeyToken(token string) (prefix, secret string, ok bool) {
	parts := strings.Split(token, keyDelim)
	if len(parts) < 4 || parts[0] != keyAppTag || parts[1] != keyClassTag {
		return "", "", false
	}

	prefix = parts[2]
	secret = strings.Join(parts[3:], keyDelim)
	if prefix == "" || secret == "" {
		return "", "", false
	}

	return prefix, secret, true
}
