// Package session implements the SessionVerifier port for the browser session
// channel: HMAC-signed JWTs carried in the session cookie.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/flamedesk/flamedesk/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.SessionVerifier = (*Verifier)(nil)

// Verifier validates session tokens signed with a shared HMAC secret. The
// token's subject claim is the user ID; everything else about the user is
// re-read from storage by the resolver.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given signing secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates the token, returning the user ID it was issued
// for. Any defect (bad signature, expiry, wrong algorithm, missing subject)
// is reported as ErrSessionInvalid.
func (v *Verifier) Verify(_ context.Context, token string) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("%w: no session secret configured", driven.ErrSessionInvalid)
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", driven.ErrSessionInvalid, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", driven.ErrSessionInvalid)
	}

	return claims.Subject, nil
}

// Issue mints a session token for the given user ID with the given lifetime.
// The host application's login flow is the normal issuer; this exists for
// bootstrapping and tests.
func (v *Verifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}

	return token, nil
}
