// Package application contains the use-case services that sit between the
// HTTP driving adapter and the driven ports.
package application

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flamedesk/flamedesk/internal/domain/model"
	"github.com/flamedesk/flamedesk/internal/domain/port/driven"
)

// AuthService resolves inbound credentials into authenticated principals.
// Every rejection path returns nil, nil uniformly; the caller turns nil into
// a 401 without learning why. Errors are reserved for infrastructure
// failures (storage unreachable).
type AuthService struct {
	keys     driven.APIKeyStore
	users    driven.UserStore
	sessions driven.SessionVerifier
	logger   *slog.Logger
}

// NewAuthService creates an AuthService. sessions may be nil when no session
// secret is configured; the session channel is then disabled.
func NewAuthService(keys driven.APIKeyStore, users driven.UserStore, sessions driven.SessionVerifier, logger *slog.Logger) *AuthService {
	return &AuthService{
		keys:     keys,
		users:    users,
		sessions: sessions,
		logger:   logger,
	}
}

// ResolveAPIKey authenticates a bearer token against the key store for a
// request using the given HTTP method.
func (s *AuthService) ResolveAPIKey(ctx context.Context, token, method string) (*model.Principal, error) {
	prefix, secret, ok := model.ParseKeyToken(strings.TrimSpace(token))
	if !ok {
		return nil, nil
	}

	key, err := s.keys.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("look up api key: %w", err)
	}
	if key == nil {
		return nil, nil
	}

	expected := model.HashKeySecret(prefix, secret)
	if subtle.ConstantTimeCompare([]byte(expected), []byte(key.Hash)) != 1 {
		return nil, nil
	}

	if !key.Scope.AllowsMethod(method) {
		return nil, nil
	}

	// Role, organization, and email come fresh from storage so role changes
	// and deactivation take effect on the very next request.
	user, err := s.users.GetByID(ctx, key.UserID)
	if err != nil {
		return nil, fmt.Errorf("load api key owner: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	s.touchLastUsed(key.ID)

	return &model.Principal{
		UserID:         user.ID,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
		Email:          user.Email,
		Channel:        model.ChannelAPIKey,
		APIKeyID:       key.ID,
		APIKeyScope:    key.Scope,
	}, nil
}

// ResolveSession authenticates a browser session token.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*model.Principal, error) {
	if s.sessions == nil || token == "" {
		return nil, nil
	}

	userID, err := s.sessions.Verify(ctx, token)
	if err != nil {
		// An invalid session is unauthenticated, not an infrastructure failure.
		return nil, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load session user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	return &model.Principal{
		UserID:         user.ID,
		Role:           user.Role,
		OrganizationID: user.OrganizationID,
		Email:          user.Email,
		Channel:        model.ChannelSession,
	}, nil
}

// touchLastUsed stamps last_used_at without holding up the request. The HTTP
// request context will be cancelled once the response is sent, so the update
// runs on a background context; failures are logged and discarded.
func (s *AuthService) touchLastUsed(keyID string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := s.keys.TouchLastUsed(ctx, keyID); err != nil {
			s.logger.Warn("failed to stamp api key last_used_at", "key_id", keyID, "error", err)
		}
	}()
}
