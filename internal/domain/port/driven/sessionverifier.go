package driven

import (
	"context"
	"errors"
)

// ErrSessionInvalid indicates a session token that is missing, malformed,
// expired, or signed with the wrong key. Callers surface it uniformly as
// unauthenticated.
var ErrSessionInvalid = errors.New("invalid session")

// SessionVerifier defines the driven port onto the external session-identity
// provider. Given a browser session token it yields the user ID the session
// was issued for; the resolver then loads the user fresh from storage.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}
