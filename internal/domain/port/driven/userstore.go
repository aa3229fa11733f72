package driven

import (
	"context"

	"github.com/flamedesk/flamedesk/internal/domain/model"
)

// UserStore defines the driven port onto the host application's user records.
// The resolver re-fetches through it on every request rather than trusting
// any cached or embedded claims.
type UserStore interface {
	// GetByID returns the user, or nil, nil when no such user exists.
	GetByID(ctx context.Context, id string) (*model.User, error)

	// Create inserts a user record. The host application normally owns user
	// provisioning; this exists for bootstrapping and tests.
	Create(ctx context.Context, user model.User) error
}
