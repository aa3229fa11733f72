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
var _ driven.UserStore = (*UserRepo)(nil)

// UserRepo is the SQLite implementation of the UserStore port interface.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new UserRepo backed by the given DB.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

// GetByID returns the user, or nil, nil when no such user exists.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	const query = `SELECT id, email, user_role, organization_id, created_at FROM users WHERE id = ?`

	var (
		user      model.User
		orgID     sql.NullString
		createdAt string
	)

	err := r.db.Reader.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Email, &user.Role, &orgID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}

	user.OrganizationID = orgID.String
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &user, nil
}

// Create inserts a user record.
func (r *UserRepo) Create(ctx context.Context, user model.User) error {
	const query = `INSERT INTO users (id, email, user_role, organization_id, created_at) VALUES (?, ?, ?, ?, ?)`

	createdAt := user.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		user.ID,
		user.Email,
		user.Role,
		nullString(user.OrganizationID),
		formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("create user %s: %w", user.ID, err)
	}

	return nil
}
