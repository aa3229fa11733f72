package application_test

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flamedesk/flamedesk/internal/application"
	"github.com/flamedesk/flamedesk/internal/domain/model"
)

type authFixture struct {
	svc   *application.AuthService
	keys  *fakeKeyStore
	users *fakeUserStore
}

func newAuthFixture(t *testing.T, sessions *fakeSessionVerifier) *authFixture {
	t.Helper()

	keys := newFakeKeyStore()
	users := newFakeUserStore()

	var svc *application.AuthService
	if sessions != nil {
		svc = application.NewAuthService(keys, users, sessions, slog.Default())
	} else {
		svc = application.NewAuthService(keys, users, nil, slog.Default())
	}

	return &authFixture{svc: svc, keys: keys, users: users}
}

func (f *authFixture) seedUserWithKey(t *testing.T, scope model.Scope) (model.User, model.APIKey, string) {
	t.Helper()

	user := model.User{
		ID:             uuid.NewString(),
		Email:          "owner@example.com",
		Role:           "member",
		OrganizationID: "org-1",
	}
	require.NoError(t, f.users.Create(context.Background(), user))

	gen, err := model.GenerateKey(scope)
	require.NoError(t, err)

	key := model.APIKey{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Name:      "test",
		Scope:     scope,
		Prefix:    gen.Prefix,
		Hash:      gen.Hash,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.keys.Insert(context.Background(), key))

	return user, key, gen.FullKey
}

func TestAuthService_ResolveAPIKey_RoundTrip(t *testing.T) {
	f := newAuthFixture(t, nil)
	user, key, fullKey := f.seedUserWithKey(t, model.ScopeReadWrite)

	principal, err := f.svc.ResolveAPIKey(context.Background(), fullKey, http.MethodPost)
	require.NoError(t, err)
	require.NotNil(t, principal)

	assert.Equal(t, user.ID, principal.UserID)
	assert.Equal(t, "member", principal.Role)
	assert.Equal(t, "org-1", principal.OrganizationID)
	assert.Equal(t, user.Email, principal.Email)
	assert.Equal(t, model.ChannelAPIKey, principal.Channel)
	assert.Equal(t, key.ID, principal.APIKeyID)
	assert.Equal(t, model.ScopeReadWrite, principal.APIKeyScope)

	// The last-used stamp is fire-and-forget on a background context.
	assert.Eventually(t, func() bool {
		ids := f.keys.touchedIDs()
		return len(ids) == 1 && ids[0] == key.ID
	}, time.Second, 10*time.Millisecond)
}

func TestAuthService_ResolveAPIKey_ScopeMatrix(t *testing.T) {
	f := newAuthFixture(t, nil)
	_, _, readKey := f.seedUserWithKey(t, model.ScopeRead)
	_, _, writeKey := f.seedUserWithKey(t, model.ScopeReadWrite)

	ctx := context.Background()

	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodOptions} {
		p, err := f.svc.ResolveAPIKey(ctx, readKey, method)
		require.NoError(t, err)
		assert.NotNil(t, p, "read key should allow %s", method)
	}

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		p, err := f.svc.ResolveAPIKey(ctx, readKey, method)
		require.NoError(t, err)
		assert.Nil(t, p, "read key must reject %s", method)

		p, err = f.svc.ResolveAPIKey(ctx, writeKey, method)
		require.NoError(t, err)
		assert.NotNil(t, p, "read_write key should allow %s", method)
	}
}

func TestAuthService_ResolveAPIKey_Revoked(t *testing.T) {
	f := newAuthFixture(t, nil)
	user, key, fullKey := f.seedUserWithKey(t, model.ScopeRead)

	ok, err := f.keys.Revoke(context.Background(), key.ID, user.ID)
	require.NoError(t, err)
	require.True(t, ok)

	p, err := f.svc.ResolveAPIKey(context.Background(), fullKey, http.MethodGet)
	require.NoError(t, err)
	assert.Nil(t, p, "revoked key must not resolve even though prefix and digest still match")
}

func TestAuthService_ResolveAPIKey_Rejections(t *testing.T) {
	f := newAuthFixture(t, nil)
	_, _, fullKey := f.seedUserWithKey(t, model.ScopeRead)

	prefix, secret, ok := model.ParseKeyToken(fullKey)
	require.True(t, ok)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not a key token", "some-random-string"},
		{"wrong app tag", "torch_ak_" + prefix + "_" + secret},
		{"unknown prefix", "flame_ak_00000000_" + secret},
		{"wrong secret", "flame_ak_" + prefix + "_" + "deadbeef"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := f.svc.ResolveAPIKey(context.Background(), tt.token, http.MethodGet)
			require.NoError(t, err)
			assert.Nil(t, p)
		})
	}
}

func TestAuthService_ResolveAPIKey_RoleChangeTakesEffect(t *testing.T) {
	f := newAuthFixture(t, nil)
	user, _, fullKey := f.seedUserWithKey(t, model.ScopeRead)

	p, err := f.svc.ResolveAPIKey(context.Background(), fullKey, http.MethodGet)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "member", p.Role)

	user.Role = "admin"
	require.NoError(t, f.users.Create(context.Background(), user))

	p, err = f.svc.ResolveAPIKey(context.Background(), fullKey, http.MethodGet)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "admin", p.Role, "role must be re-read from storage on every request")
}

func TestAuthService_ResolveAPIKey_MissingOwner(t *testing.T) {
	f := newAuthFixture(t, nil)

	gen, err := model.GenerateKey(model.ScopeRead)
	require.NoError(t, err)

	// Key exists but its owner was removed.
	require.NoError(t, f.keys.Insert(context.Background(), model.APIKey{
		ID:     uuid.NewString(),
		UserID: "gone",
		Scope:  model.ScopeRead,
		Prefix: gen.Prefix,
		Hash:   gen.Hash,
	}))

	p, err := f.svc.ResolveAPIKey(context.Background(), gen.FullKey, http.MethodGet)
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestAuthService_ResolveSession(t *testing.T) {
	user := model.User{ID: uuid.NewString(), Email: "s@example.com", Role: "member"}

	f := newAuthFixture(t, &fakeSessionVerifier{userID: user.ID})
	require.NoError(t, f.users.Create(context.Background(), user))

	p, err := f.svc.ResolveSession(context.Background(), "session-token")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, model.ChannelSession, p.Channel)
	assert.Equal(t, user.ID, p.UserID)
	assert.Empty(t, p.APIKeyID)
}

func TestAuthService_ResolveSession_Invalid(t *testing.T) {
	f := newAuthFixture(t, &fakeSessionVerifier{err: assert.AnError})

	p, err := f.svc.ResolveSession(context.Background(), "bad-token")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestAuthService_ResolveSession_Disabled(t *testing.T) {
	f := newAuthFixture(t, nil)

	p, err := f.svc.ResolveSession(context.Background(), "any-token")
	require.NoError(t, err)
	assert.Nil(t, p)
}
