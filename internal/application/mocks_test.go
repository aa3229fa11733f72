package application_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flamedesk/flamedesk/internal/domain/model"
)

// --- Fake implementations of the driven ports ---

type fakeKeyStore struct {
	mu        sync.Mutex
	keys      map[string]*model.APIKey // by ID
	insertErr error
	touched   []string
	touchErr  error
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{keys: make(map[string]*model.APIKey)}
}

func (f *fakeKeyStore) Insert(_ context.Context, key model.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	k := key
	f.keys[key.ID] = &k
	return nil
}

func (f *fakeKeyStore) GetByPrefix(_ context.Context, prefix string) (*model.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	for _, k := range f.keys {
		if k.Prefix == prefix && !k.IsRevoked() && !k.IsExpired(now) {
			dup := *k
			return &dup, nil
		}
	}
	return nil, nil
}

func (f *fakeKeyStore) ListByUser(_ context.Context, userID string) ([]model.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.APIKey
	for _, k := range f.keys {
		if k.UserID == userID {
			out = append(out, *k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeKeyStore) Revoke(_ context.Context, id, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[id]
	if !ok || k.UserID != userID || k.IsRevoked() {
		return false, nil
	}
	now := time.Now().UTC()
	k.RevokedAt = &now
	return true, nil
}

func (f *fakeKeyStore) TouchLastUsed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.touchErr != nil {
		return f.touchErr
	}
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeKeyStore) touchedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.touched...)
}

func (f *fakeKeyStore) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, k := range f.keys {
		if !k.IsRevoked() {
			n++
		}
	}
	return n
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]model.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]model.User)}
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (f *fakeUserStore) Create(_ context.Context, user model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[user.ID] = user
	return nil
}

type fakeSessionVerifier struct {
	userID string
	err    error
}

func (f *fakeSessionVerifier) Verify(_ context.Context, _ string) (string, error) {
	return f.userID, f.err
}

type fakeVaultStore struct {
	mu      sync.Mutex
	entries map[string]*model.VaultEntry // by user ID
	getErr  error
}

func newFakeVaultStore() *fakeVaultStore {
	return &fakeVaultStore{entries: make(map[string]*model.VaultEntry)}
}

func (f *fakeVaultStore) Get(_ context.Context, userID string) (*model.VaultEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	e, ok := f.entries[userID]
	if !ok || e.RevokedAt != nil {
		return nil, nil
	}
	dup := *e
	return &dup, nil
}

func (f *fakeVaultStore) Upsert(_ context.Context, entry model.VaultEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := f.entries[entry.UserID]; ok {
		existing.APIKeyID = entry.APIKeyID
		existing.EncryptedKey = entry.EncryptedKey
		existing.UpdatedAt = now
		existing.RevokedAt = nil
		return nil
	}
	e := entry
	e.CreatedAt = now
	e.UpdatedAt = now
	f.entries[entry.UserID] = &e
	return nil
}

func (f *fakeVaultStore) RevokeByAPIKey(_ context.Context, apiKeyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	for _, e := range f.entries {
		if e.APIKeyID == apiKeyID && e.RevokedAt == nil {
			e.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeVaultStore) liveEntries() []model.VaultEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.VaultEntry
	for _, e := range f.entries {
		if e.RevokedAt == nil {
			out = append(out, *e)
		}
	}
	return out
}

type toolCall struct {
	Bearer string
	Name   string
	Args   map[string]any
}

type fakeToolCaller struct {
	mu     sync.Mutex
	result *model.ToolResult
	err    error
	calls  []toolCall
}

func (f *fakeToolCaller) CallTool(_ context.Context, bearerToken, toolName string, toolArgs map[string]any) (*model.ToolResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, toolCall{Bearer: bearerToken, Name: toolName, Args: toolArgs})
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}
