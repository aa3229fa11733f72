package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/flamedesk/flamedesk/internal/domain/model"
)

// setupTestDB creates a named shared in-memory SQLite database for testing.
// Writer and reader connections share the same in-memory database via
// cache=shared. A unique name derived from t.Name() ensures isolation between
// parallel tests.
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	// Percent-encode the test name so it's a safe SQLite URI filename component
	// and cannot be misinterpreted as query parameters in the "file:%s?..." DSN.
	safeName := url.PathEscape(t.Name())
	// WAL mode is not applicable to in-memory databases; omit journal_mode pragma.
	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=cache_size(-64000)",
		safeName,
	)

	writer, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("create test db writer: %v", err)
	}
	writer.SetMaxOpenConns(1)
	if err := writer.PingContext(context.Background()); err != nil {
		_ = writer.Close()
		t.Fatalf("ping test db writer: %v", err)
	}

	reader, err := sql.Open("sqlite", dsn)
	if err != nil {
		_ = writer.Close()
		t.Fatalf("create test db reader: %v", err)
	}
	reader.SetMaxOpenConns(4)
	if err := reader.PingContext(context.Background()); err != nil {
		_ = reader.Close()
		_ = writer.Close()
		t.Fatalf("ping test db reader: %v", err)
	}

	db := &DB{Writer: writer, Reader: reader, path: dsn}

	if err := RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		t.Fatalf("run migrations: %v", err)
	}

	t.Cleanup(func() { _ = db.Close() })

	return db
}

// seedUser inserts a user row and returns its ID. api_keys and vault_keys
// rows reference users, so most tests need one.
func seedUser(t *testing.T, db *DB) string {
	t.Helper()

	id := uuid.NewString()
	user := model.User{
		ID:        id,
		Email:     id + "@example.com",
		Role:      "member",
		CreatedAt: time.Now().UTC(),
	}

	if err := NewUserRepo(db).Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	return id
}

// seedAPIKey generates and inserts a live key for the user, returning the
// stored model and the full plaintext key.
func seedAPIKey(t *testing.T, db *DB, userID string, scope model.Scope) (model.APIKey, string) {
	t.Helper()

	gen, err := model.GenerateKey(scope)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	key := model.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      "test key",
		Scope:     scope,
		Prefix:    gen.Prefix,
		Hash:      gen.Hash,
		CreatedAt: time.Now().UTC(),
	}

	if err := NewAPIKeyRepo(db).Insert(context.Background(), key); err != nil {
		t.Fatalf("seed api key: %v", err)
	}

	return key, gen.FullKey
}
