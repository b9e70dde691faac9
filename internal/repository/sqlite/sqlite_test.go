package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/sakif/cardbinder/internal/model"
)

// newTestDB opens an in-memory database with the full schema applied.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("New(:memory:): %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// seedUser inserts a GitHub user row and returns its generated ID. The
// collections and cards tables reference users(id), so most tests need one.
func seedUser(t *testing.T, db *DB, githubID int64) string {
	t.Helper()
	u := &model.User{
		GitHubID: githubID,
		Login:    fmt.Sprintf("user%d", githubID),
	}
	created, err := db.Users.UpsertGitHub(context.Background(), u)
	if err != nil {
		t.Fatalf("UpsertGitHub: %v", err)
	}
	if !created {
		t.Fatalf("UpsertGitHub: expected a new user for github id %d", githubID)
	}
	return u.ID
}

// seedCollection inserts a collection for the user and returns it.
func seedCollection(t *testing.T, db *DB, userID, name string, isDefault bool) *model.Collection {
	t.Helper()
	c := &model.Collection{
		UserID:    userID,
		Name:      name,
		IsDefault: isDefault,
	}
	if err := db.Collections.Create(context.Background(), c); err != nil {
		t.Fatalf("creating collection %q: %v", name, err)
	}
	return c
}

func TestNewReopensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	db, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	userID := seedUser(t, db, 1)
	seedCollection(t, db, userID, "Rookies", true)
	if err := db.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Reopening runs migrate() against the populated file; every statement
	// must be idempotent and the data must survive.
	db2, err := New(path)
	if err != nil {
		t.Fatalf("New on existing file: %v", err)
	}
	defer db2.Close()

	got, err := db2.Collections.GetDefault(ctx, userID)
	if err != nil {
		t.Fatalf("GetDefault after reopen: %v", err)
	}
	if got.Name != "Rookies" {
		t.Errorf("default collection name = %q, want %q", got.Name, "Rookies")
	}
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("constraint failed: UNIQUE constraint failed: collections.user_id, collections.name (2067)")
	if !isUniqueViolation(err, "collections.name") {
		t.Error("expected a match on collections.name")
	}
	if isUniqueViolation(err, "users.email") {
		t.Error("unexpected match on users.email")
	}
	if isUniqueViolation(nil, "collections.name") {
		t.Error("nil error should never match")
	}
}
