package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/snapfeed/internal/apperror"
	"github.com/sakif/snapfeed/internal/model"
	"github.com/sakif/snapfeed/internal/repository"
)

// =========================================================================
// CREATE / LOOKUP TESTS
// =========================================================================

func TestUserCreate(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Email: "a@x.com", Username: "alice", PasswordHash: "hash"}
	if err := db.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if user.ID == "" {
		t.Error("Create() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("Create() did not set user.CreatedAt")
	}
	if len(user.Tokens) != 0 {
		t.Errorf("new user has %d tokens, want 0", len(user.Tokens))
	}
}

func TestUserCreate_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "a@x.com", "alice")

	err := db.Users().Create(context.Background(), &model.User{
		Email: "a@x.com", Username: "other", PasswordHash: "hash",
	})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("Create() duplicate error = %v, want ErrConflict", err)
	}
}

func TestUserGetByEmail(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "a@x.com", "alice")

	found, err := db.Users().GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("GetByEmail() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
	if found.PasswordHash != "$2a$04$notarealhash" {
		t.Errorf("PasswordHash = %q, not persisted", found.PasswordHash)
	}
	if found.Tokens == nil || len(found.Tokens) != 0 {
		t.Errorf("Tokens = %v, want empty non-nil list", found.Tokens)
	}
}

func TestUserGetByEmail_CaseSensitive(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "a@x.com", "alice")

	_, err := db.Users().GetByEmail(context.Background(), "A@X.COM")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByEmail() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.Users().GetByID(context.Background(), "nonexistent-id")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByUsername(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "a@x.com", "alice")

	found, err := db.Users().GetByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
}

func TestUserList(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "a@x.com", "alice")
	createTestUser(t, db, "b@x.com", "bob")
	createTestUser(t, db, "c@x.com", "carol")

	users, err := db.Users().List(context.Background(), repository.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(users) != 2 {
		t.Errorf("List() returned %d users, want 2", len(users))
	}
}

// =========================================================================
// PROFILE UPDATE / DELETE TESTS
// =========================================================================

func TestUserUpdateProfile(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "a@x.com", "alice")

	user.Username = "alice2"
	user.AvatarURL = "https://cdn.example.com/a.png"
	if err := db.Users().UpdateProfile(context.Background(), user); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	found, err := db.Users().GetByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if found.Username != "alice2" || found.AvatarURL != "https://cdn.example.com/a.png" {
		t.Errorf("profile = (%q, %q), not updated", found.Username, found.AvatarURL)
	}
}

func TestUserUpdateProfile_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.Users().UpdateProfile(context.Background(), &model.User{ID: "missing"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateProfile() error = %v, want ErrNotFound", err)
	}
}

func TestUserDelete_RemovesTokens(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "a@x.com", "alice")
	if err := db.Users().AppendToken(ctx, user.ID, "t1"); err != nil {
		t.Fatalf("AppendToken() error = %v", err)
	}

	if err := db.Users().Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM refresh_tokens`).Scan(&n); err != nil {
		t.Fatalf("counting tokens: %v", err)
	}
	if n != 0 {
		t.Errorf("refresh_tokens has %d rows after user delete, want 0", n)
	}

	if err := db.Users().Delete(ctx, user.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestAppendToken_MissingUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "a@x.com", "alice")
	if err := db.Users().Delete(ctx, user.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	err := db.Users().AppendToken(ctx, user.ID, "orphan")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("AppendToken() error = %v, want ErrNotFound", err)
	}

	var n int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM refresh_tokens`).Scan(&n); err != nil {
		t.Fatalf("counting tokens: %v", err)
	}
	if n != 0 {
		t.Errorf("refresh_tokens has %d rows, want 0", n)
	}
}

// =========================================================================
// REFRESH TOKEN LIST TESTS
// =========================================================================

func tokensOf(t *testing.T, db *DB, userID string) []string {
	t.Helper()
	user, err := db.Users().GetByID(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	return user.Tokens
}

func TestTokens_AppendKeepsOrder(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "a@x.com", "alice")

	for _, tok := range []string{"t1", "t2", "t3"} {
		if err := db.Users().AppendToken(ctx, user.ID, tok); err != nil {
			t.Fatalf("AppendToken(%s) error = %v", tok, err)
		}
	}

	got := tokensOf(t, db, user.ID)
	want := []string{"t1", "t2", "t3"}
	if len(got) != len(want) {
		t.Fatalf("Tokens = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Tokens[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTokens_ReplaceInPlace(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "a@x.com", "alice")
	db.Users().AppendToken(ctx, user.ID, "t1")
	db.Users().AppendToken(ctx, user.ID, "t2")

	ok, err := db.Users().ReplaceToken(ctx, user.ID, "t1", "t1b")
	if err != nil {
		t.Fatalf("ReplaceToken() error = %v", err)
	}
	if !ok {
		t.Fatal("ReplaceToken() = false, want true")
	}

	got := tokensOf(t, db, user.ID)
	if len(got) != 2 || got[0] != "t1b" || got[1] != "t2" {
		t.Errorf("Tokens = %v, want [t1b t2]", got)
	}

	// The old token is gone, so a second rotation of it matches nothing.
	ok, err = db.Users().ReplaceToken(ctx, user.ID, "t1", "t1c")
	if err != nil {
		t.Fatalf("second ReplaceToken() error = %v", err)
	}
	if ok {
		t.Error("second ReplaceToken() = true, want false")
	}
}

func TestTokens_ReplaceScopedToUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	alice := createTestUser(t, db, "a@x.com", "alice")
	bob := createTestUser(t, db, "b@x.com", "bob")
	db.Users().AppendToken(ctx, alice.ID, "alice-token")

	ok, err := db.Users().ReplaceToken(ctx, bob.ID, "alice-token", "stolen")
	if err != nil {
		t.Fatalf("ReplaceToken() error = %v", err)
	}
	if ok {
		t.Error("ReplaceToken() rotated another user's token")
	}
}

func TestTokens_RemoveAndClear(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "a@x.com", "alice")
	db.Users().AppendToken(ctx, user.ID, "t1")
	db.Users().AppendToken(ctx, user.ID, "t2")
	db.Users().AppendToken(ctx, user.ID, "t3")

	removed, err := db.Users().RemoveToken(ctx, user.ID, "t2")
	if err != nil || !removed {
		t.Fatalf("RemoveToken() = (%v, %v), want (true, nil)", removed, err)
	}
	removed, err = db.Users().RemoveToken(ctx, user.ID, "t2")
	if err != nil || removed {
		t.Errorf("second RemoveToken() = (%v, %v), want (false, nil)", removed, err)
	}
	if got := tokensOf(t, db, user.ID); len(got) != 2 {
		t.Errorf("Tokens = %v, want 2 entries", got)
	}

	if err := db.Users().ClearTokens(ctx, user.ID); err != nil {
		t.Fatalf("ClearTokens() error = %v", err)
	}
	if got := tokensOf(t, db, user.ID); len(got) != 0 {
		t.Errorf("Tokens after clear = %v, want empty", got)
	}
}
