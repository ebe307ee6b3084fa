package service

import (
	"context"
	"testing"

	"github.com/sakif/snapfeed/internal/apperror"
)

func TestUserService_UpdateProfile(t *testing.T) {
	f := newAuthFixture(t)
	svc := NewUserService(f.users, 0, testLogger())
	alice := f.register(t, "a@x.com", "pw")
	bob := f.register(t, "b@x.com", "pw")
	ctx := context.Background()

	_, err := svc.UpdateProfile(ctx, bob.ID, alice.ID, "pwned", "")
	assertErrIs(t, err, apperror.ErrForbidden)

	_, err = svc.UpdateProfile(ctx, alice.ID, alice.ID, bob.Username, "")
	assertErrIs(t, err, apperror.ErrConflict)

	_, err = svc.UpdateProfile(ctx, alice.ID, alice.ID, "", "")
	assertErrIs(t, err, apperror.ErrValidation)

	updated, err := svc.UpdateProfile(ctx, alice.ID, alice.ID, "alice", "https://pic/a.png")
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}
	if updated.Username != "alice" || updated.AvatarURL != "https://pic/a.png" {
		t.Errorf("updated = %+v", updated)
	}

	// Keeping your own name is not a conflict.
	if _, err := svc.UpdateProfile(ctx, alice.ID, alice.ID, "alice", ""); err != nil {
		t.Errorf("UpdateProfile() with unchanged name error = %v", err)
	}
}

func TestUserService_Author(t *testing.T) {
	f := newAuthFixture(t)
	svc := NewUserService(f.users, 0, testLogger())
	alice := f.register(t, "a@x.com", "pw")

	a, err := svc.Author(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("Author() error = %v", err)
	}
	if a.ID != alice.ID || a.Name != alice.Username {
		t.Errorf("Author() = %+v", a)
	}

	_, err = svc.Author(context.Background(), "deleted-user")
	assertErrIs(t, err, apperror.ErrUnauthenticated)
}

func TestUserService_DeleteSelfOnly(t *testing.T) {
	f := newAuthFixture(t)
	svc := NewUserService(f.users, 0, testLogger())
	alice := f.register(t, "a@x.com", "pw")

	assertErrIs(t, svc.Delete(context.Background(), "someone", alice.ID), apperror.ErrForbidden)

	if err := svc.Delete(context.Background(), alice.ID, alice.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	_, err := svc.GetByID(context.Background(), alice.ID)
	assertErrIs(t, err, apperror.ErrNotFound)
}
