package store

import (
	"context"
	"testing"

	"github.com/jongsul/lostfound/internal/db"
	"github.com/jongsul/lostfound/internal/model"
)

func TestCreateAndGetUser(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, err := CreateUser(ctx, database, "user@example.test", "hash", "Test User", "010-1234", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if user.Email != "user@example.test" {
		t.Errorf("expected email set, got %q", user.Email)
	}
	if user.Role != model.RoleUser {
		t.Errorf("expected role 'user', got %q", user.Role)
	}
	if user.ContactInfo != "010-1234" {
		t.Errorf("expected contact info set, got %q", user.ContactInfo)
	}

	byEmail, err := GetUserByEmail(ctx, database, "user@example.test")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if byEmail == nil || byEmail.ID != user.ID {
		t.Errorf("expected user %d by email, got %v", user.ID, byEmail)
	}
}

func TestDuplicateEmailRejected(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if _, err := CreateUser(ctx, database, "dup@example.test", "h", "A", "", model.RoleUser); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := CreateUser(ctx, database, "dup@example.test", "h", "B", "", model.RoleUser); err == nil {
		t.Error("expected unique constraint violation for duplicate email")
	}
}

func TestSoftDeleteFreesEmail(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "gone@example.test", "h", "A", "", model.RoleUser)
	if err := DeleteUser(ctx, database, user.ID); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}

	// Lookup by email no longer finds the deleted account.
	got, err := GetUserByEmail(ctx, database, "gone@example.test")
	if err != nil {
		t.Fatalf("GetUserByEmail: %v", err)
	}
	if got != nil {
		t.Error("expected deleted user hidden from email lookup")
	}

	// The address can be registered again.
	if _, err := CreateUser(ctx, database, "gone@example.test", "h", "B", "", model.RoleUser); err != nil {
		t.Errorf("expected email reusable after soft delete: %v", err)
	}

	// The old row stays fetchable by ID for audit.
	old, _ := GetUser(ctx, database, user.ID)
	if old == nil || old.DeletedAt == nil {
		t.Error("expected soft-deleted row still fetchable with deleted_at set")
	}
}

func TestUpdateUserPassword(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user, _ := CreateUser(ctx, database, "pw@example.test", "old", "A", "", model.RoleUser)
	if err := UpdateUserPassword(ctx, database, user.ID, "new"); err != nil {
		t.Fatalf("UpdateUserPassword: %v", err)
	}

	got, _ := GetUser(ctx, database, user.ID)
	if got.PasswordHash != "new" {
		t.Errorf("expected new hash, got %q", got.PasswordHash)
	}
}
