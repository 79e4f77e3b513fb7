package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jongsul/lostfound/internal/db"
	"github.com/jongsul/lostfound/internal/model"
)

func seedUser(t *testing.T, database *sql.DB, email string) *model.User {
	t.Helper()
	user, err := CreateUser(context.Background(), database, email, "hash", "Test User", "", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func seedItem(t *testing.T, database *sql.DB, status string) *model.Item {
	t.Helper()
	item, err := CreateItem(context.Background(), database, CreateItemParams{
		Description: "black umbrella",
		Location:    "library",
		Status:      status,
	})
	if err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	return item
}

func TestRandomCodeFormat(t *testing.T) {
	for range 100 {
		code := RandomCode()
		if len(code) != CodeLength {
			t.Fatalf("expected %d digits, got %q", CodeLength, code)
		}
		for _, c := range code {
			if c < '0' || c > '9' {
				t.Fatalf("non-digit character in code %q", code)
			}
		}
	}
}

func TestGenerateUniqueCodeRetriesOnCollision(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := seedUser(t, database, "a@example.test")
	now := time.Now().UTC()

	// Occupy three code values, then force the generator to emit exactly
	// those before a free one.
	taken := []string{"111111", "222222", "333333"}
	for _, code := range taken {
		item := seedItem(t, database, model.ItemStatusStored)
		_, err := database.ExecContext(ctx,
			`INSERT INTO pickup_codes (code, item_id, user_id, generated_at, expires_at, is_used)
			 VALUES (?, ?, ?, ?, ?, 0)`,
			code, item.ID, user.ID, now, now.Add(time.Hour))
		if err != nil {
			t.Fatalf("seeding code %s: %v", code, err)
		}
	}

	sequence := append(append([]string{}, taken...), "444444")
	i := 0
	next := func() string {
		code := sequence[i]
		i++
		return code
	}

	code, err := GenerateUniqueCode(ctx, database, next)
	if err != nil {
		t.Fatalf("GenerateUniqueCode: %v", err)
	}
	if code != "444444" {
		t.Errorf("expected 444444 after three collisions, got %q", code)
	}
	if i != 4 {
		t.Errorf("expected 4 draws, got %d", i)
	}
}

func TestIssueAndFindActiveByCode(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := seedUser(t, database, "b@example.test")
	item := seedItem(t, database, model.ItemStatusReserved)
	now := time.Now().UTC()

	pc, err := IssueCode(ctx, database, item.ID, user.ID, now, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("IssueCode: %v", err)
	}
	if pc.IsUsed {
		t.Error("fresh code should not be used")
	}
	if !pc.ExpiresAt.After(now.Add(6 * 24 * time.Hour)) {
		t.Errorf("expected roughly 7 day expiry, got %v", pc.ExpiresAt)
	}

	found, err := FindActiveByCode(ctx, database, pc.Code, now)
	if err != nil {
		t.Fatalf("FindActiveByCode: %v", err)
	}
	if found == nil || found.ID != pc.ID {
		t.Fatalf("expected to resolve issued code, got %v", found)
	}

	// Unknown code resolves to nothing.
	missing, err := FindActiveByCode(ctx, database, "000000", now)
	if err != nil {
		t.Fatalf("FindActiveByCode unknown: %v", err)
	}
	if missing != nil {
		t.Error("unknown code should resolve to nil")
	}
}

func TestFindActiveByCodeExcludesUsedAndExpired(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := seedUser(t, database, "c@example.test")
	now := time.Now().UTC()

	item1 := seedItem(t, database, model.ItemStatusReserved)
	used, _ := IssueCode(ctx, database, item1.ID, user.ID, now, time.Hour)
	if err := MarkCodeUsed(ctx, database, used.ID); err != nil {
		t.Fatalf("MarkCodeUsed: %v", err)
	}

	item2 := seedItem(t, database, model.ItemStatusReserved)
	expired, _ := IssueCode(ctx, database, item2.ID, user.ID, now.Add(-2*time.Hour), time.Hour)

	for _, code := range []string{used.Code, expired.Code} {
		got, err := FindActiveByCode(ctx, database, code, now)
		if err != nil {
			t.Fatalf("FindActiveByCode: %v", err)
		}
		if got != nil {
			t.Errorf("code %q should be inactive", code)
		}
	}
}

func TestMarkCodeUsedIdempotent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := seedUser(t, database, "d@example.test")
	item := seedItem(t, database, model.ItemStatusReserved)
	now := time.Now().UTC()

	pc, _ := IssueCode(ctx, database, item.ID, user.ID, now, time.Hour)

	if err := MarkCodeUsed(ctx, database, pc.ID); err != nil {
		t.Fatalf("first MarkCodeUsed: %v", err)
	}
	if err := MarkCodeUsed(ctx, database, pc.ID); err != nil {
		t.Fatalf("second MarkCodeUsed: %v", err)
	}

	got, _ := GetCode(ctx, database, pc.ID)
	if !got.IsUsed {
		t.Error("code should remain used")
	}
}

func TestReissueIfExpiredKeepsRow(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := seedUser(t, database, "e@example.test")
	item := seedItem(t, database, model.ItemStatusReserved)
	now := time.Now().UTC()

	pc, _ := IssueCode(ctx, database, item.ID, user.ID, now.Add(-48*time.Hour), time.Hour)
	if !pc.Expired(now) {
		t.Fatal("fixture code should be expired")
	}
	oldCode := pc.Code

	fresh, err := ReissueIfExpired(ctx, database, pc, now, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("ReissueIfExpired: %v", err)
	}
	if fresh.ID != pc.ID {
		t.Errorf("reissue must keep the row, got id %d want %d", fresh.ID, pc.ID)
	}
	if fresh.Code == oldCode {
		t.Error("reissue should assign a new code value")
	}
	if fresh.Expired(now) {
		t.Error("reissued code should be live")
	}

	// A live code passes through untouched.
	same, err := ReissueIfExpired(ctx, database, fresh, now, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("ReissueIfExpired live: %v", err)
	}
	if same.Code != fresh.Code {
		t.Error("live code must not be rotated")
	}
}

func TestCancelCodeRetainsReason(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := seedUser(t, database, "f@example.test")
	item := seedItem(t, database, model.ItemStatusReserved)
	now := time.Now().UTC()

	pc, _ := IssueCode(ctx, database, item.ID, user.ID, now, time.Hour)

	if err := CancelCode(ctx, database, pc.ID, "claimed by mistake", now); err != nil {
		t.Fatalf("CancelCode: %v", err)
	}

	got, _ := GetCode(ctx, database, pc.ID)
	if got.CancelledAt == nil {
		t.Fatal("cancelled_at should be set")
	}
	if got.CancelReason != "claimed by mistake" {
		t.Errorf("expected reason retained, got %q", got.CancelReason)
	}
	if !got.IsUsed {
		t.Error("cancelled code should be out of circulation")
	}

	// Cancelled codes are invisible to the kiosk.
	resolved, _ := FindActiveByCode(ctx, database, got.Code, now)
	if resolved != nil {
		t.Error("cancelled code should not resolve")
	}
}

func TestCodeUniqueAcrossAllStates(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	user := seedUser(t, database, "g@example.test")
	item := seedItem(t, database, model.ItemStatusReserved)
	now := time.Now().UTC()

	pc, _ := IssueCode(ctx, database, item.ID, user.ID, now, time.Hour)
	if err := MarkCodeUsed(ctx, database, pc.ID); err != nil {
		t.Fatalf("MarkCodeUsed: %v", err)
	}

	// Even a consumed code keeps its value reserved.
	other := seedItem(t, database, model.ItemStatusReserved)
	_, err := database.ExecContext(ctx,
		`INSERT INTO pickup_codes (code, item_id, user_id, generated_at, expires_at, is_used)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		pc.Code, other.ID, user.ID, now, now.Add(time.Hour))
	if err == nil {
		t.Fatal("expected unique constraint violation on duplicate code")
	}
}
