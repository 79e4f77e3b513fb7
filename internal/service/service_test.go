package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jongsul/lostfound/internal/db"
	"github.com/jongsul/lostfound/internal/model"
	"github.com/jongsul/lostfound/internal/store"
)

// fakeLocker records dispatched commands and can be told to fail.
type fakeLocker struct {
	mu     sync.Mutex
	opens  []string
	closes []string
	err    error
}

func (f *fakeLocker) Open(_ context.Context, deviceName string, lockerID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.opens = append(f.opens, deviceName)
	return nil
}

func (f *fakeLocker) Close(_ context.Context, deviceName string, lockerID int64, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.closes = append(f.closes, deviceName)
	return nil
}

type fixture struct {
	db     *sql.DB
	svc    *Service
	locker *fakeLocker
	user   *model.User
	other  *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	locker := &fakeLocker{}
	svc := New(database, locker, Config{})

	ctx := context.Background()
	user, err := store.CreateUser(ctx, database, "owner@example.test", "hash", "Owner", "", model.RoleUser)
	require.NoError(t, err)
	other, err := store.CreateUser(ctx, database, "other@example.test", "hash", "Other", "", model.RoleUser)
	require.NoError(t, err)

	return &fixture{db: database, svc: svc, locker: locker, user: user, other: other}
}

func (f *fixture) storedItem(t *testing.T) *model.Item {
	t.Helper()
	lockerID := int64(3)
	item, err := store.CreateItem(context.Background(), f.db, store.CreateItemParams{
		Description: "black umbrella",
		Location:    "library entrance",
		DeviceName:  "kiosk-1",
		LockerID:    &lockerID,
	})
	require.NoError(t, err)
	return item
}

func TestClaimIssuesCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	claimed, code, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)

	assert.Equal(t, model.ItemStatusReserved, claimed.Status)
	require.NotNil(t, claimed.FoundByUserID)
	assert.Equal(t, f.user.ID, *claimed.FoundByUserID)

	assert.Len(t, code.Code, store.CodeLength)
	assert.False(t, code.IsUsed)
	assert.True(t, code.ExpiresAt.After(time.Now().Add(6*24*time.Hour)))
}

func TestClaimMissingItem(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.Claim(context.Background(), 9999, f.user.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimWrongStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, _, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)

	_, _, err = f.svc.Claim(ctx, item.ID, f.other.ID)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestConcurrentClaimsOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	const claimers = 8
	errs := make(chan error, claimers)
	var wg sync.WaitGroup
	for i := range claimers {
		wg.Add(1)
		userID := f.user.ID
		if i%2 == 1 {
			userID = f.other.ID
		}
		go func() {
			defer wg.Done()
			_, _, err := f.svc.Claim(ctx, item.ID, userID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			assert.ErrorIs(t, err, ErrAlreadyClaimed)
		}
	}
	assert.Equal(t, 1, wins, "exactly one concurrent claim must win")
}

func TestPickupRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, code, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)

	result, err := f.svc.Pickup(ctx, code.Code)
	require.NoError(t, err)
	require.NoError(t, result.DispatchErr)

	assert.Equal(t, model.ItemStatusFound, result.Item.Status)
	assert.NotNil(t, result.Item.FoundAt)
	require.NotNil(t, result.Item.FoundByUserID)
	assert.Equal(t, f.user.ID, *result.Item.FoundByUserID)

	consumed, err := store.GetCode(ctx, f.db, code.ID)
	require.NoError(t, err)
	assert.True(t, consumed.IsUsed)

	assert.Equal(t, []string{"kiosk-1"}, f.locker.opens)
}

func TestPickupSameCodeTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, code, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)

	_, err = f.svc.Pickup(ctx, code.Code)
	require.NoError(t, err)

	// The consumed code no longer resolves; the caller cannot tell it apart
	// from a code that never existed.
	_, err = f.svc.Pickup(ctx, code.Code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestPickupUnknownCode(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Pickup(context.Background(), "000000")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestPickupExpiredCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, code, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)

	// Jump past the validity window.
	f.svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	_, err = f.svc.Pickup(ctx, code.Code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestPickupFoundItemWithLiveCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, code, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)

	// Force the item found while leaving the code live. The lifecycle never
	// produces this on its own; the pickup path must still refuse to hand
	// out an already-found item.
	require.NoError(t, store.MarkItemFound(ctx, f.db, item.ID, time.Now()))

	_, err = f.svc.Pickup(ctx, code.Code)
	assert.ErrorIs(t, err, ErrAlreadyPickedUp)
}

func TestPickupSurfacesDispatchFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, code, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)

	f.locker.err = context.DeadlineExceeded

	result, err := f.svc.Pickup(ctx, code.Code)
	require.NoError(t, err, "dispatch failure must not fail the pickup")
	assert.Error(t, result.DispatchErr)

	// The state transition is durable regardless.
	got, err := store.GetItem(ctx, f.db, item.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusFound, got.Status)
}

func TestCloseLockerAfterPickup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, code, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)

	// Before pickup the code is not a close credential.
	_, err = f.svc.CloseLocker(ctx, code.Code)
	assert.ErrorIs(t, err, ErrInvalidCode)

	_, err = f.svc.Pickup(ctx, code.Code)
	require.NoError(t, err)

	_, err = f.svc.CloseLocker(ctx, code.Code)
	require.NoError(t, err)
	assert.Equal(t, []string{"kiosk-1"}, f.locker.closes)
}

func TestCancelReleasesItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, code, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)

	released, err := f.svc.Cancel(ctx, item.ID, f.user.ID, "claimed by mistake")
	require.NoError(t, err)

	assert.Equal(t, model.ItemStatusStored, released.Status)
	assert.Nil(t, released.FoundByUserID)

	cancelled, err := store.GetCode(ctx, f.db, code.ID)
	require.NoError(t, err)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, "claimed by mistake", cancelled.CancelReason)

	// The cancelled code is dead at the kiosk.
	_, err = f.svc.Pickup(ctx, code.Code)
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestCancelTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, _, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, item.ID, f.user.ID, "wrong item")
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, item.ID, f.user.ID, "wrong item")
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
}

func TestCancelAfterPickup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, code, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)
	_, err = f.svc.Pickup(ctx, code.Code)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, item.ID, f.user.ID, "changed my mind")
	assert.ErrorIs(t, err, ErrAlreadyUsed)
}

func TestCancelByNonOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, _, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, item.ID, f.other.ID, "not mine")
	assert.ErrorIs(t, err, ErrNotReservedByCaller)
}

func TestCancelUnreservedItem(t *testing.T) {
	f := newFixture(t)
	item := f.storedItem(t)

	_, err := f.svc.Cancel(context.Background(), item.ID, f.user.ID, "nothing to cancel")
	assert.ErrorIs(t, err, ErrNotReserved)
}

func TestReclaimAfterCancelGetsFreshCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, first, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, item.ID, f.user.ID, "too far away")
	require.NoError(t, err)

	_, second, err := f.svc.Claim(ctx, item.ID, f.other.ID)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID, "re-claim must create a new code row")
	assert.NotEqual(t, first.Code, second.Code)

	// The old row keeps its cancellation record.
	old, err := store.GetCode(ctx, f.db, first.ID)
	require.NoError(t, err)
	assert.NotNil(t, old.CancelledAt)
}

func TestDetailWithCodeOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, code, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)

	got, pc, err := f.svc.DetailWithCode(ctx, item.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, code.Code, pc.Code)

	_, _, err = f.svc.DetailWithCode(ctx, item.ID, f.other.ID)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestDetailReissuesExpiredCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, code, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)

	f.svc.now = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }

	_, fresh, err := f.svc.DetailWithCode(ctx, item.ID, f.user.ID)
	require.NoError(t, err)

	assert.Equal(t, code.ID, fresh.ID, "reissue must keep the row")
	assert.NotEqual(t, code.Code, fresh.Code)
	assert.False(t, fresh.Expired(f.svc.now()))

	// The reissued code works at the kiosk, the old value does not.
	_, err = f.svc.Pickup(ctx, code.Code)
	assert.ErrorIs(t, err, ErrInvalidCode)
	_, err = f.svc.Pickup(ctx, fresh.Code)
	require.NoError(t, err)
}

func TestDetailFoundItemReturnsConsumedCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.storedItem(t)

	_, code, err := f.svc.Claim(ctx, item.ID, f.user.ID)
	require.NoError(t, err)
	_, err = f.svc.Pickup(ctx, code.Code)
	require.NoError(t, err)

	got, pc, err := f.svc.DetailWithCode(ctx, item.ID, f.user.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusFound, got.Status)
	require.NotNil(t, pc)
	assert.Equal(t, code.Code, pc.Code)
	assert.True(t, pc.IsUsed)
}

func TestClaimFromLost(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	svc := New(database, &fakeLocker{}, Config{ClaimFrom: model.ItemStatusLost})

	user, err := store.CreateUser(ctx, database, "lost@example.test", "hash", "U", "", model.RoleUser)
	require.NoError(t, err)

	lost, err := store.CreateItem(ctx, database, store.CreateItemParams{
		Description: "wallet", Location: "bus stop", Status: model.ItemStatusLost,
	})
	require.NoError(t, err)
	stored, err := store.CreateItem(ctx, database, store.CreateItemParams{
		Description: "keys", Location: "park",
	})
	require.NoError(t, err)

	_, _, err = svc.Claim(ctx, lost.ID, user.ID)
	require.NoError(t, err)

	// When claim_from is lost, stored items are not claimable.
	_, _, err = svc.Claim(ctx, stored.ID, user.ID)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestRegisterItemWithCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	conf := 0.87
	item, err := f.svc.RegisterItem(ctx, store.CreateItemParams{
		Description: "blue backpack",
		Location:    "cafeteria",
	}, "bag", &conf)
	require.NoError(t, err)

	require.Len(t, item.Tags, 1)
	assert.Equal(t, "bag", item.Tags[0].Name)
	require.NotNil(t, item.Tags[0].Confidence)
	assert.Equal(t, conf, *item.Tags[0].Confidence)

	// A second registration with the same category reuses the tag.
	again, err := f.svc.RegisterItem(ctx, store.CreateItemParams{
		Description: "leather bag",
		Location:    "gym",
	}, "bag", nil)
	require.NoError(t, err)
	require.Len(t, again.Tags, 1)
	assert.Equal(t, item.Tags[0].ID, again.Tags[0].ID)
}
