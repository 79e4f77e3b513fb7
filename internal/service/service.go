// Package service implements the item lifecycle state machine: claiming a
// stored item, picking it up with a single-use code, and cancelling a
// reservation. Every mutating operation runs in exactly one database
// transaction; the locker dispatcher is invoked only after a successful
// commit, so a dispatch failure can never roll back a state transition and a
// rollback can never open a door.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jongsul/lostfound/internal/model"
	"github.com/jongsul/lostfound/internal/store"
)

// LockerDispatcher sends fire-and-forget commands to the physical locker
// network. Implementations carry their own short timeout; the state machine
// never models "command acknowledged".
type LockerDispatcher interface {
	Open(ctx context.Context, deviceName string, lockerID int64) error
	Close(ctx context.Context, deviceName string, lockerID int64, code string) error
}

// DefaultCodeTTL is the pickup code validity window.
const DefaultCodeTTL = 7 * 24 * time.Hour

// Config holds the deployment-specific lifecycle knobs.
type Config struct {
	// ClaimFrom is the one item status a claim is accepted from:
	// model.ItemStatusStored for the kiosk-ingestion flow (default) or
	// model.ItemStatusLost for the self-report flow. Never both.
	ClaimFrom string

	// CodeTTL is the pickup code validity window (default 7 days).
	CodeTTL time.Duration
}

// Service is the item lifecycle manager.
type Service struct {
	db     *sql.DB
	locker LockerDispatcher
	cfg    Config

	// now is swapped out in tests.
	now func() time.Time
}

// New creates a lifecycle service around the database and locker channel.
func New(db *sql.DB, locker LockerDispatcher, cfg Config) *Service {
	if cfg.ClaimFrom == "" {
		cfg.ClaimFrom = model.ItemStatusStored
	}
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = DefaultCodeTTL
	}
	return &Service{db: db, locker: locker, cfg: cfg, now: time.Now}
}

// Claim reserves an item for the user and issues a pickup code. The status
// transition and the code insert commit atomically; under concurrent claims
// on the same item exactly one caller wins and the rest observe
// ErrAlreadyClaimed.
func (s *Service) Claim(ctx context.Context, itemID, userID int64) (*model.Item, *model.PickupCode, error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := store.GetItem(ctx, tx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, ErrNotFound
	}
	if item.Status != s.cfg.ClaimFrom {
		return nil, nil, ErrAlreadyClaimed
	}

	// Guarded UPDATE: loses against a concurrent claim that committed first.
	reserved, err := store.ReserveItem(ctx, tx, itemID, userID, s.cfg.ClaimFrom)
	if err != nil {
		return nil, nil, err
	}
	if !reserved {
		return nil, nil, ErrAlreadyClaimed
	}

	code, err := store.IssueCode(ctx, tx, itemID, userID, now, s.cfg.CodeTTL)
	if err != nil {
		return nil, nil, err
	}

	item, err = store.GetItemWithTags(ctx, tx, itemID)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing claim: %w", err)
	}

	slog.Info("item claimed", "item", itemID, "user", userID, "expires", code.ExpiresAt)
	return item, code, nil
}

// PickupResult is the outcome of a successful pickup. DispatchErr is set
// when the post-commit locker command failed; the state transition is
// already durable, so callers surface it as a warning, never an error.
type PickupResult struct {
	Item        *model.Item
	DispatchErr error
}

// Pickup consumes a presented code and hands the item over. Possession of
// the code is the sole credential on this path.
func (s *Service) Pickup(ctx context.Context, code string) (*PickupResult, error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	pc, err := store.FindActiveByCode(ctx, tx, code, now)
	if err != nil {
		return nil, err
	}
	if pc == nil {
		return nil, ErrInvalidCode
	}

	item, err := store.GetItemWithTags(ctx, tx, pc.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrInvalidCode
	}
	if item.Status == model.ItemStatusFound {
		return nil, ErrAlreadyPickedUp
	}
	if item.Status != model.ItemStatusReserved {
		return nil, ErrNotReserved
	}

	if err := store.MarkItemFound(ctx, tx, item.ID, now); err != nil {
		return nil, err
	}
	if err := store.MarkCodeUsed(ctx, tx, pc.ID); err != nil {
		return nil, err
	}

	item, err = store.GetItemWithTags(ctx, tx, item.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing pickup: %w", err)
	}

	slog.Info("item picked up", "item", item.ID, "code_id", pc.ID)

	result := &PickupResult{Item: item}
	if item.DeviceName != "" && item.LockerID != nil {
		if err := s.locker.Open(ctx, item.DeviceName, *item.LockerID); err != nil {
			slog.Warn("locker open command failed", "item", item.ID,
				"device", item.DeviceName, "locker", *item.LockerID, "error", err)
			result.DispatchErr = err
		}
	}
	return result, nil
}

// CloseLocker re-locks the locker for an item that was just picked up. The
// consumed pickup code is the credential; cancelled or unknown codes are
// rejected as invalid.
func (s *Service) CloseLocker(ctx context.Context, code string) (*model.Item, error) {
	pc, err := store.GetCodeByValue(ctx, s.db, code)
	if err != nil {
		return nil, err
	}
	if pc == nil || pc.CancelledAt != nil || !pc.IsUsed {
		return nil, ErrInvalidCode
	}

	item, err := store.GetItem(ctx, s.db, pc.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil || item.Status != model.ItemStatusFound {
		return nil, ErrInvalidCode
	}
	if item.DeviceName == "" || item.LockerID == nil {
		return item, nil
	}

	if err := s.locker.Close(ctx, item.DeviceName, *item.LockerID, code); err != nil {
		return nil, fmt.Errorf("sending close command: %w", err)
	}
	return item, nil
}

// Cancel reverses a reservation: the code is retired with a permanent
// reason (never deleted, never reactivated) and the item returns to stored.
func (s *Service) Cancel(ctx context.Context, itemID, userID int64, reason string) (*model.Item, error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := store.GetItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, ErrNotFound
	}

	if item.Status != model.ItemStatusReserved {
		// Distinguish "already cancelled" and "already picked up" from a
		// plain wrong-state call by looking at the newest code row.
		latest, err := store.FindLatestForItem(ctx, tx, itemID)
		if err != nil {
			return nil, err
		}
		if latest != nil && latest.CancelledAt != nil {
			return nil, ErrAlreadyCancelled
		}
		if latest != nil && latest.IsUsed {
			return nil, ErrAlreadyUsed
		}
		return nil, ErrNotReserved
	}

	if item.FoundByUserID == nil || *item.FoundByUserID != userID {
		return nil, ErrNotReservedByCaller
	}

	pc, err := store.FindActiveForItem(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}
	if pc == nil {
		// Reserved item with no live code row: a prior bug, not a user error.
		return nil, ErrCodeNotFound
	}

	if err := store.CancelCode(ctx, tx, pc.ID, reason, now); err != nil {
		return nil, err
	}
	if err := store.ReleaseItem(ctx, tx, itemID, model.ItemStatusStored); err != nil {
		return nil, err
	}

	item, err = store.GetItemWithTags(ctx, tx, itemID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing cancel: %w", err)
	}

	slog.Info("reservation cancelled", "item", itemID, "user", userID, "reason", reason)
	return item, nil
}

// DetailWithCode returns an item together with its pickup code for the
// owning user, transparently reissuing the code in place when it expired
// while the item is still reserved. For found items the consumed code row is
// returned as the audit record.
func (s *Service) DetailWithCode(ctx context.Context, itemID, userID int64) (*model.Item, *model.PickupCode, error) {
	now := s.now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := store.GetItemWithTags(ctx, tx, itemID)
	if err != nil {
		return nil, nil, err
	}
	if item == nil {
		return nil, nil, ErrNotFound
	}
	if item.FoundByUserID == nil || *item.FoundByUserID != userID {
		return nil, nil, ErrForbidden
	}

	var pc *model.PickupCode
	switch item.Status {
	case model.ItemStatusReserved:
		pc, err = store.FindActiveForItem(ctx, tx, itemID)
		if err != nil {
			return nil, nil, err
		}
		if pc == nil {
			return nil, nil, ErrCodeNotFound
		}
		if pc.Expired(now) {
			pc, err = store.ReissueIfExpired(ctx, tx, pc, now, s.cfg.CodeTTL)
			if err != nil {
				return nil, nil, err
			}
			slog.Info("pickup code reissued", "item", itemID, "code_id", pc.ID,
				"expires", pc.ExpiresAt)
		}
	case model.ItemStatusFound:
		pc, err = store.FindLatestForItem(ctx, tx, itemID)
		if err != nil {
			return nil, nil, err
		}
		if pc == nil {
			return nil, nil, ErrCodeNotFound
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing detail: %w", err)
	}

	return item, pc, nil
}

// RegisterItem creates an item, optionally tagging it with a category from
// the image classifier. Manual admin registration and the ingest pipeline
// both funnel through here so the item and its tag link commit atomically.
func (s *Service) RegisterItem(ctx context.Context, p store.CreateItemParams, category string, confidence *float64) (*model.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if category != "" {
		tag, err := store.GetOrCreateTag(ctx, tx, category)
		if err != nil {
			return nil, err
		}
		p.Tags = append(p.Tags, store.ItemTagRef{TagID: tag.ID, Confidence: confidence})
	}

	item, err := store.CreateItem(ctx, tx, p)
	if err != nil {
		return nil, err
	}

	item, err = store.GetItemWithTags(ctx, tx, item.ID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item registration: %w", err)
	}

	slog.Info("item registered", "item", item.ID, "device", item.DeviceName,
		"status", item.Status, "category", category)
	return item, nil
}
