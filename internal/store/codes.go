package store

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/jongsul/lostfound/internal/model"
)

// CodeLength is the number of digits in a pickup code.
const CodeLength = 6

const codeSpace = 1_000_000 // 10^CodeLength

// RandomCode returns a uniformly random 6-digit code. Leading zeros are
// allowed: codes are formatted strings, never parsed back as integers.
func RandomCode() string {
	return fmt.Sprintf("%06d", rand.IntN(codeSpace))
}

// GenerateUniqueCode produces a code that does not collide with any row in
// pickup_codes, including used, cancelled and expired ones, so a code string
// is never ambiguous when audit-correlating later. A collision just retries;
// the code space is large relative to the number of rows, so the loop
// terminates quickly in practice. next defaults to RandomCode; tests inject
// a deterministic sequence.
func GenerateUniqueCode(ctx context.Context, q Querier, next func() string) (string, error) {
	if next == nil {
		next = RandomCode
	}

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		code := next()

		var exists int
		err := q.QueryRowContext(ctx,
			`SELECT 1 FROM pickup_codes WHERE code = ?`, code,
		).Scan(&exists)
		if err == sql.ErrNoRows {
			return code, nil
		}
		if err != nil {
			return "", fmt.Errorf("checking code collision: %w", err)
		}
	}
}

// IssueCode allocates a fresh unique code for the item and user, valid for
// ttl from now. It only writes through q; when q is a transaction the insert
// commits or rolls back together with the caller's item update.
func IssueCode(ctx context.Context, q Querier, itemID, userID int64, now time.Time, ttl time.Duration) (*model.PickupCode, error) {
	code, err := GenerateUniqueCode(ctx, q, nil)
	if err != nil {
		return nil, err
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO pickup_codes (code, item_id, user_id, generated_at, expires_at, is_used)
		 VALUES (?, ?, ?, ?, ?, 0)`,
		code, itemID, userID, now, now.Add(ttl),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting pickup code: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting pickup code id: %w", err)
	}

	return GetCode(ctx, q, id)
}

// GetCode returns a pickup code row by ID, or nil if absent.
func GetCode(ctx context.Context, q Querier, id int64) (*model.PickupCode, error) {
	row := q.QueryRowContext(ctx, `SELECT `+codeColumns+` FROM pickup_codes WHERE id = ?`, id)
	return scanCode(row)
}

// GetCodeByValue returns the row for a code string regardless of state, or
// nil. The kiosk close path uses it to accept an already-consumed code as
// the credential for re-locking the door.
func GetCodeByValue(ctx context.Context, q Querier, code string) (*model.PickupCode, error) {
	row := q.QueryRowContext(ctx, `SELECT `+codeColumns+` FROM pickup_codes WHERE code = ?`, code)
	return scanCode(row)
}

// FindActiveByCode resolves a presented code string to its row if the row is
// unused and unexpired. Expired, used, cancelled and absent all return nil:
// an unauthenticated kiosk caller must not be able to tell them apart.
func FindActiveByCode(ctx context.Context, q Querier, code string, now time.Time) (*model.PickupCode, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM pickup_codes WHERE code = ? AND is_used = 0`, code,
	)
	pc, err := scanCode(row)
	if err != nil || pc == nil {
		return nil, err
	}
	if pc.Expired(now) {
		return nil, nil
	}
	return pc, nil
}

// FindActiveForItem returns the most recent unused, uncancelled code row for
// the item, or nil. Expiry is not filtered here: an expired-but-live row is
// exactly what the reissue path needs to find.
func FindActiveForItem(ctx context.Context, q Querier, itemID int64) (*model.PickupCode, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM pickup_codes
		 WHERE item_id = ? AND is_used = 0 AND cancelled_at IS NULL
		 ORDER BY id DESC LIMIT 1`, itemID,
	)
	return scanCode(row)
}

// FindLatestForItem returns the most recent code row for the item regardless
// of state, or nil. Used for owner-facing audit views of picked-up items.
func FindLatestForItem(ctx context.Context, q Querier, itemID int64) (*model.PickupCode, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM pickup_codes
		 WHERE item_id = ? ORDER BY id DESC LIMIT 1`, itemID,
	)
	return scanCode(row)
}

// ReissueIfExpired overwrites the code value and validity window in place
// when the code has expired, keeping the same row, item and user. A still
// valid code is returned unchanged. The row id never changes, so at most one
// live row per item is preserved.
func ReissueIfExpired(ctx context.Context, q Querier, pc *model.PickupCode, now time.Time, ttl time.Duration) (*model.PickupCode, error) {
	if !pc.Expired(now) {
		return pc, nil
	}

	code, err := GenerateUniqueCode(ctx, q, nil)
	if err != nil {
		return nil, err
	}

	_, err = q.ExecContext(ctx,
		`UPDATE pickup_codes
		 SET code = ?, generated_at = ?, expires_at = ?, is_used = 0, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		code, now, now.Add(ttl), pc.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("reissuing pickup code: %w", err)
	}

	return GetCode(ctx, q, pc.ID)
}

// MarkCodeUsed consumes a code. Idempotent: marking an already-used code is
// a no-op, not an error. Rejecting a second genuine pickup is the lifecycle
// manager's job, one layer up.
func MarkCodeUsed(ctx context.Context, q Querier, id int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE pickup_codes SET is_used = 1, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id,
	)
	if err != nil {
		return fmt.Errorf("marking pickup code used: %w", err)
	}
	return nil
}

// CancelCode retires a code with a permanent reason. Cancellation sets
// is_used so the code drops out of kiosk resolution; cancelled_at being
// non-null is what distinguishes it from a genuine pickup.
func CancelCode(ctx context.Context, q Querier, id int64, reason string, now time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE pickup_codes
		 SET cancelled_at = ?, cancel_reason = ?, is_used = 1, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		now, reason, id,
	)
	if err != nil {
		return fmt.Errorf("cancelling pickup code: %w", err)
	}
	return nil
}

const codeColumns = `id, code, item_id, user_id, generated_at, expires_at, is_used, cancelled_at, cancel_reason, created_at, updated_at`

func scanCode(row *sql.Row) (*model.PickupCode, error) {
	pc := &model.PickupCode{}
	var cancelReason sql.NullString
	err := row.Scan(&pc.ID, &pc.Code, &pc.ItemID, &pc.UserID, &pc.GeneratedAt,
		&pc.ExpiresAt, &pc.IsUsed, &pc.CancelledAt, &cancelReason,
		&pc.CreatedAt, &pc.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning pickup code: %w", err)
	}
	pc.CancelReason = cancelReason.String
	return pc, nil
}
