package model

import "time"

// PickupCode is a single-use 6-digit token proving a claim. Rows are never
// deleted: a cancelled code keeps its reason forever and a used code stays as
// the audit record of the pickup.
type PickupCode struct {
	ID           int64      `json:"id"`
	Code         string     `json:"code"`
	ItemID       int64      `json:"item_id"`
	UserID       int64      `json:"user_id"`
	GeneratedAt  time.Time  `json:"generated_at"`
	ExpiresAt    time.Time  `json:"expires_at"`
	IsUsed       bool       `json:"is_used"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Active reports whether the code can still be presented at a kiosk:
// unused, uncancelled and unexpired at the given instant.
func (c *PickupCode) Active(now time.Time) bool {
	return !c.IsUsed && c.CancelledAt == nil && c.ExpiresAt.After(now)
}

// Expired reports whether the validity window has passed.
func (c *PickupCode) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
