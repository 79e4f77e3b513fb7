package model

import "time"

// Tag is a category label attached to items (many-to-many).
type Tag struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	LockerSlot *int64    `json:"locker_slot,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Confidence is the classifier's score for this tag on a specific item.
	// Only populated when the tag was loaded through the item join.
	Confidence *float64 `json:"confidence,omitempty"`
}
