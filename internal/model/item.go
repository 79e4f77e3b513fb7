package model

import "time"

// Item represents a single lost item moving through the pickup lifecycle.
type Item struct {
	ID            int64      `json:"id"`
	PhotoURL      string     `json:"photo_url"`
	DeviceName    string     `json:"device_name,omitempty"`
	Location      string     `json:"location,omitempty"`
	LockerID      *int64     `json:"locker_id,omitempty"`
	Description   string     `json:"description,omitempty"`
	Status        string     `json:"status"`
	RegisteredAt  time.Time  `json:"registered_at"`
	FoundAt       *time.Time `json:"found_at,omitempty"`
	FoundByUserID *int64     `json:"found_by_user_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Tags is populated by catalog queries (not always loaded).
	Tags []Tag `json:"tags,omitempty"`
}

// Item statuses. Persisted as text so the lifecycle is auditable in plain SQL.
const (
	ItemStatusLost     = "lost"
	ItemStatusStored   = "stored"
	ItemStatusReserved = "reserved"
	ItemStatusFound    = "found"
)
