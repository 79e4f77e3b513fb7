package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jongsul/lostfound/internal/model"
)

// CreateTag creates a new tag. Fails if the name is already taken.
func CreateTag(ctx context.Context, q Querier, name string, lockerSlot *int64) (*model.Tag, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO tags (name, locker_slot) VALUES (?, ?)`, name, lockerSlot,
	)
	if err != nil {
		return nil, fmt.Errorf("creating tag: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting tag id: %w", err)
	}

	return GetTag(ctx, q, id)
}

// GetTag returns a tag by ID, or nil if absent.
func GetTag(ctx context.Context, q Querier, id int64) (*model.Tag, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, name, locker_slot, created_at, updated_at FROM tags WHERE id = ?`, id,
	)
	return scanTag(row)
}

// GetTagByName returns a tag by its unique name, or nil if absent.
func GetTagByName(ctx context.Context, q Querier, name string) (*model.Tag, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, name, locker_slot, created_at, updated_at FROM tags WHERE name = ?`, name,
	)
	return scanTag(row)
}

// GetOrCreateTag returns the tag with the given name, creating it if needed.
// INSERT OR IGNORE + re-SELECT keeps this safe under concurrent ingest.
func GetOrCreateTag(ctx context.Context, q Querier, name string) (*model.Tag, error) {
	_, err := q.ExecContext(ctx, `INSERT OR IGNORE INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("creating tag: %w", err)
	}
	tag, err := GetTagByName(ctx, q, name)
	if err != nil {
		return nil, err
	}
	if tag == nil {
		return nil, fmt.Errorf("tag %q vanished after insert", name)
	}
	return tag, nil
}

// ListTags returns all tags ordered by name.
func ListTags(ctx context.Context, q Querier) ([]model.Tag, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, locker_slot, created_at, updated_at FROM tags ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tags: %w", err)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.LockerSlot, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// UpdateTag renames a tag and sets its locker slot.
func UpdateTag(ctx context.Context, q Querier, id int64, name string, lockerSlot *int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE tags SET name = ?, locker_slot = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, lockerSlot, id,
	)
	if err != nil {
		return fmt.Errorf("updating tag: %w", err)
	}
	return nil
}

// DeleteTag removes a tag; item links go with it via FK cascade.
func DeleteTag(ctx context.Context, q Querier, id int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting tag: %w", err)
	}
	return nil
}

func scanTag(row *sql.Row) (*model.Tag, error) {
	t := &model.Tag{}
	err := row.Scan(&t.ID, &t.Name, &t.LockerSlot, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning tag: %w", err)
	}
	return t, nil
}
