package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jongsul/lostfound/internal/model"
)

// ItemTagRef attaches an existing tag to an item with an optional
// classifier confidence.
type ItemTagRef struct {
	TagID      int64
	Confidence *float64
}

// CreateItemParams holds the fields for registering a new item.
type CreateItemParams struct {
	PhotoURL    string
	DeviceName  string
	Location    string
	LockerID    *int64
	Description string
	Status      string
	Tags        []ItemTagRef
}

// CreateItem registers a new item with its tag links.
func CreateItem(ctx context.Context, q Querier, p CreateItemParams) (*model.Item, error) {
	if p.Status == "" {
		p.Status = model.ItemStatusStored
	}

	result, err := q.ExecContext(ctx,
		`INSERT INTO items (photo_url, device_name, location, locker_id, description, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.PhotoURL, p.DeviceName, p.Location, p.LockerID, p.Description, p.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting item id: %w", err)
	}

	for _, ref := range p.Tags {
		_, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO item_tags (item_id, tag_id, confidence) VALUES (?, ?, ?)`,
			id, ref.TagID, ref.Confidence,
		)
		if err != nil {
			return nil, fmt.Errorf("linking tag %d: %w", ref.TagID, err)
		}
	}

	return GetItem(ctx, q, id)
}

// GetItem returns an item by ID, or nil if absent.
func GetItem(ctx context.Context, q Querier, id int64) (*model.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	return scanItemRow(row)
}

// GetItemWithTags returns an item and its tags, or nil if absent.
func GetItemWithTags(ctx context.Context, q Querier, id int64) (*model.Item, error) {
	item, err := GetItem(ctx, q, id)
	if err != nil || item == nil {
		return item, err
	}
	if err := loadTags(ctx, q, []*model.Item{item}); err != nil {
		return nil, err
	}
	return item, nil
}

// SearchItems returns items with their tags, optionally filtered by a
// free-text match over description/location and by a tag-id set (items
// matching any of the tags). Tags are loaded in a second query so the join
// can never duplicate item rows.
func SearchItems(ctx context.Context, q Querier, text string, tagIDs []int64) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE 1=1`
	var args []any

	if text != "" {
		query += ` AND (description LIKE ? OR location LIKE ?)`
		pattern := "%" + text + "%"
		args = append(args, pattern, pattern)
	}
	if len(tagIDs) > 0 {
		query += ` AND id IN (SELECT item_id FROM item_tags WHERE tag_id IN (` +
			placeholders(len(tagIDs)) + `))`
		for _, id := range tagIDs {
			args = append(args, id)
		}
	}

	query += ` ORDER BY registered_at DESC, id DESC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching items: %w", err)
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}

	refs := make([]*model.Item, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	if err := loadTags(ctx, q, refs); err != nil {
		return nil, err
	}
	return items, nil
}

// ListItemsByUser returns the items currently reserved or picked up by the
// user, newest first, with tags.
func ListItemsByUser(ctx context.Context, q Querier, userID int64) ([]model.Item, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE found_by_user_id = ? ORDER BY updated_at DESC, id DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items by user: %w", err)
	}
	defer rows.Close()

	items, err := scanItems(rows)
	if err != nil {
		return nil, err
	}

	refs := make([]*model.Item, len(items))
	for i := range items {
		refs[i] = &items[i]
	}
	if err := loadTags(ctx, q, refs); err != nil {
		return nil, err
	}
	return items, nil
}

// ReserveItem transitions an item from the given source status to reserved
// and records the claiming user. The guarded UPDATE is the status-machine
// lock: under concurrent claims only one statement finds the row still in
// fromStatus, so exactly one caller observes reserved=true.
func ReserveItem(ctx context.Context, q Querier, itemID, userID int64, fromStatus string) (bool, error) {
	result, err := q.ExecContext(ctx,
		`UPDATE items
		 SET status = ?, found_by_user_id = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		model.ItemStatusReserved, userID, itemID, fromStatus,
	)
	if err != nil {
		return false, fmt.Errorf("reserving item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserving item: %w", err)
	}
	return n == 1, nil
}

// MarkItemFound transitions a reserved item to found at the given instant.
func MarkItemFound(ctx context.Context, q Querier, itemID int64, now time.Time) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items SET status = ?, found_at = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		model.ItemStatusFound, now, itemID,
	)
	if err != nil {
		return fmt.Errorf("marking item found: %w", err)
	}
	return nil
}

// ReleaseItem reverses a reservation: the item returns to the given status
// and loses its claimant and found timestamp.
func ReleaseItem(ctx context.Context, q Querier, itemID int64, toStatus string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE items
		 SET status = ?, found_by_user_id = NULL, found_at = NULL, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		toStatus, itemID,
	)
	if err != nil {
		return fmt.Errorf("releasing item: %w", err)
	}
	return nil
}

// DeleteItemsByDevice removes all items registered by the given device along
// with their pickup codes and tag links (FK cascade). Only the dev fixture
// purge uses this; production items are never deleted.
func DeleteItemsByDevice(ctx context.Context, q Querier, deviceName string) (int64, error) {
	result, err := q.ExecContext(ctx,
		`DELETE FROM items WHERE device_name = ?`, deviceName,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting items by device: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting items by device: %w", err)
	}
	return n, nil
}

const itemColumns = `id, photo_url, device_name, location, locker_id, description, status,
	registered_at, found_at, found_by_user_id, created_at, updated_at`

func scanItem(scan func(dest ...any) error) (*model.Item, error) {
	it := &model.Item{}
	var deviceName, location, description sql.NullString
	err := scan(&it.ID, &it.PhotoURL, &deviceName, &location, &it.LockerID,
		&description, &it.Status, &it.RegisteredAt, &it.FoundAt,
		&it.FoundByUserID, &it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	it.DeviceName = deviceName.String
	it.Location = location.String
	it.Description = description.String
	return it, nil
}

func scanItemRow(row *sql.Row) (*model.Item, error) {
	it, err := scanItem(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning item: %w", err)
	}
	return it, nil
}

func scanItems(rows *sql.Rows) ([]model.Item, error) {
	var items []model.Item
	for rows.Next() {
		it, err := scanItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// loadTags populates Tags for each item in one query over the join table.
func loadTags(ctx context.Context, q Querier, items []*model.Item) error {
	if len(items) == 0 {
		return nil
	}

	byID := make(map[int64]*model.Item, len(items))
	ids := make([]any, 0, len(items))
	for _, it := range items {
		byID[it.ID] = it
		ids = append(ids, it.ID)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT it.item_id, t.id, t.name, t.locker_slot, t.created_at, t.updated_at, it.confidence
		 FROM item_tags it
		 JOIN tags t ON t.id = it.tag_id
		 WHERE it.item_id IN (`+placeholders(len(ids))+`)
		 ORDER BY it.item_id, t.name`, ids...,
	)
	if err != nil {
		return fmt.Errorf("loading item tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID int64
		var tag model.Tag
		if err := rows.Scan(&itemID, &tag.ID, &tag.Name, &tag.LockerSlot,
			&tag.CreatedAt, &tag.UpdatedAt, &tag.Confidence); err != nil {
			return fmt.Errorf("scanning item tag: %w", err)
		}
		if it := byID[itemID]; it != nil {
			it.Tags = append(it.Tags, tag)
		}
	}
	return rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
