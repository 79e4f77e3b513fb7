package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jongsul/lostfound/internal/model"
)

// CreateUser creates a new user account.
func CreateUser(ctx context.Context, q Querier, email, passwordHash, name, contactInfo, role string) (*model.User, error) {
	result, err := q.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, name, contact_info, role)
		 VALUES (?, ?, ?, ?, ?)`,
		email, passwordHash, name, contactInfo, role,
	)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting user id: %w", err)
	}

	return GetUser(ctx, q, id)
}

// GetUser returns a user by ID, or nil if absent.
func GetUser(ctx context.Context, q Querier, id int64) (*model.User, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id,
	)
	return scanUser(row)
}

// GetUserByEmail returns a non-deleted user by email, or nil.
func GetUserByEmail(ctx context.Context, q Querier, email string) (*model.User, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ? AND deleted_at IS NULL`, email,
	)
	return scanUser(row)
}

// UpdateUserPassword updates a user's password hash.
func UpdateUserPassword(ctx context.Context, q Querier, id int64, passwordHash string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND deleted_at IS NULL`,
		passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

// DeleteUser soft-deletes a user. Items they picked up keep their history
// (the FK is ON DELETE SET NULL only for hard deletes, which never happen
// through this path).
func DeleteUser(ctx context.Context, q Querier, id int64) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET deleted_at = CURRENT_TIMESTAMP WHERE id = ? AND deleted_at IS NULL`, id,
	)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	return nil
}

const userColumns = `id, email, password_hash, name, contact_info, role, created_at, updated_at, deleted_at`

func scanUser(row *sql.Row) (*model.User, error) {
	u := &model.User{}
	var contactInfo sql.NullString
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &contactInfo,
		&u.Role, &u.CreatedAt, &u.UpdatedAt, &u.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning user: %w", err)
	}
	u.ContactInfo = contactInfo.String
	return u, nil
}
