package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// AccessRepo manages the upload allow-list. The owner is authorized
// implicitly and never stored here.
type AccessRepo struct {
	db *sqlx.DB
}

// NewAccessRepo constructs a repo over the shared connection pool.
func NewAccessRepo(db *sqlx.DB) *AccessRepo {
	return &AccessRepo{db: db}
}

// IsAllowed reports whether the user is on the allow-list.
func (r *AccessRepo) IsAllowed(ctx context.Context, userID int64) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT count(*) FROM allowed_users WHERE user_id = $1`, userID)
	if err != nil {
		return false, fmt.Errorf("check allow-list %d: %w", userID, err)
	}
	return n > 0, nil
}

// Add puts the user on the allow-list. Adding an existing entry is a no-op.
func (r *AccessRepo) Add(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO allowed_users (user_id, added_at) VALUES ($1, now())
		 ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("add allowed user %d: %w", userID, err)
	}
	return nil
}

// Remove drops the user from the allow-list.
func (r *AccessRepo) Remove(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM allowed_users WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("remove allowed user %d: %w", userID, err)
	}
	return nil
}

// List returns the allow-list ordered by insertion time.
func (r *AccessRepo) List(ctx context.Context) ([]AllowedUser, error) {
	var out []AllowedUser
	err := r.db.SelectContext(ctx, &out,
		`SELECT user_id, added_at FROM allowed_users ORDER BY added_at`)
	if err != nil {
		return nil, fmt.Errorf("list allowed users: %w", err)
	}
	return out, nil
}
