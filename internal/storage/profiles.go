package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ProfileRepo reads and writes user profiles.
type ProfileRepo struct {
	db *sqlx.DB
}

// NewProfileRepo constructs a repo over the shared connection pool.
func NewProfileRepo(db *sqlx.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

// Get returns the profile for the user, or an empty profile when none is
// stored yet.
func (r *ProfileRepo) Get(ctx context.Context, userID int64) (Profile, error) {
	var p Profile
	err := r.db.GetContext(ctx, &p,
		`SELECT user_id, first_name, username, destination_channel, caption_template, updated_at
		   FROM profiles WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{UserID: userID}, nil
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile %d: %w", userID, err)
	}
	return p, nil
}

// Put upserts the whole profile row.
func (r *ProfileRepo) Put(ctx context.Context, p Profile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, first_name, username, destination_channel, caption_template, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (user_id) DO UPDATE SET
		     first_name = EXCLUDED.first_name,
		     username = EXCLUDED.username,
		     destination_channel = EXCLUDED.destination_channel,
		     caption_template = EXCLUDED.caption_template,
		     updated_at = now()`,
		p.UserID, p.FirstName, p.Username, p.DestinationChannel, p.CaptionTemplate)
	if err != nil {
		return fmt.Errorf("put profile %d: %w", p.UserID, err)
	}
	return nil
}

// SetDestination updates only the destination channel.
func (r *ProfileRepo) SetDestination(ctx context.Context, userID int64, channel string) error {
	p, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	p.DestinationChannel = channel
	return r.Put(ctx, p)
}

// SetTemplate updates only the caption template.
func (r *ProfileRepo) SetTemplate(ctx context.Context, userID int64, template string) error {
	p, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	p.CaptionTemplate = template
	return r.Put(ctx, p)
}

// ResetAll clears every stored destination channel and caption template.
// Used by the owner /reset command.
func (r *ProfileRepo) ResetAll(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET destination_channel = '', caption_template = '', updated_at = now()`)
	if err != nil {
		return fmt.Errorf("reset profiles: %w", err)
	}
	return nil
}

// List returns all stored profiles ordered by user id.
func (r *ProfileRepo) List(ctx context.Context) ([]Profile, error) {
	var out []Profile
	err := r.db.SelectContext(ctx, &out,
		`SELECT user_id, first_name, username, destination_channel, caption_template, updated_at
		   FROM profiles ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	return out, nil
}
