package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// RuleRepo manages the three channel mirroring rule slots.
type RuleRepo struct {
	db *sqlx.DB
}

// NewRuleRepo constructs a repo over the shared connection pool.
func NewRuleRepo(db *sqlx.DB) *RuleRepo {
	return &RuleRepo{db: db}
}

// List returns all configured rules ordered by slot.
func (r *RuleRepo) List(ctx context.Context) ([]ForwardRule, error) {
	var out []ForwardRule
	err := r.db.SelectContext(ctx, &out,
		`SELECT slot, source_channel, destination_channel, caption_template,
		        completed_count, min_bytes, max_bytes
		   FROM forward_rules ORDER BY slot`)
	if err != nil {
		return nil, fmt.Errorf("list forward rules: %w", err)
	}
	return out, nil
}

// Put upserts one rule slot.
func (r *RuleRepo) Put(ctx context.Context, rule ForwardRule) error {
	if rule.Slot < 1 || rule.Slot > 3 {
		return fmt.Errorf("forward rule slot %d out of range", rule.Slot)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO forward_rules (slot, source_channel, destination_channel, caption_template,
		                            completed_count, min_bytes, max_bytes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (slot) DO UPDATE SET
		     source_channel = EXCLUDED.source_channel,
		     destination_channel = EXCLUDED.destination_channel,
		     caption_template = EXCLUDED.caption_template,
		     min_bytes = EXCLUDED.min_bytes,
		     max_bytes = EXCLUDED.max_bytes`,
		rule.Slot, rule.SourceChannel, rule.DestinationChannel, rule.CaptionTemplate,
		rule.CompletedCount, rule.MinBytes, rule.MaxBytes)
	if err != nil {
		return fmt.Errorf("put forward rule %d: %w", rule.Slot, err)
	}
	return nil
}

// IncrementCompleted bumps the completion counter for a slot.
func (r *RuleRepo) IncrementCompleted(ctx context.Context, slot int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE forward_rules SET completed_count = completed_count + 1 WHERE slot = $1`, slot)
	if err != nil {
		return fmt.Errorf("increment forward rule %d: %w", slot, err)
	}
	return nil
}

// Delete removes a rule slot.
func (r *RuleRepo) Delete(ctx context.Context, slot int) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM forward_rules WHERE slot = $1`, slot)
	if err != nil {
		return fmt.Errorf("delete forward rule %d: %w", slot, err)
	}
	return nil
}
