// Package storage persists user profiles, the allow-list, and channel
// mirroring rules in Postgres. Documents are whole-row read/write;
// last-writer-wins is acceptable for every table here.
package storage

import "time"

// Profile holds the per-user publishing settings. DestinationChannel and
// CaptionTemplate stay empty until the user sets them; dispatch refuses to
// run while either is blank.
type Profile struct {
	UserID             int64     `db:"user_id"`
	FirstName          string    `db:"first_name"`
	Username           string    `db:"username"`
	DestinationChannel string    `db:"destination_channel"`
	CaptionTemplate    string    `db:"caption_template"`
	UpdatedAt          time.Time `db:"updated_at"`
}

// Complete reports whether the profile can back a dispatch.
func (p Profile) Complete() bool {
	return p.DestinationChannel != "" && p.CaptionTemplate != ""
}

// AllowedUser is one allow-list entry.
type AllowedUser struct {
	UserID  int64     `db:"user_id"`
	AddedAt time.Time `db:"added_at"`
}

// ForwardRule configures one channel mirroring slot (1..3). MaxBytes of zero
// means no upper bound.
type ForwardRule struct {
	Slot               int    `db:"slot"`
	SourceChannel      string `db:"source_channel"`
	DestinationChannel string `db:"destination_channel"`
	CaptionTemplate    string `db:"caption_template"`
	CompletedCount     int64  `db:"completed_count"`
	MinBytes           int64  `db:"min_bytes"`
	MaxBytes           int64  `db:"max_bytes"`
}

// Accepts reports whether a file of the given size fits the rule's window.
func (r ForwardRule) Accepts(sizeBytes int64) bool {
	if sizeBytes < r.MinBytes {
		return false
	}
	if r.MaxBytes > 0 && sizeBytes > r.MaxBytes {
		return false
	}
	return true
}
