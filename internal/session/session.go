// Package session holds the transient per-user upload state and its
// lifecycle rules. A session is created on first interaction, mutated only
// through Store.Mutate, and reset to idle after a successful dispatch, an
// explicit cancel, or when every posted item has been deleted.
package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/trailkeys/keybot/internal/caption"
)

// Status identifies the step of the upload state machine.
type Status string

const (
	// StatusIdle - no active upload flow.
	StatusIdle Status = "idle"
	// StatusSelectingMethod - user is choosing single vs batch upload.
	StatusSelectingMethod Status = "selecting_method"
	// StatusCollecting - batch files are arriving, debounce timer running.
	StatusCollecting Status = "collecting"
	// StatusAwaitingKey - waiting for the user to send the key text.
	StatusAwaitingKey Status = "awaiting_key"
	// StatusPreviewing - preview rendered, confirm/style/edit menu shown.
	StatusPreviewing Status = "previewing"
	// StatusEditing - user is sending a replacement caption template.
	StatusEditing Status = "editing"
)

// Method selects the upload flow variant.
type Method string

const (
	// MethodNone - no method selected yet.
	MethodNone Method = "none"
	// MethodSingle - one file, inline key extraction from its caption.
	MethodSingle Method = "single"
	// MethodBatch - two to three files sharing one key.
	MethodBatch Method = "batch"
)

// MaxFiles caps the number of files per batch.
const MaxFiles = 3

// FileRef identifies an uploaded file held by the transport.
type FileRef struct {
	ID   string
	Name string
}

// MsgRef points at a bot message that is edited in place.
type MsgRef struct {
	ChatID    int64
	MessageID int
}

// PostRef identifies a post the dispatcher created in a destination channel.
type PostRef struct {
	ChatID    int64
	MessageID int
}

// Session is the per-user upload state. All mutation happens inside
// Store.Mutate so operations on one user never interleave.
type Session struct {
	UserID       int64
	Status       Status
	Method       Method
	BatchID      uuid.UUID
	Files        []FileRef
	Key          string
	KeyStyle     caption.Style
	Progress     *MsgRef
	Posted       []PostRef
	LastActivity time.Time
}

// NewSession returns an idle session for the user.
func NewSession(userID int64) *Session {
	return &Session{
		UserID:   userID,
		Status:   StatusIdle,
		Method:   MethodNone,
		KeyStyle: caption.StylePlain,
	}
}

// Touch records activity for the debounce timer.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}

// BeginBatch starts a fresh batch lifecycle.
func (s *Session) BeginBatch(method Method) {
	s.Method = method
	s.Status = StatusSelectingMethod
	s.BatchID = uuid.New()
	s.Files = nil
	s.Key = ""
	s.KeyStyle = caption.StylePlain
	s.Posted = nil
}

// Reset returns the session to idle and clears all batch state.
func (s *Session) Reset() {
	s.Status = StatusIdle
	s.Method = MethodNone
	s.BatchID = uuid.Nil
	s.Files = nil
	s.Key = ""
	s.KeyStyle = caption.StylePlain
	s.Progress = nil
	s.Posted = nil
}

// Active reports whether the user is inside the upload flow.
func (s *Session) Active() bool {
	return s.Status != StatusIdle
}
