// Package upload implements the per-user upload state machine: batch
// collection with a debounce to key capture, key validation, style and
// template adjustments, and cancellation.
package upload

import (
	"log/slog"
	"strings"
	"time"

	"github.com/trailkeys/keybot/core/logger"
	"github.com/trailkeys/keybot/internal/caption"
	"github.com/trailkeys/keybot/internal/errs"
	"github.com/trailkeys/keybot/internal/session"
)

// Flow drives session transitions. The transport layer owns rendering; Flow
// only mutates state and reports what happened.
type Flow struct {
	store    *session.Store
	dog      *session.Watchdog
	maxFiles int

	// onAwaitKey runs after a debounce expiry moved the session to
	// awaiting-key, outside the store lock.
	onAwaitKey func(userID int64)
}

// NewFlow wires a flow over the store with the given debounce window.
// maxFiles <= 0 falls back to session.MaxFiles.
func NewFlow(store *session.Store, window time.Duration, maxFiles int, onAwaitKey func(userID int64)) *Flow {
	if maxFiles <= 0 {
		maxFiles = session.MaxFiles
	}
	f := &Flow{
		store:      store,
		maxFiles:   maxFiles,
		onAwaitKey: onAwaitKey,
	}
	f.dog = session.NewWatchdog(window, f.expire)
	return f
}

// Close stops all pending debounce timers.
func (f *Flow) Close() {
	f.dog.Close()
}

// ChooseMethod begins a fresh batch lifecycle with the selected method.
func (f *Flow) ChooseMethod(userID int64, method session.Method) error {
	f.dog.Cancel(userID)
	return f.store.Mutate(userID, func(s *session.Session) error {
		s.BeginBatch(method)
		return nil
	})
}

// OnBatchFile appends an uploaded file to the batch and re-arms the debounce
// timer. Returns the new file count.
func (f *Flow) OnBatchFile(userID int64, file session.FileRef) (int, error) {
	var count int
	err := f.store.Mutate(userID, func(s *session.Session) error {
		if s.Method != session.MethodBatch {
			return errs.ErrInvalidState
		}
		if len(s.Files) >= f.maxFiles {
			return errs.ErrCapacityExceeded
		}
		s.Files = append(s.Files, file)
		s.Touch(time.Now())
		s.Status = session.StatusCollecting
		count = len(s.Files)
		return nil
	})
	if err != nil {
		return 0, err
	}
	f.dog.Arm(userID)
	logger.Debug(logger.Background(), "service.sessions", "collect.file",
		slog.Int64("user_id", userID),
		slog.Int("files", count),
	)
	return count, nil
}

// OnSingleFile handles the single-file method: the key may arrive inline in
// the upload caption, otherwise the session waits for a key without a timer.
// Returns the extracted key and whether one was found.
func (f *Flow) OnSingleFile(userID int64, file session.FileRef, inlineCaption string) (string, bool, error) {
	var (
		key   string
		found bool
	)
	err := f.store.Mutate(userID, func(s *session.Session) error {
		if s.Method != session.MethodSingle {
			return errs.ErrInvalidState
		}
		s.Files = []session.FileRef{file}
		s.Touch(time.Now())
		if k, ok := caption.ExtractKey(inlineCaption); ok {
			s.Key = k
			s.KeyStyle = caption.StylePlain
			s.Status = session.StatusPreviewing
			key, found = k, true
			return nil
		}
		s.Status = session.StatusAwaitingKey
		return nil
	})
	if err != nil {
		return "", false, err
	}
	return key, found, nil
}

// OnKeyText accepts the free-text key while the session awaits one. The
// user's caption template must contain the placeholder; otherwise the key is
// rejected and the session is left unchanged so the user can fix the
// template and retry.
func (f *Flow) OnKeyText(userID int64, text, template string) error {
	key := strings.TrimSpace(text)
	if key == "" {
		return errs.ErrInvalidState
	}
	return f.store.Mutate(userID, func(s *session.Session) error {
		if s.Status != session.StatusAwaitingKey {
			return errs.ErrInvalidState
		}
		if !caption.HasPlaceholder(template) {
			return errs.ErrMissingPlaceholder
		}
		s.Key = key
		s.KeyStyle = caption.StylePlain
		s.Status = session.StatusPreviewing
		return nil
	})
}

// SetStyle switches the key style while previewing. Selecting the active
// style is a no-op; the bool reports whether anything changed.
func (f *Flow) SetStyle(userID int64, style caption.Style) (bool, error) {
	var changed bool
	err := f.store.Mutate(userID, func(s *session.Session) error {
		if s.Status != session.StatusPreviewing {
			return errs.ErrInvalidState
		}
		if s.KeyStyle == style {
			return nil
		}
		s.KeyStyle = style
		changed = true
		return nil
	})
	return changed, err
}

// BeginEdit moves the session to template editing.
func (f *Flow) BeginEdit(userID int64) error {
	return f.store.Mutate(userID, func(s *session.Session) error {
		if s.Status != session.StatusPreviewing {
			return errs.ErrInvalidState
		}
		s.Status = session.StatusEditing
		return nil
	})
}

// ApplyTemplate validates the replacement caption template and returns the
// session to previewing. Persisting the template is the caller's job; on
// validation failure the session stays in editing.
func (f *Flow) ApplyTemplate(userID int64, text string) error {
	return f.store.Mutate(userID, func(s *session.Session) error {
		if s.Status != session.StatusEditing {
			return errs.ErrInvalidState
		}
		if !caption.HasPlaceholder(text) {
			return errs.ErrMissingTemplate
		}
		s.Status = session.StatusPreviewing
		return nil
	})
}

// Cancel aborts the flow and resets the session. Effective even with a
// debounce timer in flight: the expiry guard sees the idle status.
func (f *Flow) Cancel(userID int64) {
	f.dog.Cancel(userID)
	_ = f.store.Mutate(userID, func(s *session.Session) error {
		s.Reset()
		return nil
	})
}

// RecordPosted stores dispatch refs without ending the session. Used when a
// partial dispatch leaves items behind that the user may still delete.
func (f *Flow) RecordPosted(userID int64, refs []session.PostRef) {
	_ = f.store.Mutate(userID, func(s *session.Session) error {
		s.Posted = refs
		return nil
	})
}

// CompleteDispatch stores the refs of a fully dispatched batch. Batches of
// two or more stay previewing so the posts can still be restyled or deleted
// one by one; a single post has nothing left to manage and the session ends.
// Reports whether the session was kept.
func (f *Flow) CompleteDispatch(userID int64, refs []session.PostRef) bool {
	kept := false
	_ = f.store.Mutate(userID, func(s *session.Session) error {
		s.Posted = refs
		if len(refs) < 2 {
			s.Reset()
			return nil
		}
		kept = true
		return nil
	})
	return kept
}

// RemovePosted drops one posted item together with its file so a later
// re-caption resends exactly the surviving files. Removing the last item
// resets the session. Returns the number of posted items left; an
// out-of-range index changes nothing.
func (f *Flow) RemovePosted(userID int64, idx int) int {
	remaining := 0
	_ = f.store.Mutate(userID, func(s *session.Session) error {
		remaining = len(s.Posted)
		if idx < 0 || idx >= len(s.Posted) {
			return nil
		}
		s.Posted = append(s.Posted[:idx], s.Posted[idx+1:]...)
		if idx < len(s.Files) {
			s.Files = append(s.Files[:idx], s.Files[idx+1:]...)
		}
		remaining = len(s.Posted)
		if remaining == 0 {
			s.Reset()
		}
		return nil
	})
	return remaining
}

// RememberProgress stores the ref of the in-place edited progress message.
func (f *Flow) RememberProgress(userID int64, ref session.MsgRef) {
	_ = f.store.Mutate(userID, func(s *session.Session) error {
		s.Progress = &ref
		return nil
	})
}

// expire is the watchdog fire handler. It re-fetches the session and acts
// only if the batch is still collecting with at least one file; a stale fire
// after the state advanced is a no-op.
func (f *Flow) expire(userID int64) {
	fired := false
	_ = f.store.Mutate(userID, func(s *session.Session) error {
		if s.Status != session.StatusCollecting || len(s.Files) == 0 {
			return nil
		}
		s.Status = session.StatusAwaitingKey
		fired = true
		return nil
	})
	if !fired {
		return
	}
	logger.Debug(logger.Background(), "service.sessions", "collect.debounce",
		slog.Int64("user_id", userID),
	)
	if f.onAwaitKey != nil {
		f.onAwaitKey(userID)
	}
}
