package upload

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailkeys/keybot/internal/caption"
	"github.com/trailkeys/keybot/internal/errs"
	"github.com/trailkeys/keybot/internal/session"
)

const testUser = int64(101)

func newTestFlow(t *testing.T, window time.Duration, prompts *atomic.Int32) (*Flow, *session.Store) {
	t.Helper()
	store := session.NewStore()
	f := NewFlow(store, window, 0, func(userID int64) {
		if prompts != nil {
			prompts.Add(1)
		}
	})
	t.Cleanup(f.Close)
	return f, store
}

func TestCapacityInvariant(t *testing.T) {
	f, store := newTestFlow(t, time.Hour, nil)
	require.NoError(t, f.ChooseMethod(testUser, session.MethodBatch))

	for i := 0; i < 3; i++ {
		_, err := f.OnBatchFile(testUser, session.FileRef{ID: "f", Name: "a.apk"})
		require.NoError(t, err)
	}
	for i := 0; i < 3; i++ {
		_, err := f.OnBatchFile(testUser, session.FileRef{ID: "g", Name: "b.apk"})
		assert.ErrorIs(t, err, errs.ErrCapacityExceeded)
	}

	s, ok := store.Peek(testUser)
	require.True(t, ok)
	assert.Len(t, s.Files, 3)
	assert.Equal(t, session.StatusCollecting, s.Status)
}

func TestDebounceSinglePrompt(t *testing.T) {
	var prompts atomic.Int32
	f, store := newTestFlow(t, 50*time.Millisecond, &prompts)
	require.NoError(t, f.ChooseMethod(testUser, session.MethodBatch))

	_, err := f.OnBatchFile(testUser, session.FileRef{ID: "a", Name: "a.apk"})
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = f.OnBatchFile(testUser, session.FileRef{ID: "b", Name: "b.apk"})
	require.NoError(t, err)

	// First timer would have fired by now if the second arrival did not
	// supersede it.
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), prompts.Load())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(1), prompts.Load())

	s, _ := store.Peek(testUser)
	assert.Equal(t, session.StatusAwaitingKey, s.Status)

	// No further prompts after the transition.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(1), prompts.Load())
}

func TestDebounceIgnoredAfterCancel(t *testing.T) {
	var prompts atomic.Int32
	f, store := newTestFlow(t, 30*time.Millisecond, &prompts)
	require.NoError(t, f.ChooseMethod(testUser, session.MethodBatch))
	_, err := f.OnBatchFile(testUser, session.FileRef{ID: "a", Name: "a.apk"})
	require.NoError(t, err)

	f.Cancel(testUser)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), prompts.Load())

	s, _ := store.Peek(testUser)
	assert.Equal(t, session.StatusIdle, s.Status)
	assert.Empty(t, s.Files)
}

func TestStaleExpiryIsNoOp(t *testing.T) {
	var prompts atomic.Int32
	f, store := newTestFlow(t, 20*time.Millisecond, &prompts)
	require.NoError(t, f.ChooseMethod(testUser, session.MethodBatch))
	_, err := f.OnBatchFile(testUser, session.FileRef{ID: "a", Name: "a.apk"})
	require.NoError(t, err)

	// Advance the session past collecting before the timer fires.
	require.NoError(t, store.Mutate(testUser, func(s *session.Session) error {
		s.Status = session.StatusAwaitingKey
		return nil
	}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(0), prompts.Load())
}

func TestOnKeyTextRequiresPlaceholder(t *testing.T) {
	f, store := newTestFlow(t, time.Hour, nil)
	require.NoError(t, f.ChooseMethod(testUser, session.MethodBatch))
	_, err := f.OnBatchFile(testUser, session.FileRef{ID: "a", Name: "a.apk"})
	require.NoError(t, err)
	require.NoError(t, store.Mutate(testUser, func(s *session.Session) error {
		s.Status = session.StatusAwaitingKey
		return nil
	}))

	err = f.OnKeyText(testUser, "XYZ123", "template without token")
	assert.ErrorIs(t, err, errs.ErrMissingPlaceholder)
	s, _ := store.Peek(testUser)
	assert.Equal(t, session.StatusAwaitingKey, s.Status)
	assert.Empty(t, s.Key)

	// Retry with a fixed template succeeds.
	require.NoError(t, f.OnKeyText(testUser, "XYZ123", "Unlock - Key -"))
	s, _ = store.Peek(testUser)
	assert.Equal(t, session.StatusPreviewing, s.Status)
	assert.Equal(t, "XYZ123", s.Key)
	assert.Equal(t, caption.StylePlain, s.KeyStyle)
}

func TestSetStyleIdempotent(t *testing.T) {
	f, store := newTestFlow(t, time.Hour, nil)
	require.NoError(t, f.ChooseMethod(testUser, session.MethodSingle))
	_, found, err := f.OnSingleFile(testUser, session.FileRef{ID: "a", Name: "a.apk"}, "Key - AB12")
	require.NoError(t, err)
	require.True(t, found)

	changed, err := f.SetStyle(testUser, caption.StyleQuoted)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.SetStyle(testUser, caption.StyleQuoted)
	require.NoError(t, err)
	assert.False(t, changed)

	s, _ := store.Peek(testUser)
	assert.Equal(t, caption.StyleQuoted, s.KeyStyle)
}

func TestSingleFileWithoutInlineKeyAwaitsKey(t *testing.T) {
	f, store := newTestFlow(t, time.Hour, nil)
	require.NoError(t, f.ChooseMethod(testUser, session.MethodSingle))
	_, found, err := f.OnSingleFile(testUser, session.FileRef{ID: "a", Name: "a.apk"}, "no token")
	require.NoError(t, err)
	assert.False(t, found)

	s, _ := store.Peek(testUser)
	assert.Equal(t, session.StatusAwaitingKey, s.Status)
	require.Len(t, s.Files, 1)
}

func TestApplyTemplateValidation(t *testing.T) {
	f, store := newTestFlow(t, time.Hour, nil)
	require.NoError(t, f.ChooseMethod(testUser, session.MethodSingle))
	_, _, err := f.OnSingleFile(testUser, session.FileRef{ID: "a", Name: "a.apk"}, "Key - AB")
	require.NoError(t, err)
	require.NoError(t, f.BeginEdit(testUser))

	err = f.ApplyTemplate(testUser, "no token at all")
	assert.ErrorIs(t, err, errs.ErrMissingTemplate)
	s, _ := store.Peek(testUser)
	assert.Equal(t, session.StatusEditing, s.Status)

	require.NoError(t, f.ApplyTemplate(testUser, "New caption Key -"))
	s, _ = store.Peek(testUser)
	assert.Equal(t, session.StatusPreviewing, s.Status)
}
