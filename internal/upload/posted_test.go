package upload

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailkeys/keybot/internal/dispatch"
	"github.com/trailkeys/keybot/internal/session"
	"github.com/trailkeys/keybot/internal/storage"
)

type capturingEndpoint struct {
	captions []string
	deleted  []int
}

func (e *capturingEndpoint) SendFile(_ context.Context, _ string, _ session.FileRef, captionText string) (session.PostRef, error) {
	e.captions = append(e.captions, captionText)
	return session.PostRef{ChatID: 900, MessageID: len(e.captions)}, nil
}

func (e *capturingEndpoint) DeletePost(_ context.Context, ref session.PostRef) error {
	e.deleted = append(e.deleted, ref.MessageID)
	return nil
}

func seedDispatched(t *testing.T, f *Flow, store *session.Store, n int) {
	t.Helper()
	require.NoError(t, f.ChooseMethod(testUser, session.MethodBatch))
	require.NoError(t, store.Mutate(testUser, func(s *session.Session) error {
		for i := 0; i < n; i++ {
			s.Files = append(s.Files, session.FileRef{ID: string(rune('a' + i)), Name: "app.apk"})
			s.Posted = append(s.Posted, session.PostRef{ChatID: 900, MessageID: 10 + i})
		}
		s.Key = "AB12"
		s.Status = session.StatusPreviewing
		return nil
	}))
}

func TestRemovePostedKeepsFilesAligned(t *testing.T) {
	f, store := newTestFlow(t, time.Hour, nil)
	seedDispatched(t, f, store, 3)

	remaining := f.RemovePosted(testUser, 1)
	assert.Equal(t, 2, remaining)

	s, _ := store.Peek(testUser)
	require.Len(t, s.Posted, 2)
	require.Len(t, s.Files, 2)
	assert.Equal(t, 10, s.Posted[0].MessageID)
	assert.Equal(t, 12, s.Posted[1].MessageID)
	assert.Equal(t, "a", s.Files[0].ID)
	assert.Equal(t, "c", s.Files[1].ID)
}

func TestRemovePostedOutOfRangeIsNoOp(t *testing.T) {
	f, store := newTestFlow(t, time.Hour, nil)
	seedDispatched(t, f, store, 2)

	assert.Equal(t, 2, f.RemovePosted(testUser, -1))
	assert.Equal(t, 2, f.RemovePosted(testUser, 2))
	s, _ := store.Peek(testUser)
	assert.Len(t, s.Posted, 2)
}

func TestDeletingEveryPostClosesSession(t *testing.T) {
	f, store := newTestFlow(t, time.Hour, nil)
	seedDispatched(t, f, store, 3)

	assert.Equal(t, 2, f.RemovePosted(testUser, 2))
	assert.Equal(t, 1, f.RemovePosted(testUser, 0))
	assert.True(t, store.InProgress(testUser))

	assert.Equal(t, 0, f.RemovePosted(testUser, 0))
	assert.False(t, store.InProgress(testUser))
	s, _ := store.Peek(testUser)
	assert.Equal(t, session.StatusIdle, s.Status)
	assert.Empty(t, s.Files)
	assert.Empty(t, s.Key)
}

func TestCompleteDispatchEndsSingleFileSession(t *testing.T) {
	f, store := newTestFlow(t, time.Hour, nil)
	require.NoError(t, f.ChooseMethod(testUser, session.MethodSingle))
	_, found, err := f.OnSingleFile(testUser, session.FileRef{ID: "a", Name: "a.apk"}, "Key - AB12")
	require.NoError(t, err)
	require.True(t, found)

	kept := f.CompleteDispatch(testUser, []session.PostRef{{ChatID: 900, MessageID: 1}})
	assert.False(t, kept)
	assert.False(t, store.InProgress(testUser))
}

func TestCompleteDispatchKeepsMultiFileBatches(t *testing.T) {
	f, store := newTestFlow(t, time.Hour, nil)
	seedDispatched(t, f, store, 0)

	refs := []session.PostRef{{ChatID: 900, MessageID: 1}, {ChatID: 900, MessageID: 2}}
	kept := f.CompleteDispatch(testUser, refs)
	assert.True(t, kept)

	s, _ := store.Peek(testUser)
	assert.Equal(t, session.StatusPreviewing, s.Status)
	assert.Equal(t, refs, s.Posted)
}

// The whole happy path in one pass: files arrive, the lull prompts for the
// key, the key lands, the batch is dispatched, and the session returns to
// idle once nothing is left to manage.
func TestBatchUploadRoundTrip(t *testing.T) {
	var prompts atomic.Int32
	f, store := newTestFlow(t, 25*time.Millisecond, &prompts)
	require.NoError(t, f.ChooseMethod(testUser, session.MethodBatch))

	_, err := f.OnBatchFile(testUser, session.FileRef{ID: "f1", Name: "app.apk"})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return prompts.Load() == 1 }, time.Second, 5*time.Millisecond)
	s, _ := store.Peek(testUser)
	require.Equal(t, session.StatusAwaitingKey, s.Status)

	require.NoError(t, f.OnKeyText(testUser, "ZX99", "Unlock - Key -"))
	s, _ = store.Peek(testUser)
	require.Equal(t, session.StatusPreviewing, s.Status)

	ep := &capturingEndpoint{}
	res, err := dispatch.New(ep).Dispatch(context.Background(), dispatch.Batch{
		Files: s.Files,
		Key:   s.Key,
		Style: s.KeyStyle,
	}, storage.Profile{
		UserID:             testUser,
		DestinationChannel: "@dest",
		CaptionTemplate:    "Unlock - Key -",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Unlock - ZX99"}, ep.captions)

	kept := f.CompleteDispatch(testUser, res.Posted)
	assert.False(t, kept)
	assert.False(t, store.InProgress(testUser))
}
