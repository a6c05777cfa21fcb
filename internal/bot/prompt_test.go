package bot

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/trailkeys/keybot/internal/session"
	"github.com/trailkeys/keybot/internal/upload"
)

type fakeMessenger struct {
	edits    []session.MsgRef
	sends    []int64
	failEdit bool
}

func (f *fakeMessenger) SendTo(userID int64, _ string, _ *tele.ReplyMarkup) (session.MsgRef, error) {
	f.sends = append(f.sends, userID)
	return session.MsgRef{ChatID: userID, MessageID: 500 + len(f.sends)}, nil
}

func (f *fakeMessenger) EditAt(ref session.MsgRef, _ string, _ *tele.ReplyMarkup) error {
	if f.failEdit {
		return errors.New("message to edit not found")
	}
	f.edits = append(f.edits, ref)
	return nil
}

func newPromptApp(t *testing.T, fm *fakeMessenger) (*App, *session.Store) {
	t.Helper()
	st := session.NewStore()
	app := &App{store: st, msgr: fm}
	app.flow = upload.NewFlow(st, time.Hour, 0, app.promptKey)
	t.Cleanup(app.flow.Close)
	return app, st
}

func TestKeyPromptReusesProgressMessage(t *testing.T) {
	fm := &fakeMessenger{}
	app, st := newPromptApp(t, fm)

	require.NoError(t, st.Mutate(7, func(s *session.Session) error {
		s.BeginBatch(session.MethodBatch)
		s.Files = []session.FileRef{{ID: "a", Name: "a.apk"}}
		s.Status = session.StatusAwaitingKey
		s.Progress = &session.MsgRef{ChatID: 7, MessageID: 42}
		return nil
	}))

	app.promptKey(7)

	require.Len(t, fm.edits, 1)
	assert.Equal(t, 42, fm.edits[0].MessageID)
	assert.Empty(t, fm.sends, "the prompt must edit the progress message, not add a new one")
}

func TestKeyPromptFallsBackWhenEditFails(t *testing.T) {
	fm := &fakeMessenger{failEdit: true}
	app, st := newPromptApp(t, fm)

	require.NoError(t, st.Mutate(7, func(s *session.Session) error {
		s.BeginBatch(session.MethodBatch)
		s.Status = session.StatusAwaitingKey
		s.Progress = &session.MsgRef{ChatID: 7, MessageID: 42}
		return nil
	}))

	app.promptKey(7)

	require.Len(t, fm.sends, 1)
	s, _ := st.Peek(7)
	require.NotNil(t, s.Progress)
	assert.Equal(t, 501, s.Progress.MessageID, "the fresh prompt becomes the new progress message")
}

func TestKeyPromptSendsWhenNoProgressExists(t *testing.T) {
	fm := &fakeMessenger{}
	app, st := newPromptApp(t, fm)

	require.NoError(t, st.Mutate(7, func(s *session.Session) error {
		s.BeginBatch(session.MethodBatch)
		s.Status = session.StatusAwaitingKey
		return nil
	}))

	app.promptKey(7)

	assert.Empty(t, fm.edits)
	require.Len(t, fm.sends, 1)
	assert.Equal(t, int64(7), fm.sends[0])
}
