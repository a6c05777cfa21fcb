package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutateCreatesOnFirstUse(t *testing.T) {
	st := NewStore()

	err := st.Mutate(7, func(s *Session) error {
		s.BeginBatch(MethodBatch)
		return nil
	})
	require.NoError(t, err)

	s, ok := st.Peek(7)
	require.True(t, ok)
	assert.Equal(t, StatusSelectingMethod, s.Status)
	assert.Equal(t, MethodBatch, s.Method)
	assert.NotEqual(t, s.BatchID.String(), "00000000-0000-0000-0000-000000000000")
}

func TestPeekReturnsCopy(t *testing.T) {
	st := NewStore()
	_ = st.Mutate(7, func(s *Session) error {
		s.Files = []FileRef{{ID: "a", Name: "a.apk"}}
		return nil
	})

	snap, ok := st.Peek(7)
	require.True(t, ok)
	snap.Files[0].ID = "mutated"
	snap.Files = append(snap.Files, FileRef{ID: "b"})

	orig, _ := st.Peek(7)
	require.Len(t, orig.Files, 1)
	assert.Equal(t, "a", orig.Files[0].ID)
}

func TestInProgressFollowsStatus(t *testing.T) {
	st := NewStore()
	assert.False(t, st.InProgress(7))

	_ = st.Mutate(7, func(s *Session) error {
		s.BeginBatch(MethodSingle)
		return nil
	})
	assert.True(t, st.InProgress(7))

	_ = st.Mutate(7, func(s *Session) error {
		s.Reset()
		return nil
	})
	assert.False(t, st.InProgress(7))
}

func TestResetClearsEverything(t *testing.T) {
	s := NewSession(7)
	s.BeginBatch(MethodBatch)
	s.Files = []FileRef{{ID: "a"}}
	s.Key = "ZX99"
	s.Posted = []PostRef{{ChatID: 1, MessageID: 2}}
	s.Progress = &MsgRef{ChatID: 1, MessageID: 3}

	s.Reset()

	assert.Equal(t, StatusIdle, s.Status)
	assert.Equal(t, MethodNone, s.Method)
	assert.Empty(t, s.Files)
	assert.Empty(t, s.Key)
	assert.Nil(t, s.Progress)
	assert.Empty(t, s.Posted)
}
