package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailkeys/keybot/internal/caption"
	"github.com/trailkeys/keybot/internal/errs"
	"github.com/trailkeys/keybot/internal/session"
	"github.com/trailkeys/keybot/internal/storage"
)

// fakeEndpoint records every call in order and can fail selected sends.
type fakeEndpoint struct {
	calls    []string
	nextID   int
	failSend map[int]error // 1-based send index -> error
	failDel  error
}

func (f *fakeEndpoint) SendFile(_ context.Context, dest string, file session.FileRef, cap string) (session.PostRef, error) {
	idx := len(f.sends()) + 1
	f.calls = append(f.calls, fmt.Sprintf("send:%s:%s:%s", dest, file.ID, cap))
	if err, ok := f.failSend[idx]; ok {
		return session.PostRef{}, err
	}
	f.nextID++
	return session.PostRef{ChatID: 42, MessageID: f.nextID}, nil
}

func (f *fakeEndpoint) DeletePost(_ context.Context, ref session.PostRef) error {
	f.calls = append(f.calls, fmt.Sprintf("delete:%d", ref.MessageID))
	return f.failDel
}

func (f *fakeEndpoint) sends() []string {
	var out []string
	for _, c := range f.calls {
		if len(c) > 4 && c[:4] == "send" {
			out = append(out, c)
		}
	}
	return out
}

func completeProfile() storage.Profile {
	return storage.Profile{
		UserID:             101,
		DestinationChannel: "@mychannel",
		CaptionTemplate:    "Unlock - Key -",
	}
}

func TestDispatchPreconditionNoDestination(t *testing.T) {
	ep := &fakeEndpoint{}
	d := New(ep)

	prof := completeProfile()
	prof.DestinationChannel = ""
	_, err := d.Dispatch(context.Background(), Batch{
		Files: []session.FileRef{{ID: "a"}},
		Key:   "ABC",
	}, prof)

	assert.ErrorIs(t, err, errs.ErrProfileIncomplete)
	assert.Empty(t, ep.calls, "no sendFile calls may happen")
}

func TestDispatchOrderAndCaptions(t *testing.T) {
	ep := &fakeEndpoint{}
	d := New(ep)

	res, err := d.Dispatch(context.Background(), Batch{
		Files: []session.FileRef{{ID: "f1"}, {ID: "f2"}, {ID: "f3"}},
		Key:   "ABC",
		Style: caption.StylePlain,
	}, completeProfile())
	require.NoError(t, err)
	require.Len(t, res.Posted, 3)

	require.Len(t, ep.calls, 3)
	assert.Equal(t, "send:@mychannel:f1:ABC", ep.calls[0])
	assert.Equal(t, "send:@mychannel:f2:ABC", ep.calls[1])
	assert.Equal(t, "send:@mychannel:f3:Unlock - ABC", ep.calls[2])
	assert.Equal(t, "https://t.me/mychannel/3", res.Link)
}

func TestDispatchAbortsOnFirstFailure(t *testing.T) {
	ep := &fakeEndpoint{failSend: map[int]error{2: errors.New("flood wait")}}
	d := New(ep)

	res, err := d.Dispatch(context.Background(), Batch{
		Files: []session.FileRef{{ID: "f1"}, {ID: "f2"}, {ID: "f3"}},
		Key:   "ABC",
	}, completeProfile())

	assert.ErrorIs(t, err, errs.ErrDispatchFailed)
	// Only the first item actually posted; the third was never attempted.
	require.Len(t, res.Posted, 1)
	assert.Len(t, ep.sends(), 2)
}

func TestRecaptionSendsBeforeDeletes(t *testing.T) {
	ep := &fakeEndpoint{}
	d := New(ep)

	old := []session.PostRef{{ChatID: 42, MessageID: 900}, {ChatID: 42, MessageID: 901}}
	res, err := d.Recaption(context.Background(), Batch{
		Files: []session.FileRef{{ID: "f1"}, {ID: "f2"}},
		Key:   "ABC",
		Style: caption.StyleMonospace,
	}, old, completeProfile())
	require.NoError(t, err)
	require.Len(t, res.Posted, 2)

	require.Len(t, ep.calls, 4)
	lastSend, firstDelete := -1, -1
	for i, c := range ep.calls {
		switch c[:4] {
		case "send":
			lastSend = i
		case "dele":
			if firstDelete == -1 {
				firstDelete = i
			}
		}
	}
	assert.Greater(t, firstDelete, lastSend, "all sends must precede any delete")
	assert.Equal(t, "delete:900", ep.calls[2])
	assert.Equal(t, "delete:901", ep.calls[3])
}

func TestRecaptionFailureKeepsOldPosts(t *testing.T) {
	ep := &fakeEndpoint{failSend: map[int]error{1: errors.New("down")}}
	d := New(ep)

	old := []session.PostRef{{ChatID: 42, MessageID: 900}}
	_, err := d.Recaption(context.Background(), Batch{
		Files: []session.FileRef{{ID: "f1"}},
		Key:   "ABC",
	}, old, completeProfile())

	assert.ErrorIs(t, err, errs.ErrDispatchFailed)
	for _, c := range ep.calls {
		assert.NotContains(t, c, "delete", "old posts must survive a failed re-caption")
	}
}

func TestDeleteItemSwallowsRemoteFailure(t *testing.T) {
	ep := &fakeEndpoint{failDel: errors.New("message to delete not found")}
	d := New(ep)

	err := d.DeleteItem(context.Background(), session.PostRef{ChatID: 42, MessageID: 7})
	assert.ErrorIs(t, err, errs.ErrDeleteFailed)
}

func TestPostLink(t *testing.T) {
	link, ok := PostLink("@mychannel", session.PostRef{MessageID: 12})
	require.True(t, ok)
	assert.Equal(t, "https://t.me/mychannel/12", link)

	_, ok = PostLink("-1001234567890", session.PostRef{MessageID: 12})
	assert.False(t, ok, "private channels degrade to no link")

	_, ok = PostLink("@", session.PostRef{MessageID: 12})
	assert.False(t, ok)
}
