package forward

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailkeys/keybot/internal/session"
	"github.com/trailkeys/keybot/internal/storage"
)

type fakeRules struct {
	rules      []storage.ForwardRule
	listErr    error
	increments []int
}

func (f *fakeRules) List(context.Context) ([]storage.ForwardRule, error) {
	return f.rules, f.listErr
}

func (f *fakeRules) IncrementCompleted(_ context.Context, slot int) error {
	f.increments = append(f.increments, slot)
	return nil
}

type fakeSender struct {
	sent    []string // "destination|caption"
	sendErr error
}

func (f *fakeSender) SendFile(_ context.Context, dest string, _ session.FileRef, cap string) (session.PostRef, error) {
	if f.sendErr != nil {
		return session.PostRef{}, f.sendErr
	}
	f.sent = append(f.sent, dest+"|"+cap)
	return session.PostRef{ChatID: 1, MessageID: len(f.sent)}, nil
}

const mb = int64(1024 * 1024)

func slots() []storage.ForwardRule {
	return []storage.ForwardRule{
		{Slot: 1, SourceChannel: "@src", DestinationChannel: "@small", CaptionTemplate: "Small - Key -", MinBytes: 1 * mb, MaxBytes: 50 * mb},
		{Slot: 2, SourceChannel: "@src", DestinationChannel: "@large", CaptionTemplate: "Large - Key -", MinBytes: 80 * mb, MaxBytes: 2048 * mb},
		{Slot: 3, SourceChannel: "@other", DestinationChannel: "@any", CaptionTemplate: "Any - Key -"},
	}
}

func TestSizeWindowSelectsSlot(t *testing.T) {
	cases := []struct {
		name string
		size int64
		dest string
		ok   bool
	}{
		{"small file hits slot 1", 10 * mb, "@small", true},
		{"large file hits slot 2", 500 * mb, "@large", true},
		{"gap between windows matches nothing", 60 * mb, "", false},
		{"above slot 2 ceiling matches nothing", 3000 * mb, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rules := &fakeRules{rules: slots()}
			out := &fakeSender{}
			e := New(rules, out)

			done, err := e.HandlePost(context.Background(), Post{
				SourceChannel: "@src",
				File:          session.FileRef{ID: "f", Name: "app.apk"},
				SizeBytes:     tc.size,
				Caption:       "Key - ZX99",
			})
			require.NoError(t, err)
			assert.Equal(t, tc.ok, done)
			if tc.ok {
				require.Len(t, out.sent, 1)
				assert.Contains(t, out.sent[0], tc.dest+"|")
			} else {
				assert.Empty(t, out.sent)
			}
		})
	}
}

func TestUnrestrictedSlotTakesAnySize(t *testing.T) {
	rules := &fakeRules{rules: slots()}
	out := &fakeSender{}
	e := New(rules, out)

	done, err := e.HandlePost(context.Background(), Post{
		SourceChannel: "other", // no @ prefix, matched case-insensitively
		File:          session.FileRef{ID: "f"},
		SizeBytes:     5000 * mb,
		Caption:       "Key - QQ1",
	})
	require.NoError(t, err)
	assert.True(t, done)
	require.Len(t, out.sent, 1)
	assert.Equal(t, "@any|Any - QQ1", out.sent[0])
	assert.Equal(t, []int{3}, rules.increments)
}

func TestCaptionWithoutKeyIsSkipped(t *testing.T) {
	rules := &fakeRules{rules: slots()}
	out := &fakeSender{}
	e := New(rules, out)

	done, err := e.HandlePost(context.Background(), Post{
		SourceChannel: "@src",
		File:          session.FileRef{ID: "f"},
		SizeBytes:     10 * mb,
		Caption:       "just an update, no token here",
	})
	require.NoError(t, err)
	assert.False(t, done)
	assert.Empty(t, out.sent)
	assert.Empty(t, rules.increments)
}

func TestUnknownSourceIsIgnored(t *testing.T) {
	rules := &fakeRules{rules: slots()}
	out := &fakeSender{}
	e := New(rules, out)

	done, err := e.HandlePost(context.Background(), Post{
		SourceChannel: "@elsewhere",
		File:          session.FileRef{ID: "f"},
		SizeBytes:     10 * mb,
		Caption:       "Key - ZX99",
	})
	require.NoError(t, err)
	assert.False(t, done)
}

func TestSendFailureDoesNotIncrement(t *testing.T) {
	rules := &fakeRules{rules: slots()}
	out := &fakeSender{sendErr: errors.New("chat not found")}
	e := New(rules, out)

	done, err := e.HandlePost(context.Background(), Post{
		SourceChannel: "@src",
		File:          session.FileRef{ID: "f"},
		SizeBytes:     10 * mb,
		Caption:       "Key - ZX99",
	})
	assert.Error(t, err)
	assert.False(t, done)
	assert.Empty(t, rules.increments)
}
