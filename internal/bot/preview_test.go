package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trailkeys/keybot/internal/caption"
	"github.com/trailkeys/keybot/internal/session"
)

func TestPreviewTextShowsFinalCaption(t *testing.T) {
	s := session.Session{
		Files: []session.FileRef{
			{ID: "a", Name: "app-arm64.apk"},
			{ID: "b", Name: "app-x86.apk"},
		},
		Key:      "ZX99",
		KeyStyle: caption.StyleMonospace,
	}

	text := previewText(s, "Unlock with Key -")
	assert.Contains(t, text, "app-arm64.apk")
	assert.Contains(t, text, "app-x86.apk")
	// The preview shows the caption of the last batch position: the full
	// template with the styled key substituted for the placeholder.
	assert.Contains(t, text, "Unlock with `ZX99`")
	assert.NotContains(t, text, "Key -")
}

func TestPostedMenuOneDeleteButtonPerItem(t *testing.T) {
	s := session.Session{
		KeyStyle: caption.StylePlain,
		Posted: []session.PostRef{
			{ChatID: 1, MessageID: 10},
			{ChatID: 1, MessageID: 11},
			{ChatID: 1, MessageID: 12},
		},
	}

	menu := postedMenu(s)
	require.Len(t, menu.InlineKeyboard, 3)
	assert.Len(t, menu.InlineKeyboard[0], 3)
	// Active style is omitted from the restyle row.
	assert.Len(t, menu.InlineKeyboard[1], 2)
	// The template stays editable after dispatch.
	require.Len(t, menu.InlineKeyboard[2], 1)
	assert.Contains(t, menu.InlineKeyboard[2][0].Text, "Edit caption")
}

func TestPreviewMenuOmitsActiveStyle(t *testing.T) {
	menu := previewMenu(caption.StyleQuoted)
	styleRow := menu.InlineKeyboard[1]
	require.Len(t, styleRow, 2)
	for _, btn := range styleRow {
		assert.NotContains(t, btn.Text, "Quoted")
	}
}

func TestValidChannel(t *testing.T) {
	assert.True(t, validChannel("@releases"))
	assert.True(t, validChannel("-1001234567890"))
	assert.True(t, validChannel("42"))
	assert.False(t, validChannel("@"))
	assert.False(t, validChannel("releases"))
	assert.False(t, validChannel(""))
}
