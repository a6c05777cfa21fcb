package bot

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/trailkeys/keybot/core/telegram/keyboard"
	"github.com/trailkeys/keybot/internal/caption"
	"github.com/trailkeys/keybot/internal/session"
)

// Callback registry keys. Buttons carry these as the callback unique.
const (
	cbNewUpload    = "new_upload"
	cbMethodSingle = "method_single"
	cbMethodBatch  = "method_batch"
	cbConfirmSend  = "confirm_send"
	cbStylePlain   = "style_plain"
	cbStyleQuoted  = "style_quoted"
	cbStyleMono    = "style_mono"
	cbEditCaption  = "edit_caption"
	cbCancelUpload = "cancel_upload"
	cbSetChannel   = "set_channel"
	cbSetCaption   = "set_caption"
	cbDeleteItem   = "delete_item"
)

// startMenu builds the entry menu. botName adds an add-to-channel link when
// known (it is learned from the live connection at startup).
func startMenu(botName string) *tele.ReplyMarkup {
	rows := [][]keyboard.InlineBtn{
		{{Text: "📤 New upload", Unique: cbNewUpload}},
		{
			{Text: "📡 Set channel", Unique: cbSetChannel},
			{Text: "📝 Set caption", Unique: cbSetCaption},
		},
	}
	if botName != "" {
		rows = append(rows, []keyboard.InlineBtn{{
			Text: "➕ Add bot to a channel",
			URL:  "https://t.me/" + botName + "?startchannel=true",
		}})
	}
	return keyboard.InlineButtonsRows(rows...)
}

func methodMenu() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "📄 Single file", Unique: cbMethodSingle},
			{Text: "🗂 Batch (up to 3)", Unique: cbMethodBatch},
		},
		[]keyboard.InlineBtn{{Text: "❌ Cancel", Unique: cbCancelUpload}},
	)
}

func previewMenu(current caption.Style) *tele.ReplyMarkup {
	styleRow := []keyboard.InlineBtn{}
	if current != caption.StylePlain {
		styleRow = append(styleRow, keyboard.InlineBtn{Text: "Aa Plain", Unique: cbStylePlain})
	}
	if current != caption.StyleQuoted {
		styleRow = append(styleRow, keyboard.InlineBtn{Text: "❝ Quoted", Unique: cbStyleQuoted})
	}
	if current != caption.StyleMonospace {
		styleRow = append(styleRow, keyboard.InlineBtn{Text: "</> Mono", Unique: cbStyleMono})
	}
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{{Text: "✅ Send", Unique: cbConfirmSend}},
		styleRow,
		[]keyboard.InlineBtn{
			{Text: "📝 Edit caption", Unique: cbEditCaption},
			{Text: "❌ Cancel", Unique: cbCancelUpload},
		},
	)
}

// previewText renders the confirmation message: the collected files plus the
// caption exactly as the last posted item will carry it.
func previewText(s session.Session, template string) string {
	var b strings.Builder
	b.WriteString("*Preview*\n")
	for i, f := range s.Files {
		fmt.Fprintf(&b, "%d. `%s`\n", i+1, f.Name)
	}
	b.WriteString("\nCaption:\n")
	b.WriteString(caption.Render(template, s.Key, s.KeyStyle, len(s.Files), len(s.Files)))
	return b.String()
}

// postedMenu offers per-item deletion and re-styling for a dispatched batch.
func postedMenu(s session.Session) *tele.ReplyMarkup {
	deleteRow := make([]keyboard.InlineBtn, 0, len(s.Posted))
	for i := range s.Posted {
		deleteRow = append(deleteRow, keyboard.InlineBtn{
			Text:   "🗑 " + strconv.Itoa(i + 1),
			Unique: cbDeleteItem,
			Data:   strconv.Itoa(i),
		})
	}
	styleRow := []keyboard.InlineBtn{}
	if s.KeyStyle != caption.StylePlain {
		styleRow = append(styleRow, keyboard.InlineBtn{Text: "Aa Plain", Unique: cbStylePlain})
	}
	if s.KeyStyle != caption.StyleQuoted {
		styleRow = append(styleRow, keyboard.InlineBtn{Text: "❝ Quoted", Unique: cbStyleQuoted})
	}
	if s.KeyStyle != caption.StyleMonospace {
		styleRow = append(styleRow, keyboard.InlineBtn{Text: "</> Mono", Unique: cbStyleMono})
	}
	return keyboard.InlineButtonsRows(deleteRow, styleRow,
		[]keyboard.InlineBtn{{Text: "📝 Edit caption", Unique: cbEditCaption}},
	)
}

func postedText(s session.Session, link string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Posted %d file(s).", len(s.Posted))
	if link != "" {
		fmt.Fprintf(&b, "\n%s", link)
	}
	return b.String()
}

func collectingText(count, max int) string {
	return fmt.Sprintf("📥 Received %d/%d file(s). Send more or wait a moment to continue.", count, max)
}
