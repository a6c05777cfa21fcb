package bot

import (
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/trailkeys/keybot/core/telegram/helpers"
	"github.com/trailkeys/keybot/internal/forward"
	"github.com/trailkeys/keybot/internal/session"
)

// handleChannelPost feeds documents posted in source channels to the
// mirroring engine. Posts from unconfigured channels are ignored.
func (a *App) handleChannelPost(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Document == nil || msg.Chat == nil {
		return nil
	}

	source := msg.Chat.Username
	if source == "" {
		// Private channels are matched by numeric id.
		source = tele.ChatID(msg.Chat.ID).Recipient()
	}

	_, err := a.fwd.HandlePost(tghelpers.BuildContext(c), forward.Post{
		SourceChannel: source,
		File: session.FileRef{
			ID:   msg.Document.FileID,
			Name: msg.Document.FileName,
		},
		SizeBytes: msg.Document.FileSize,
		Caption:   msg.Caption,
	})
	return err
}
