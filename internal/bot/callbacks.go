package bot

import (
	"errors"
	"fmt"

	tele "gopkg.in/telebot.v4"

	coretelegram "github.com/trailkeys/keybot/core/telegram"
	"github.com/trailkeys/keybot/core/telegram/callbacks"
	tghelpers "github.com/trailkeys/keybot/core/telegram/helpers"
	"github.com/trailkeys/keybot/core/telegram/keyboard"
	"github.com/trailkeys/keybot/internal/caption"
	"github.com/trailkeys/keybot/internal/dispatch"
	"github.com/trailkeys/keybot/internal/errs"
	"github.com/trailkeys/keybot/internal/session"
)

func (a *App) registerCallbacks(reg *coretelegram.Registry) error {
	entries := map[string]tele.HandlerFunc{
		cbNewUpload:    a.cbNewUpload,
		cbMethodSingle: func(c tele.Context) error { return a.cbChooseMethod(c, session.MethodSingle) },
		cbMethodBatch:  func(c tele.Context) error { return a.cbChooseMethod(c, session.MethodBatch) },
		cbConfirmSend:  a.cbConfirmSend,
		cbStylePlain:   func(c tele.Context) error { return a.cbSetStyle(c, caption.StylePlain) },
		cbStyleQuoted:  func(c tele.Context) error { return a.cbSetStyle(c, caption.StyleQuoted) },
		cbStyleMono:    func(c tele.Context) error { return a.cbSetStyle(c, caption.StyleMonospace) },
		cbEditCaption:  a.cbEditCaption,
		cbCancelUpload: a.cbCancelUpload,
		cbSetChannel:   a.cbSetChannel,
		cbSetCaption:   a.cbSetCaption,
		cbDeleteItem:   a.cbDeleteItem,
	}
	for key, h := range entries {
		if err := reg.RegisterCallback(key, h); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) cbNewUpload(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	if !a.authorized(ctx, userID) {
		_ = c.Send("⛔️ You are not on the allow-list. Ask the owner for access.")
		return errs.ErrUnauthorized
	}
	return tghelpers.EditOrSendMD(c, "How do you want to upload?", methodMenu())
}

func (a *App) cbChooseMethod(c tele.Context, method session.Method) error {
	userID := c.Sender().ID
	if err := a.flow.ChooseMethod(userID, method); err != nil {
		return err
	}
	if method == session.MethodSingle {
		return tghelpers.EditOrSendMD(c, "📄 Send one .apk file. You can put the key right in its caption (`Key - XXXX`).")
	}
	return tghelpers.EditOrSendMD(c, fmt.Sprintf("🗂 Send up to %d .apk files, one after another.", a.maxBatch()))
}

func (a *App) cbConfirmSend(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID

	s, ok := a.store.Peek(userID)
	if !ok {
		_ = c.Send("This menu has expired. Start again.", startMenu(a.botName))
		return errs.ErrSessionExpired
	}
	if s.Status != session.StatusPreviewing || s.Key == "" {
		return c.Send("Nothing to send.")
	}
	if len(s.Posted) > 0 {
		// Already dispatched; the posted menu handles further actions.
		return nil
	}

	prof, err := a.profiles.Get(ctx, userID)
	if err != nil {
		return err
	}

	res, err := a.dispatcher.Dispatch(ctx, dispatch.Batch{
		Files: s.Files,
		Key:   s.Key,
		Style: s.KeyStyle,
	}, prof)
	if err != nil {
		if errors.Is(err, errs.ErrProfileIncomplete) {
			return c.Send("⚠️ Set a destination channel and a caption template first.", startMenu(a.botName))
		}
		if len(res.Posted) > 0 {
			// Partial batch: keep the refs that really went out so they can
			// still be deleted.
			a.flow.RecordPosted(userID, res.Posted)
			s, _ = a.store.Peek(userID)
			return tghelpers.EditOrSendMD(c,
				fmt.Sprintf("⚠️ Sending stopped after %d file(s). The posted items are kept below.", len(res.Posted)),
				postedMenu(s))
		}
		return c.Send("⚠️ Sending failed. Nothing was posted; try again.")
	}

	if !a.flow.CompleteDispatch(userID, res.Posted) {
		// A single post has no per-item menu; the session already ended.
		view := session.Session{Posted: res.Posted}
		return tghelpers.EditOrSendMD(c, postedText(view, res.Link))
	}
	s, _ = a.store.Peek(userID)
	return tghelpers.EditOrSendMD(c, postedText(s, res.Link), postedMenu(s))
}

func (a *App) cbSetStyle(c tele.Context, style caption.Style) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID

	changed, err := a.flow.SetStyle(userID, style)
	if err != nil {
		if errors.Is(err, errs.ErrInvalidState) {
			return c.Send("Nothing to restyle.")
		}
		return err
	}
	if !changed {
		return nil
	}

	s, ok := a.store.Peek(userID)
	if !ok {
		return nil
	}

	if len(s.Posted) == 0 {
		prof, err := a.profiles.Get(ctx, userID)
		if err != nil {
			return err
		}
		return tghelpers.EditOrSendMD(c, previewText(s, prof.CaptionTemplate), previewMenu(s.KeyStyle))
	}
	return a.recaptionPosted(c, userID)
}

// recaptionPosted replaces an already dispatched batch after a style or
// template change: fresh posts go out first, the old ones are deleted only
// after every new send succeeded, and the completed batch ends the session.
func (a *App) recaptionPosted(c tele.Context, userID int64) error {
	ctx := tghelpers.BuildContext(c)

	s, ok := a.store.Peek(userID)
	if !ok || len(s.Posted) == 0 {
		return nil
	}
	prof, err := a.profiles.Get(ctx, userID)
	if err != nil {
		return err
	}
	res, err := a.dispatcher.Recaption(ctx, dispatch.Batch{
		Files: s.Files,
		Key:   s.Key,
		Style: s.KeyStyle,
	}, s.Posted, prof)
	if err != nil {
		return c.Send("⚠️ Updating failed; the original posts are untouched.")
	}

	a.flow.Cancel(userID)
	view := session.Session{Posted: res.Posted}
	return tghelpers.EditOrSendMD(c, postedText(view, res.Link))
}

func (a *App) cbEditCaption(c tele.Context) error {
	if err := a.flow.BeginEdit(c.Sender().ID); err != nil {
		if errors.Is(err, errs.ErrInvalidState) {
			return c.Send("Nothing to edit.")
		}
		return err
	}
	return c.Send("📝 Send the new caption template. It must contain \"Key -\".", keyboard.ForceReply())
}

func (a *App) cbCancelUpload(c tele.Context) error {
	a.flow.Cancel(c.Sender().ID)
	return tghelpers.EditOrSendMD(c, "❌ Upload cancelled.")
}

func (a *App) cbSetChannel(c tele.Context) error {
	a.setPending(c.Sender().ID, pendingChannel)
	return c.Send("📡 Send the destination channel as @handle or a numeric chat id. The bot must be an admin there.", keyboard.ForceReply())
}

func (a *App) cbSetCaption(c tele.Context) error {
	a.setPending(c.Sender().ID, pendingCaption)
	return c.Send("📝 Send the caption template. It must contain \"Key -\" where the key goes.", keyboard.ForceReply())
}

func (a *App) cbDeleteItem(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID

	idx, err := callbacks.PayloadInt(c)
	if err != nil {
		return nil
	}
	s, ok := a.store.Peek(userID)
	if !ok {
		_ = c.Send("This menu has expired. Start again.", startMenu(a.botName))
		return errs.ErrSessionExpired
	}
	if idx < 0 || idx >= len(s.Posted) {
		return nil
	}

	// A remote failure (item already gone) still advances the bookkeeping.
	_ = a.dispatcher.DeleteItem(ctx, s.Posted[idx])

	remaining := a.flow.RemovePosted(userID, idx)
	if remaining == 0 {
		return tghelpers.EditOrSendMD(c, "🗑 All posts deleted. Session closed.")
	}
	s, _ = a.store.Peek(userID)
	return tghelpers.EditOrSendMD(c, postedText(s, ""), postedMenu(s))
}
