package bot

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/trailkeys/keybot/core/telegram/helpers"
	"github.com/trailkeys/keybot/internal/caption"
	"github.com/trailkeys/keybot/internal/errs"
	"github.com/trailkeys/keybot/internal/metrics"
	"github.com/trailkeys/keybot/internal/session"
)

// InProgress feeds the message router: any non-idle session claims the
// user's free-form updates.
func (a *App) InProgress(userID int64) bool {
	return a.store.InProgress(userID)
}

// HandleDocument routes an uploaded file into the active session.
func (a *App) HandleDocument(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID

	if !a.authorized(ctx, userID) {
		metrics.UploadsRejected.WithLabelValues("unauthorized").Inc()
		_ = c.Send("⛔️ You are not on the allow-list. Ask the owner for access.")
		return errs.ErrUnauthorized
	}

	doc := c.Message().Document
	if doc == nil {
		return nil
	}
	if !strings.HasSuffix(strings.ToLower(doc.FileName), ".apk") {
		metrics.UploadsRejected.WithLabelValues("file_type").Inc()
		return c.Send("Only .apk files are accepted.")
	}

	file := session.FileRef{ID: doc.FileID, Name: doc.FileName}
	s, _ := a.store.Peek(userID)

	switch s.Method {
	case session.MethodBatch:
		count, err := a.flow.OnBatchFile(userID, file)
		if err != nil {
			if errors.Is(err, errs.ErrCapacityExceeded) {
				metrics.UploadsRejected.WithLabelValues("capacity").Inc()
				return c.Send(fmt.Sprintf("🗂 Batch is full (%d files max). Wait for the key prompt.", a.maxBatch()))
			}
			return err
		}
		metrics.UploadsReceived.WithLabelValues("batch").Inc()
		return a.upsertProgress(c, userID, collectingText(count, a.maxBatch()))

	case session.MethodSingle:
		_, found, err := a.flow.OnSingleFile(userID, file, c.Message().Caption)
		if err != nil {
			return err
		}
		metrics.UploadsReceived.WithLabelValues("single").Inc()
		if found {
			return a.showPreview(c, userID)
		}
		return c.Send("🔑 Got the file. Now send the key.")

	default:
		return c.Send("Pick an upload method first.", methodMenu())
	}
}

// HandleText advances the key-capture and template-editing steps.
func (a *App) HandleText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	text := strings.TrimSpace(c.Text())

	s, ok := a.store.Peek(userID)
	if !ok {
		return nil
	}

	switch s.Status {
	case session.StatusAwaitingKey:
		prof, err := a.profiles.Get(ctx, userID)
		if err != nil {
			return err
		}
		if err := a.flow.OnKeyText(userID, text, prof.CaptionTemplate); err != nil {
			if errors.Is(err, errs.ErrMissingPlaceholder) {
				return c.Send("⚠️ Your caption template must contain \"Key -\". Set it via /start → Set caption, then send the key again.")
			}
			return err
		}
		return a.showPreview(c, userID)

	case session.StatusEditing:
		if err := a.flow.ApplyTemplate(userID, text); err != nil {
			if errors.Is(err, errs.ErrMissingTemplate) {
				return c.Send("⚠️ The template must contain \"Key -\". Try again.")
			}
			return err
		}
		if err := a.profiles.SetTemplate(ctx, userID, text); err != nil {
			return err
		}
		if cur, ok := a.store.Peek(userID); ok && len(cur.Posted) > 0 {
			// The batch is already out; the new template replaces the live posts.
			return a.recaptionPosted(c, userID)
		}
		return a.showPreview(c, userID)

	case session.StatusCollecting, session.StatusSelectingMethod:
		return c.Send("📥 Send your .apk file(s), or /cancel to abort.")

	case session.StatusPreviewing:
		return c.Send("Use the preview buttons, or /cancel to abort.")
	}
	return nil
}

// handleFreeText is the registry fallback for users with no active session:
// it completes the set-channel / set-caption prompts from the start menu.
func (a *App) handleFreeText(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID
	text := strings.TrimSpace(c.Text())

	what, ok := a.takePending(userID)
	if !ok {
		return c.Send("Use /start to begin.")
	}

	switch what {
	case pendingChannel:
		if !validChannel(text) {
			a.setPending(userID, pendingChannel)
			return c.Send("⚠️ Send a channel as @handle or a numeric chat id.")
		}
		if err := a.profiles.SetDestination(ctx, userID, text); err != nil {
			return err
		}
		return c.Send(fmt.Sprintf("📡 Destination channel set to %s.", text))

	case pendingCaption:
		if !caption.HasPlaceholder(text) {
			a.setPending(userID, pendingCaption)
			return c.Send("⚠️ The caption template must contain \"Key -\". Try again.")
		}
		if err := a.profiles.SetTemplate(ctx, userID, text); err != nil {
			return err
		}
		return c.Send("📝 Caption template saved.")
	}
	return nil
}

// handleStrayDocument answers documents sent outside any upload flow.
func (a *App) handleStrayDocument(c tele.Context) error {
	return c.Send("Start an upload first.", startMenu(a.botName))
}

func (a *App) maxBatch() int {
	if a.cfg.Upload.MaxBatch > 0 {
		return a.cfg.Upload.MaxBatch
	}
	return session.MaxFiles
}

// upsertProgress edits the single progress message in place, creating it on
// the first batch file. A failed edit (message deleted by the user) falls
// back to sending a fresh one.
func (a *App) upsertProgress(c tele.Context, userID int64, text string) error {
	s, ok := a.store.Peek(userID)
	if ok && s.Progress != nil {
		if err := a.msgr.EditAt(*s.Progress, text, nil); err == nil {
			return nil
		}
	}
	msg, err := a.msgr.SendTo(c.Chat().ID, text, nil)
	if err != nil {
		return err
	}
	a.flow.RememberProgress(userID, msg)
	return nil
}

// showPreview renders the confirmation card for the current session.
func (a *App) showPreview(c tele.Context, userID int64) error {
	ctx := tghelpers.BuildContext(c)
	prof, err := a.profiles.Get(ctx, userID)
	if err != nil {
		return err
	}
	s, ok := a.store.Peek(userID)
	if !ok {
		return nil
	}
	return tghelpers.SendMD(c, previewText(s, prof.CaptionTemplate), previewMenu(s.KeyStyle))
}

func validChannel(s string) bool {
	if strings.HasPrefix(s, "@") && len(s) > 1 {
		return true
	}
	digits := strings.TrimPrefix(s, "-")
	if digits == "" {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
