package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/trailkeys/keybot/core/config"
	coretelegram "github.com/trailkeys/keybot/core/telegram"
	"github.com/trailkeys/keybot/core/telegram/commands"
	"github.com/trailkeys/keybot/core/telegram/format"
	tghelpers "github.com/trailkeys/keybot/core/telegram/helpers"
	"github.com/trailkeys/keybot/internal/caption"
	"github.com/trailkeys/keybot/internal/storage"
)

func (a *App) registerCommands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.cmdStart,
		Description: "Main menu",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.cmdHelp,
		Description: "How the bot works",
	})
	reg.RegisterCommand("/ping", commands.Command{
		Handler:     a.cmdPing,
		Description: "Uptime check",
	})
	reg.RegisterCommand("/rules", commands.Command{
		Handler:     a.cmdRules,
		Description: "Usage notes",
	})
	reg.RegisterCommand("/cancel", commands.Command{
		Handler:     a.cmdCancel,
		Description: "Abort the current upload",
	})
	reg.RegisterCommand("/reset", commands.Command{
		Handler:     a.cmdReset,
		Description: "Clear all channels and captions",
		OwnerOnly:   true,
	})
	reg.RegisterCommand("/adduser", commands.Command{
		Handler:     a.cmdAddUser,
		Description: "Allow a user id",
		OwnerOnly:   true,
	})
	reg.RegisterCommand("/removeuser", commands.Command{
		Handler:     a.cmdRemoveUser,
		Description: "Revoke a user id",
		OwnerOnly:   true,
	})
	reg.RegisterCommand("/userlist", commands.Command{
		Handler:     a.cmdUserList,
		Description: "List allowed users",
		OwnerOnly:   true,
	})
	reg.RegisterCommand("/setrule", commands.Command{
		Handler:     a.cmdSetRule,
		Description: "Configure a mirroring rule slot",
		OwnerOnly:   true,
	})
	reg.RegisterCommand("/delrule", commands.Command{
		Handler:     a.cmdDelRule,
		Description: "Clear a mirroring rule slot",
		OwnerOnly:   true,
	})
	reg.RegisterCommand("/rulestats", commands.Command{
		Handler:     a.cmdRuleStats,
		Description: "Mirroring rule counters",
		OwnerOnly:   true,
	})
}

func (a *App) cmdStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	user := c.Sender()

	prof, err := a.profiles.Get(ctx, user.ID)
	if err == nil {
		prof.UserID = user.ID
		prof.FirstName = user.FirstName
		prof.Username = user.Username
		_ = a.profiles.Put(ctx, prof)
	}

	return tghelpers.SendMD(c,
		"👋 I publish your .apk files to a channel with a key caption.\n\n"+
			"Set a destination channel and a caption template containing `Key -`, then start an upload.",
		startMenu(a.botName))
}

func (a *App) cmdHelp(c tele.Context) error {
	return tghelpers.SendMD(c,
		"*Upload flow*\n"+
			"1. /start → New upload, pick single or batch.\n"+
			"2. Send your .apk file(s).\n"+
			"3. Send the key (or put `Key - XXXX` in a single file's caption).\n"+
			"4. Check the preview, pick a key style, and confirm.\n\n"+
			"Your caption template must contain `Key -`; the key replaces it in the last posted file.")
}

func (a *App) cmdPing(c tele.Context) error {
	up := time.Since(a.startedAt).Round(time.Second)
	return c.Send(fmt.Sprintf("🏓 pong, up %s", up))
}

func (a *App) cmdRules(c tele.Context) error {
	return tghelpers.SendMD(c,
		"*Usage notes*\n"+
			"• Only .apk files are accepted.\n"+
			fmt.Sprintf("• Batches hold up to %d files; the key caption lands on the last one.\n", a.maxBatch())+
			"• Deleting every posted item closes the session.\n"+
			"• The bot must be an admin in your destination channel.")
}

func (a *App) cmdCancel(c tele.Context) error {
	userID := c.Sender().ID
	if !a.store.InProgress(userID) {
		return c.Send("Nothing to cancel.")
	}
	a.flow.Cancel(userID)
	return c.Send("❌ Upload cancelled.")
}

func (a *App) cmdReset(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if err := a.profiles.ResetAll(ctx); err != nil {
		return err
	}
	return c.Send("♻️ All destination channels and caption templates cleared.")
}

func (a *App) cmdAddUser(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	id, err := argUserID(c)
	if err != nil {
		return c.Send("Usage: /adduser <user id>")
	}
	if err := a.access.Add(ctx, id); err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("✅ User %d allowed.", id))
}

func (a *App) cmdRemoveUser(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	id, err := argUserID(c)
	if err != nil {
		return c.Send("Usage: /removeuser <user id>")
	}
	if err := a.access.Remove(ctx, id); err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("🚫 User %d removed.", id))
}

func (a *App) cmdUserList(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	users, err := a.access.List(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return c.Send("The allow-list is empty.")
	}

	profs, err := a.profiles.List(ctx)
	if err != nil {
		return err
	}
	names := make(map[int64]storage.Profile, len(profs))
	for _, p := range profs {
		names[p.UserID] = p
	}

	var b strings.Builder
	b.WriteString("*Allowed users*\n")
	for _, u := range users {
		line := strconv.FormatInt(u.UserID, 10)
		if p, ok := names[u.UserID]; ok && p.FirstName != "" {
			name, _ := format.EscapeMarkdown(p.FirstName, format.MarkdownV1)
			line = fmt.Sprintf("%s — %s", line, name)
			if p.Username != "" {
				handle, _ := format.EscapeMarkdown(p.Username, format.MarkdownV1)
				line += " (@" + handle + ")"
			}
		}
		b.WriteString(line + "\n")
	}
	return tghelpers.SendMD(c, b.String())
}

// cmdSetRule configures one mirroring slot:
// /setrule <slot> <source> <destination> <caption template...>
// The slot's size window comes from configuration.
func (a *App) cmdSetRule(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	rule, err := parseRuleArgs(c.Args(), a.cfg.Forward.Slots)
	if err != nil {
		return c.Send(err.Error())
	}
	if err := a.rules.Put(ctx, rule); err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("🔁 Rule %d: %s → %s", rule.Slot, rule.SourceChannel, rule.DestinationChannel))
}

// parseRuleArgs validates /setrule arguments. Errors carry the user-facing
// reply text.
func parseRuleArgs(args []string, slots []coreconfig.ForwardSlotConfig) (storage.ForwardRule, error) {
	if len(args) < 4 {
		return storage.ForwardRule{}, errors.New("Usage: /setrule <slot 1-3> <source> <destination> <caption template with \"Key -\">")
	}
	slot, err := strconv.Atoi(args[0])
	if err != nil || slot < 1 || slot > 3 {
		return storage.ForwardRule{}, errors.New("Slot must be 1, 2, or 3.")
	}
	source, destination := args[1], args[2]
	if !validChannel(source) || !validChannel(destination) {
		return storage.ForwardRule{}, errors.New("Channels must be @handles or numeric chat ids.")
	}
	template := strings.Join(args[3:], " ")
	if !caption.HasPlaceholder(template) {
		return storage.ForwardRule{}, errors.New("The caption template must contain \"Key -\" where the key goes.")
	}

	var minBytes, maxBytes int64
	if slot <= len(slots) {
		minBytes, maxBytes = slots[slot-1].MinBytes, slots[slot-1].MaxBytes
	}
	return storage.ForwardRule{
		Slot:               slot,
		SourceChannel:      source,
		DestinationChannel: destination,
		CaptionTemplate:    template,
		MinBytes:           minBytes,
		MaxBytes:           maxBytes,
	}, nil
}

func (a *App) cmdDelRule(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	args := c.Args()
	if len(args) != 1 {
		return c.Send("Usage: /delrule <slot 1-3>")
	}
	slot, err := strconv.Atoi(args[0])
	if err != nil || slot < 1 || slot > 3 {
		return c.Send("Slot must be 1, 2, or 3.")
	}
	if err := a.rules.Delete(ctx, slot); err != nil {
		return err
	}
	return c.Send(fmt.Sprintf("🔁 Rule %d cleared.", slot))
}

func (a *App) cmdRuleStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	rules, err := a.rules.List(ctx)
	if err != nil {
		return err
	}
	if len(rules) == 0 {
		return c.Send("No mirroring rules configured.")
	}

	var b strings.Builder
	b.WriteString("*Mirroring rules*\n")
	for _, r := range rules {
		fmt.Fprintf(&b, "%d. %s → %s — %d completed\n",
			r.Slot, r.SourceChannel, r.DestinationChannel, r.CompletedCount)
	}
	return tghelpers.SendMD(c, b.String())
}

func argUserID(c tele.Context) (int64, error) {
	args := c.Args()
	if len(args) != 1 {
		return 0, fmt.Errorf("expected one argument")
	}
	return strconv.ParseInt(args[0], 10, 64)
}
