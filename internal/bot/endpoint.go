package bot

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/trailkeys/keybot/internal/session"
)

// ErrNotConnected is returned for outbound calls before the bot is attached.
var ErrNotConnected = errors.New("bot: telegram connection not attached")

// chatRef addresses a channel by @handle or numeric id string. The Bot API
// accepts both as chat_id.
type chatRef string

func (r chatRef) Recipient() string { return string(r) }

// Endpoint adapts telebot to the dispatcher and forwarding engine. The bot
// handle is attached at startup, after telebot builds the connection.
type Endpoint struct {
	bot atomic.Pointer[tele.Bot]
}

// NewEndpoint returns an unattached endpoint.
func NewEndpoint() *Endpoint {
	return &Endpoint{}
}

// Attach wires the live bot connection.
func (e *Endpoint) Attach(b *tele.Bot) {
	e.bot.Store(b)
}

func (e *Endpoint) conn() (*tele.Bot, error) {
	b := e.bot.Load()
	if b == nil {
		return nil, ErrNotConnected
	}
	return b, nil
}

// SendFile posts one document to the destination channel with its caption.
func (e *Endpoint) SendFile(_ context.Context, destination string, file session.FileRef, captionText string) (session.PostRef, error) {
	b, err := e.conn()
	if err != nil {
		return session.PostRef{}, err
	}
	doc := &tele.Document{
		File:     tele.File{FileID: file.ID},
		FileName: file.Name,
		Caption:  captionText,
	}
	// Classic Markdown: tolerant of arbitrary template text, still renders
	// the inline-code key styles.
	msg, err := b.Send(chatRef(destination), doc, &tele.SendOptions{ParseMode: tele.ModeMarkdown})
	if err != nil {
		return session.PostRef{}, err
	}
	return session.PostRef{ChatID: msg.Chat.ID, MessageID: msg.ID}, nil
}

// DeletePost removes a previously posted item.
func (e *Endpoint) DeletePost(_ context.Context, ref session.PostRef) error {
	b, err := e.conn()
	if err != nil {
		return err
	}
	return b.Delete(tele.StoredMessage{
		MessageID: strconv.Itoa(ref.MessageID),
		ChatID:    ref.ChatID,
	})
}

// SendTo delivers a plain bot message to a user chat, outside any update
// context (debounce prompts fire from a timer goroutine).
func (e *Endpoint) SendTo(userID int64, text string, markup *tele.ReplyMarkup) (session.MsgRef, error) {
	b, err := e.conn()
	if err != nil {
		return session.MsgRef{}, err
	}
	var msg *tele.Message
	if markup != nil {
		msg, err = b.Send(tele.ChatID(userID), text, markup)
	} else {
		msg, err = b.Send(tele.ChatID(userID), text)
	}
	if err != nil {
		return session.MsgRef{}, err
	}
	return session.MsgRef{ChatID: msg.Chat.ID, MessageID: msg.ID}, nil
}

// EditAt edits a previously sent bot message in place.
func (e *Endpoint) EditAt(ref session.MsgRef, text string, markup *tele.ReplyMarkup) error {
	b, err := e.conn()
	if err != nil {
		return err
	}
	stored := tele.StoredMessage{
		MessageID: strconv.Itoa(ref.MessageID),
		ChatID:    ref.ChatID,
	}
	if markup != nil {
		_, err = b.Edit(stored, text, markup)
	} else {
		_, err = b.Edit(stored, text)
	}
	return err
}
