// Package dispatch sends finished batches to destination channels and keeps
// the bookkeeping needed to re-caption or delete them afterwards.
package dispatch

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/trailkeys/keybot/core/logger"
	"github.com/trailkeys/keybot/internal/caption"
	"github.com/trailkeys/keybot/internal/errs"
	"github.com/trailkeys/keybot/internal/metrics"
	"github.com/trailkeys/keybot/internal/session"
	"github.com/trailkeys/keybot/internal/storage"
)

// Endpoint is the messaging capability the dispatcher needs. All calls are
// fallible; failures are absorbed here and never crash the state machine.
type Endpoint interface {
	SendFile(ctx context.Context, destination string, file session.FileRef, captionText string) (session.PostRef, error)
	DeletePost(ctx context.Context, ref session.PostRef) error
}

// Batch is a snapshot of the session fields needed to post. The dispatcher
// works on snapshots so no store lock is held across network calls.
type Batch struct {
	Files []session.FileRef
	Key   string
	Style caption.Style
}

// Result reports what a dispatch actually created. On failure Posted holds
// only the refs that were really sent, in send order, so the caller's
// bookkeeping never claims success for an item that was not posted.
type Result struct {
	Posted []session.PostRef
	Link   string
}

// Dispatcher posts batches through an Endpoint.
type Dispatcher struct {
	ep Endpoint
}

// New constructs a Dispatcher.
func New(ep Endpoint) *Dispatcher {
	return &Dispatcher{ep: ep}
}

// Dispatch sends every file of the batch in order with its rendered caption.
// The first send failure aborts the rest; refs already created are returned
// alongside the error.
func (d *Dispatcher) Dispatch(ctx context.Context, b Batch, prof storage.Profile) (Result, error) {
	if !prof.Complete() || b.Key == "" || len(b.Files) == 0 {
		metrics.Dispatches.WithLabelValues("rejected").Inc()
		return Result{}, errs.ErrProfileIncomplete
	}

	captions := caption.RenderBatch(prof.CaptionTemplate, b.Key, b.Style, len(b.Files))
	res := Result{Posted: make([]session.PostRef, 0, len(b.Files))}

	for i, file := range b.Files {
		ref, err := d.ep.SendFile(ctx, prof.DestinationChannel, file, captions[i])
		if err != nil {
			metrics.Dispatches.WithLabelValues("fail").Inc()
			logger.Error(ctx, "service.dispatch", "dispatch.send",
				slog.String("status", "fail"),
				slog.String("destination", prof.DestinationChannel),
				slog.Int("position", i+1),
				slog.Int("files", len(b.Files)),
				slog.String("err", err.Error()),
			)
			return res, errs.Wrap(errs.ErrDispatchFailed, err)
		}
		res.Posted = append(res.Posted, ref)
	}

	if link, ok := PostLink(prof.DestinationChannel, res.Posted[len(res.Posted)-1]); ok {
		res.Link = link
	}

	metrics.Dispatches.WithLabelValues("ok").Inc()
	logger.Info(ctx, "service.dispatch", "dispatch.sent",
		slog.String("status", "ok"),
		slog.String("destination", prof.DestinationChannel),
		slog.Int("files", len(res.Posted)),
	)
	return res, nil
}

// Recaption replaces previously posted items with freshly rendered ones.
// New posts are all sent before any old post is deleted, so a send failure
// never loses the batch. Old-post delete failures are swallowed.
func (d *Dispatcher) Recaption(ctx context.Context, b Batch, old []session.PostRef, prof storage.Profile) (Result, error) {
	res, err := d.Dispatch(ctx, b, prof)
	if err != nil {
		metrics.Recaptions.WithLabelValues("fail").Inc()
		return res, err
	}

	for _, ref := range old {
		if delErr := d.ep.DeletePost(ctx, ref); delErr != nil {
			logger.Warn(ctx, "service.dispatch", "recaption.delete_old",
				slog.String("status", "fail"),
				slog.Int("post_id", ref.MessageID),
				slog.String("err", delErr.Error()),
			)
		}
	}

	metrics.Recaptions.WithLabelValues("ok").Inc()
	return res, nil
}

// DeleteItem removes one remote post. A remote failure (item already gone)
// is reported as a wrapped DeleteFailed for logging, but callers advance
// their bookkeeping either way.
func (d *Dispatcher) DeleteItem(ctx context.Context, ref session.PostRef) error {
	if err := d.ep.DeletePost(ctx, ref); err != nil {
		logger.Warn(ctx, "service.dispatch", "delete.item",
			slog.String("status", "fail"),
			slog.Int("post_id", ref.MessageID),
			slog.String("err", err.Error()),
		)
		return errs.Wrap(errs.ErrDeleteFailed, err)
	}
	metrics.PostsDeleted.Inc()
	return nil
}

// PostLink derives a human-viewable link for a posted item. Public channels
// addressed by @handle get a t.me link; private numeric ids have no viewable
// link and degrade to none.
func PostLink(destination string, ref session.PostRef) (string, bool) {
	handle := strings.TrimSpace(destination)
	if !strings.HasPrefix(handle, "@") {
		return "", false
	}
	handle = strings.TrimPrefix(handle, "@")
	if handle == "" || ref.MessageID == 0 {
		return "", false
	}
	return "https://t.me/" + handle + "/" + strconv.Itoa(ref.MessageID), true
}
