// Package forward mirrors files from configured source channels to their
// destinations when the caption carries a key and the size window matches.
package forward

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/trailkeys/keybot/core/logger"
	"github.com/trailkeys/keybot/internal/caption"
	"github.com/trailkeys/keybot/internal/metrics"
	"github.com/trailkeys/keybot/internal/session"
	"github.com/trailkeys/keybot/internal/storage"
)

// Rules is the slice of RuleRepo the engine needs.
type Rules interface {
	List(ctx context.Context) ([]storage.ForwardRule, error)
	IncrementCompleted(ctx context.Context, slot int) error
}

// Sender posts one mirrored file.
type Sender interface {
	SendFile(ctx context.Context, destination string, file session.FileRef, captionText string) (session.PostRef, error)
}

// Post is an incoming channel post the engine may mirror.
type Post struct {
	SourceChannel string
	File          session.FileRef
	SizeBytes     int64
	Caption       string
}

// Engine matches channel posts against the configured rule slots.
type Engine struct {
	rules Rules
	out   Sender
}

// New constructs an Engine.
func New(rules Rules, out Sender) *Engine {
	return &Engine{rules: rules, out: out}
}

// HandlePost mirrors one channel post if any rule slot accepts it. It reports
// whether a mirror happened. Posts without a recognizable key, or outside
// every slot's size window, are skipped silently.
func (e *Engine) HandlePost(ctx context.Context, p Post) (bool, error) {
	rules, err := e.rules.List(ctx)
	if err != nil {
		return false, err
	}

	rule, ok := match(rules, p)
	if !ok {
		return false, nil
	}
	slot := strconv.Itoa(rule.Slot)

	key, ok := caption.ExtractKey(p.Caption)
	if !ok {
		metrics.Forwards.WithLabelValues(slot, "no_key").Inc()
		logger.Debug(ctx, "service.forward", "mirror.skip",
			slog.String("slot", slot),
			slog.String("reason", "no_key"),
		)
		return false, nil
	}

	text := caption.Render(rule.CaptionTemplate, key, caption.StylePlain, 1, 1)
	ref, err := e.out.SendFile(ctx, rule.DestinationChannel, p.File, text)
	if err != nil {
		metrics.Forwards.WithLabelValues(slot, "fail").Inc()
		logger.Error(ctx, "service.forward", "mirror.send",
			slog.String("status", "fail"),
			slog.String("slot", slot),
			slog.String("destination", rule.DestinationChannel),
			slog.String("err", err.Error()),
		)
		return false, err
	}

	if err := e.rules.IncrementCompleted(ctx, rule.Slot); err != nil {
		// Mirror already happened; a stale counter is not worth failing over.
		logger.Warn(ctx, "service.forward", "mirror.count",
			slog.String("slot", slot),
			slog.String("err", err.Error()),
		)
	}

	metrics.Forwards.WithLabelValues(slot, "ok").Inc()
	logger.Info(ctx, "service.forward", "mirror.sent",
		slog.String("status", "ok"),
		slog.String("slot", slot),
		slog.String("destination", rule.DestinationChannel),
		slog.Int("post_id", ref.MessageID),
		slog.Int64("size_bytes", p.SizeBytes),
	)
	return true, nil
}

// match returns the lowest-slot rule whose source and size window fit.
func match(rules []storage.ForwardRule, p Post) (storage.ForwardRule, bool) {
	src := normalizeChannel(p.SourceChannel)
	for _, r := range rules {
		if normalizeChannel(r.SourceChannel) != src {
			continue
		}
		if !r.Accepts(p.SizeBytes) {
			continue
		}
		return r, true
	}
	return storage.ForwardRule{}, false
}

func normalizeChannel(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}
