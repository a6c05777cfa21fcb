package middleware

import (
	"context"

	tele "gopkg.in/telebot.v4"
)

// OwnerOptions defines how owner-only checks should behave.
type OwnerOptions struct {
	OwnerID  int64
	OnReject tele.HandlerFunc
}

// OwnerOnlyMiddleware ensures that only the bot owner can invoke downstream handlers.
func OwnerOnlyMiddleware(opts OwnerOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.OwnerID != 0 && c.Sender().ID != opts.OwnerID {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

// Allower answers whether a user may use the gated feature.
type Allower interface {
	IsAllowed(ctx context.Context, userID int64) (bool, error)
}

// AllowListOptions configures the allow-list gate. The owner always passes.
type AllowListOptions struct {
	OwnerID  int64
	List     Allower
	OnReject tele.HandlerFunc
}

// AllowListMiddleware rejects users absent from the allow-list before any
// downstream handler runs. A lookup failure counts as a rejection.
func AllowListMiddleware(opts AllowListOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			userID := c.Sender().ID
			if opts.OwnerID != 0 && userID == opts.OwnerID {
				return next(c)
			}
			if opts.List != nil {
				ok, err := opts.List.IsAllowed(context.Background(), userID)
				if err == nil && ok {
					return next(c)
				}
			}
			if opts.OnReject != nil {
				return opts.OnReject(c)
			}
			return nil
		}
	}
}
