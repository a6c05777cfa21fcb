package router

import (
	"github.com/trailkeys/keybot/core/logger"
	tg "github.com/trailkeys/keybot/core/telegram"
	"github.com/trailkeys/keybot/core/telegram/middleware"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	OwnerID       int64
	OnOwnerReject tele.HandlerFunc

	// AllowList gates every command when set; the owner always passes.
	AllowList      middleware.Allower
	OnAccessReject tele.HandlerFunc
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	ownerOpts := middleware.OwnerOptions{
		OwnerID:  opts.OwnerID,
		OnReject: opts.OnOwnerReject,
	}
	allowOpts := middleware.AllowListOptions{
		OwnerID:  opts.OwnerID,
		List:     opts.AllowList,
		OnReject: opts.OnAccessReject,
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		h := def.Handler
		h = middleware.RecoverMiddleware(h)
		h = middleware.LoggerMiddleware(h)
		if def.OwnerOnly {
			h = middleware.OwnerOnlyMiddleware(ownerOpts)(h)
		} else if opts.AllowList != nil {
			h = middleware.AllowListMiddleware(allowOpts)(h)
		}
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  h,
		})
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "complete"),
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}
