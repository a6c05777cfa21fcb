// Package bot wires the upload flow, dispatcher, and mirroring engine to the
// Telegram transport: commands, callbacks, and conversation routing.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	corecmd "github.com/trailkeys/keybot/core/cmd"
	coreconfig "github.com/trailkeys/keybot/core/config"
	"github.com/trailkeys/keybot/core/database"
	"github.com/trailkeys/keybot/core/logger"
	coretelegram "github.com/trailkeys/keybot/core/telegram"
	"github.com/trailkeys/keybot/core/telegram/keyboard"
	"github.com/trailkeys/keybot/core/telegram/router"
	"github.com/trailkeys/keybot/internal/dispatch"
	"github.com/trailkeys/keybot/internal/forward"
	"github.com/trailkeys/keybot/internal/metrics"
	"github.com/trailkeys/keybot/internal/session"
	"github.com/trailkeys/keybot/internal/storage"
	"github.com/trailkeys/keybot/internal/upload"
)

// pending next-text capture targets set by the /start menu.
const (
	pendingChannel = "channel"
	pendingCaption = "caption"
)

// App holds the assembled application.
type App struct {
	cfg *coreconfig.Config
	db  *sqlx.DB

	profiles *storage.ProfileRepo
	access   *storage.AccessRepo
	rules    *storage.RuleRepo

	store      *session.Store
	flow       *upload.Flow
	ep         *Endpoint
	msgr       chatMessenger
	dispatcher *dispatch.Dispatcher
	fwd        *forward.Engine

	startedAt time.Time
	botName   string

	pendingMu sync.Mutex
	pending   map[int64]string
}

// Carrier satisfies the runner's config contract.
type Carrier struct {
	cfg *coreconfig.Config
}

// CoreConfig returns the embedded core configuration.
func (c *Carrier) CoreConfig() *coreconfig.Config { return c.cfg }

// LoadConfig reads and normalizes the YAML config with env overrides.
func LoadConfig(path string) (corecmd.ConfigCarrier, error) {
	cfg, err := coreconfig.Load(path)
	if err != nil {
		return nil, err
	}
	return &Carrier{cfg: cfg}, nil
}

// Bootstrap initializes logging, storage, and the domain services.
func Bootstrap(cc corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg := cc.CoreConfig()

	if err := logger.InitLogger(cfg); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init: %w", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database: %w", err)
	}
	if err := database.RunMigrations(cfg.Database); err != nil {
		return nil, fmt.Errorf("bootstrap: migrations: %w", err)
	}

	app := &App{
		cfg:       cfg,
		db:        db,
		profiles:  storage.NewProfileRepo(db),
		access:    storage.NewAccessRepo(db),
		rules:     storage.NewRuleRepo(db),
		store:     session.NewStore(),
		ep:        NewEndpoint(),
		startedAt: time.Now(),
		pending:   make(map[int64]string),
	}
	app.msgr = app.ep
	app.dispatcher = dispatch.New(app.ep)
	app.fwd = forward.New(app.rules, app.ep)

	window := time.Duration(cfg.Upload.DebounceSeconds) * time.Second
	app.flow = upload.NewFlow(app.store, window, cfg.Upload.MaxBatch, app.promptKey)

	return app, nil
}

// TelegramRunOptions assembles registry, middleware, and routes for the core runtime.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)
	if err := a.registerCallbacks(reg); err != nil {
		return coretelegram.RunOptions{}, err
	}
	reg.SetTextFallback(a.handleFreeText)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		OwnerID:        a.cfg.Telegram.OwnerID,
		OnOwnerReject:  rejectUnauthorized,
		AllowList:      a.access,
		OnAccessReject: rejectNotAllowed,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a, reg, router.TextOptions{
		UnknownDocument: a.handleStrayDocument,
	})...)
	routes = append(routes, coretelegram.Route{
		Endpoint: tele.OnChannelPost,
		Handler:  a.handleChannelPost,
	})

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg, nil),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	a.ep.Attach(rt.Bot)
	if rt.Bot.Me != nil {
		a.botName = rt.Bot.Me.Username
	}

	if addr := a.cfg.Metrics.Listen; addr != "" {
		go func() {
			if err := metrics.Serve(addr); err != nil {
				logger.Error(ctx, "app", "metrics.listener",
					slog.String("listen", addr),
					slog.String("err", err.Error()),
				)
			}
		}()
	}
	return nil
}

func (a *App) onStop(context.Context, coretelegram.Runtime) error {
	a.flow.Close()
	return a.db.Close()
}

// authorized reports whether the user may use the upload path.
func (a *App) authorized(ctx context.Context, userID int64) bool {
	if userID == a.cfg.Telegram.OwnerID {
		return true
	}
	ok, err := a.access.IsAllowed(ctx, userID)
	if err != nil {
		logger.Warn(ctx, "service.profiles", "access.check",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return false
	}
	return ok
}

func (a *App) setPending(userID int64, what string) {
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()
	a.pending[userID] = what
}

func (a *App) takePending(userID int64) (string, bool) {
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()
	what, ok := a.pending[userID]
	if ok {
		delete(a.pending, userID)
	}
	return what, ok
}

// chatMessenger is the direct-message surface used outside update handlers:
// the debounce prompt and the in-place progress upserts.
type chatMessenger interface {
	SendTo(userID int64, text string, markup *tele.ReplyMarkup) (session.MsgRef, error)
	EditAt(ref session.MsgRef, text string, markup *tele.ReplyMarkup) error
}

// promptKey fires after the batch debounce window: the session already moved
// to awaiting-key, so only the prompt delivery happens here. The running
// progress message is edited into the prompt; a fresh message goes out only
// when there is no progress ref or the edit fails.
func (a *App) promptKey(userID int64) {
	const prompt = "🔑 All files received. Send the key for this batch."
	markup := keyboard.SingleCancelMarkup(cbCancelUpload)

	if s, ok := a.store.Peek(userID); ok && s.Progress != nil {
		if err := a.msgr.EditAt(*s.Progress, prompt, markup); err == nil {
			return
		}
	}
	msg, err := a.msgr.SendTo(userID, prompt, markup)
	if err != nil {
		logger.Warn(logger.Background(), "service.sessions", "prompt.key",
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return
	}
	a.flow.RememberProgress(userID, msg)
}

func rejectUnauthorized(c tele.Context) error {
	return c.Send("⛔️ You are not allowed to use this command.")
}

func rejectNotAllowed(c tele.Context) error {
	return c.Send("⛔️ You are not on the allow-list. Ask the owner for access.")
}
