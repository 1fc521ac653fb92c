package shared

import (
	"context"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/tabletop/core/config"
	tg "github.com/m3rciful/tabletop/core/telegram"
	tghelpers "github.com/m3rciful/tabletop/core/telegram/helpers"
	"github.com/m3rciful/tabletop/core/telegram/router"
	"github.com/m3rciful/tabletop/core/telegram/sender"
	"github.com/m3rciful/tabletop/core/telegram/state"
)

// Bot is one Telegram bot: its command and callback registry and its dialogs.
type Bot struct {
	Name     string
	Registry *tg.Registry
	Dialogs  *state.Manager
}

// RunParams are the runtime pieces a Bot needs to start.
type RunParams struct {
	Config     *coreconfig.Config
	BotConfig  coreconfig.BotConfig
	Tele       *tele.Bot
	Dispatcher *sender.Dispatcher
	Users      *UserSync

	OnStart func(ctx context.Context, rt tg.Runtime) error
	OnStop  func(ctx context.Context, rt tg.Runtime) error
}

// guardedDialogs presents errors raised by window text handlers.
type guardedDialogs struct{ *state.Manager }

func (g guardedDialogs) ManagerHandler(c tele.Context) error {
	return Guard(g.Manager.ManagerHandler)(c)
}

// Routes builds the command, callback and text routes of b.
func (b *Bot) Routes(cfg *coreconfig.Config) []tg.Route {
	var adminIDs []int64
	if cfg != nil {
		adminIDs = cfg.Telegram.AdminIDs
	}
	routes := router.CommandRoutes(b.Registry, router.CommandRouteOptions{
		AdminIDs: adminIDs,
		OnAdminReject: func(c tele.Context) error {
			return tghelpers.SendHTML(c, "🔒 This command is available to administrators only.")
		},
	})
	routes = append(routes, router.CallbackRoute(b.Registry, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(guardedDialogs{b.Dialogs}, b.Registry, router.TextOptions{
		UnknownDocument: func(c tele.Context) error {
			return tghelpers.SendHTML(c, "I can only read text messages here.")
		},
	})...)
	return routes
}

// Run starts b and blocks until ctx is done.
func (b *Bot) Run(ctx context.Context, p RunParams) error {
	mws := tg.DefaultMiddlewares(p.Config, func(c tele.Context) error {
		return tghelpers.Answer(c, "⏳ Too many requests, slow down a little.", false)
	})
	if p.Users != nil {
		mws = append(mws, tg.Middleware{Name: "user", Use: p.Users.Middleware})
	}
	return tg.RunTelegram(ctx, tg.RunOptions{
		Name:        b.Name,
		Config:      p.Config,
		BotConfig:   p.BotConfig,
		Bot:         p.Tele,
		Registry:    b.Registry,
		Dispatcher:  p.Dispatcher,
		Middlewares: mws,
		Routes:      b.Routes(p.Config),
		OnStart:     p.OnStart,
		OnStop:      p.OnStop,
	})
}
