// Package app wires the store, services and both bots into one process.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/tabletop/core/bootstrap"
	"github.com/m3rciful/tabletop/core/cmd"
	coreconfig "github.com/m3rciful/tabletop/core/config"
	"github.com/m3rciful/tabletop/core/logger"
	"github.com/m3rciful/tabletop/core/metrics"
	"github.com/m3rciful/tabletop/core/ops"
	tg "github.com/m3rciful/tabletop/core/telegram"
	"github.com/m3rciful/tabletop/core/telegram/sender"
	"github.com/m3rciful/tabletop/core/telegram/state"
	"github.com/m3rciful/tabletop/internal/apperr"
	"github.com/m3rciful/tabletop/internal/bots/admin"
	"github.com/m3rciful/tabletop/internal/bots/player"
	"github.com/m3rciful/tabletop/internal/bots/shared"
	"github.com/m3rciful/tabletop/internal/campaign"
	"github.com/m3rciful/tabletop/internal/character"
	"github.com/m3rciful/tabletop/internal/config"
	"github.com/m3rciful/tabletop/internal/inventory"
	"github.com/m3rciful/tabletop/internal/invitation"
	"github.com/m3rciful/tabletop/internal/messaging"
	"github.com/m3rciful/tabletop/internal/store"
	"github.com/m3rciful/tabletop/migrations"
)

type botRuntime struct {
	bot  *shared.Bot
	tele *tele.Bot
	bc   coreconfig.BotConfig
	disp *sender.Dispatcher
}

// App owns the infrastructure and both bots.
type App struct {
	cfg     *config.Config
	infra   *bootstrap.Result
	store   *store.Store
	metrics *metrics.Registry
	users   *shared.UserSync
	modules bootstrap.Modules
	bots    []botRuntime
}

// New connects the infrastructure and builds both bots. Bot usernames are
// resolved here so invitation links can be built before polling starts.
func New(cfg *config.Config) (*App, error) {
	infra, err := bootstrap.Run(bootstrap.Options{
		Config:     &cfg.Config,
		Database:   cfg.Database,
		Migrations: migrations.FS,
	})
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, infra: infra}
	if err := a.wire(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() (err error) {
	cfg := a.cfg
	a.store = store.New(a.infra.DB)
	a.metrics = metrics.New(prometheus.DefaultRegisterer)
	metrics.SetDefault(a.metrics)

	adminTele, err := tg.NewBot(&cfg.Config, cfg.Telegram.Admin)
	if err != nil {
		return fmt.Errorf("app: admin bot: %w", err)
	}
	playerTele, err := tg.NewBot(&cfg.Config, cfg.Telegram.Player)
	if err != nil {
		return fmt.Errorf("app: player bot: %w", err)
	}

	// Notifications and handler replies of a bot share one outbound queue.
	adminDisp := sender.NewDispatcher(senderOptions(cfg.Sender))
	playerDisp := sender.NewDispatcher(senderOptions(cfg.Sender))
	defer func() {
		if err != nil {
			adminDisp.Close()
			playerDisp.Close()
		}
	}()

	ids, err := messaging.NewIdentities(
		messaging.NewTelebotIdentity(adminTele.Me.Username, adminTele, adminDisp),
		messaging.NewTelebotIdentity(playerTele.Me.Username, playerTele, playerDisp),
	)
	if err != nil {
		return err
	}

	camps, err := campaign.NewService(a.store.Campaigns, a.store.Participations, a.store.Users, ids, a.metrics)
	if err != nil {
		return err
	}
	invites, err := invitation.NewService(invitation.Deps{
		Invitations:    a.store.Invitations,
		Participations: a.store.Participations,
		Campaigns:      a.store.Campaigns,
		Users:          a.store.Users,
		Identities:     ids,
	}, invitation.WithQRDir(cfg.Invites.QRDir), invitation.WithMetrics(a.metrics))
	if err != nil {
		return err
	}

	chars, err := character.NewService(a.store.Characters, a.store.Users, camps, a.metrics)
	if err != nil {
		return err
	}
	inv, err := inventory.NewService(a.store.Items, camps)
	if err != nil {
		return err
	}

	adminBot, err := admin.New(admin.Deps{
		Campaigns:  camps,
		Invites:    invites,
		Characters: chars,
		Inventory:  inv,
		Sessions:   a.sessions(admin.Name),
	})
	if err != nil {
		return err
	}
	playerBot, err := player.New(player.Deps{
		Campaigns:  camps,
		Invites:    invites,
		Characters: chars,
		Inventory:  inv,
		Sessions:   a.sessions(player.Name),
	})
	if err != nil {
		return err
	}

	a.bots = []botRuntime{
		{bot: adminBot, tele: adminTele, bc: cfg.Telegram.Admin, disp: adminDisp},
		{bot: playerBot, tele: playerTele, bc: cfg.Telegram.Player, disp: playerDisp},
	}
	a.users = shared.NewUserSync(a.store.Users, cfg.Telegram.AdminIDs)
	a.modules = bootstrap.Modules{Seeders: []bootstrap.Seeder{
		bootstrap.Named("admins", bootstrap.SeederFunc(a.seedAdmins)),
	}}
	return nil
}

// sessions keeps each bot's dialog stacks under its own key prefix.
func (a *App) sessions(bot string) state.Store {
	ttl := a.cfg.Redis.SessionTTL
	if a.infra.Redis == nil {
		return state.NewMemoryStore(ttl)
	}
	return state.NewRedisStore(a.infra.Redis, "tabletop:"+bot, ttl)
}

func senderOptions(c coreconfig.SenderConfig) sender.Options {
	return sender.Options{
		QueueSize:  c.QueueSize,
		Workers:    c.Workers,
		MaxRetries: c.MaxRetries,
	}
}

// seedAdmins marks configured administrators before the first update arrives.
func (a *App) seedAdmins(ctx context.Context) error {
	for _, id := range a.cfg.Telegram.AdminIDs {
		err := a.store.Users.SetAdmin(ctx, id, true)
		if apperr.KindOf(err) != apperr.KindNotFound {
			if err != nil {
				return fmt.Errorf("seed admin %d: %w", id, err)
			}
			continue
		}
		// Unknown users get a row without a username until they write to a bot.
		if _, err := a.store.Users.Upsert(ctx, id, "", true); err != nil {
			return fmt.Errorf("seed admin %d: %w", id, err)
		}
	}
	return nil
}

// Run seeds the database and serves both bots and the ops listener until
// ctx is done or one of them fails.
func (a *App) Run(ctx context.Context, hooks cmd.Hooks) error {
	if err := a.modules.Seed(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, rt := range a.bots {
		g.Go(func() error {
			return rt.bot.Run(ctx, shared.RunParams{
				Config:     &a.cfg.Config,
				BotConfig:  rt.bc,
				Tele:       rt.tele,
				Dispatcher: rt.disp,
				Users:      a.users,
				OnStart:    hooks.OnStart,
				OnStop:     hooks.OnStop,
			})
		})
	}
	if a.cfg.Ops.Listen != "" {
		srv := ops.New(ops.Options{
			Listen:   a.cfg.Ops.Listen,
			Gatherer: prometheus.DefaultGatherer,
			Checks:   a.checks(),
		})
		g.Go(func() error { return srv.Run(ctx) })
	}
	return g.Wait()
}

func (a *App) checks() map[string]ops.Check {
	checks := map[string]ops.Check{
		"db": a.infra.DB.PingContext,
	}
	if rdb := a.infra.Redis; rdb != nil {
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	return checks
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	if a.infra == nil {
		return nil
	}
	err := a.infra.Close()
	if err != nil {
		logger.Warn(context.Background(), "app", "close.failed", slog.String("err", err.Error()))
	}
	return err
}
