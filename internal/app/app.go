// Package app assembles the door shop from its configuration: database,
// services, chat session stores and the Telegram runtime.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/doorshop/core/bootstrap"
	corecmd "github.com/m3rciful/doorshop/core/cmd"
	"github.com/m3rciful/doorshop/core/logger"
	tg "github.com/m3rciful/doorshop/core/telegram"
	"github.com/m3rciful/doorshop/core/telegram/gateway"
	tghelpers "github.com/m3rciful/doorshop/core/telegram/helpers"
	"github.com/m3rciful/doorshop/core/telegram/middleware"
	tgsender "github.com/m3rciful/doorshop/core/telegram/sender"
	"github.com/m3rciful/doorshop/core/telegram/session"
	"github.com/m3rciful/doorshop/core/telegram/state"
	"github.com/m3rciful/doorshop/internal/config"
	"github.com/m3rciful/doorshop/internal/shop/bot"
	"github.com/m3rciful/doorshop/internal/shop/cart"
	"github.com/m3rciful/doorshop/internal/shop/catalog"
	"github.com/m3rciful/doorshop/internal/shop/export"
	"github.com/m3rciful/doorshop/internal/shop/media"
	"github.com/m3rciful/doorshop/internal/shop/repository"

	tele "gopkg.in/telebot.v4"
)

// App owns the long-lived resources of a running shop.
type App struct {
	cfg        *config.Config
	db         *sqlx.DB
	tgBot      *tele.Bot
	dispatcher *tgsender.Dispatcher
	registry   *tg.Registry
	shop       *bot.Bot
	dialogs    *state.Store
}

// Bootstrap satisfies cmd.Options.Bootstrap.
func Bootstrap(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return New(ctx, cfg)
}

// New runs the bootstrap pipeline and wires every component.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.Database,
		Seeders:  []bootstrap.Seeder{repository.SectionSeeder()},
		Dirs: []string{
			filepath.Join(cfg.Shop.MediaDir, media.Products),
			filepath.Join(cfg.Shop.MediaDir, media.Sections),
		},
	})
	if err != nil {
		return nil, err
	}

	tgBot, err := tg.NewBot(cfg.CoreConfig())
	if err != nil {
		_ = res.DB.Close()
		return nil, err
	}
	dispatcher := tgsender.NewDispatcher(tgsender.Options{MaxRetries: 2})
	tghelpers.SetDispatcher(dispatcher)

	repo := repository.New(res.DB)
	gw := gateway.NewTelebot(tgBot)
	files := media.New(cfg.Shop.MediaDir, gw)
	dialogs := state.NewStore()
	shop := bot.New(bot.Deps{
		Gateway: gw,
		Session: session.New(gw),
		Dialogs: dialogs,
		Catalog: catalog.New(repo, files, cfg.Shop.PageSize),
		Cart: cart.New(cart.Options{
			Store:    repo,
			Notifier: gw,
			Queue:    dispatcher,
			AdminIDs: cfg.Telegram.AdminIDs,
		}),
		Media:  files,
		Export: export.New(repo, gw),
		Admin:  middleware.AdminOptions{AdminIDs: cfg.Telegram.AdminIDs},
	})

	reg := tg.NewRegistry()
	if err := shop.Register(reg); err != nil {
		dispatcher.Close()
		_ = res.DB.Close()
		return nil, fmt.Errorf("app: register handlers: %w", err)
	}

	logger.Info(ctx, logger.CompWire, "wired",
		slog.Int("admins", len(cfg.Telegram.AdminIDs)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
		slog.Int("commands", len(reg.Commands())),
		slog.String("media_dir", cfg.Shop.MediaDir),
		slog.Int("page_size", cfg.Shop.PageSize),
	)

	return &App{
		cfg:        cfg,
		db:         res.DB,
		tgBot:      tgBot,
		dispatcher: dispatcher,
		registry:   reg,
		shop:       shop,
		dialogs:    dialogs,
	}, nil
}

// TelegramRunOptions builds the runtime options for tg.RunTelegram.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Bot:         a.tgBot,
		Dispatcher:  a.dispatcher,
		Middlewares: tg.DefaultMiddlewares(core, nil),
		Routes:      a.shop.Routes(a.registry),
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			logger.Info(ctx, logger.CompDialog, "dialogs.dropped_on_stop", slog.Int("dialogs", a.dialogs.Len()))
			if n := a.dispatcher.Pending(); n > 0 {
				logger.Info(ctx, logger.CompSender, "queue.drain", slog.Int("pending", n))
			}
			return nil
		},
	}, nil
}

// Close releases the database pool.
func (a *App) Close() error {
	start := time.Now()
	err := a.db.Close()
	logger.Info(context.Background(), logger.CompApp, "db.close",
		slog.String("status", logger.Status(err)),
		slog.Duration("duration", logger.Took(start)),
		logger.Err(err),
	)
	return err
}
