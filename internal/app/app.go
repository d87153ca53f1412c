// Package app assembles the lending bot from the core building blocks.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/leihbot/core/bootstrap"
	corecmd "github.com/m3rciful/leihbot/core/cmd"
	"github.com/m3rciful/leihbot/core/logger"
	tg "github.com/m3rciful/leihbot/core/telegram"
	tghelpers "github.com/m3rciful/leihbot/core/telegram/helpers"
	"github.com/m3rciful/leihbot/core/telegram/middleware"
	"github.com/m3rciful/leihbot/core/telegram/router"
	"github.com/m3rciful/leihbot/internal/leihbot"
	"github.com/m3rciful/leihbot/internal/loan"
)

// App is the bootstrapped lending bot.
type App struct {
	cfg      *Config
	db       *sqlx.DB
	bot      *leihbot.Bot
	registry *tg.Registry
}

var (
	_ corecmd.TelegramApp = (*App)(nil)
	_ corecmd.WorkerApp   = (*App)(nil)
)

// BootstrapOptions tweak Bootstrap, mainly for tests and the migrate command.
type BootstrapOptions struct {
	SkipMigrations bool
	Bootstrap      func(bootstrap.Options) (*bootstrap.Result, error)
}

// Bootstrap initializes logging and storage and builds the bot.
func Bootstrap(cfg *Config, opts BootstrapOptions) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	run := opts.Bootstrap
	if run == nil {
		run = bootstrap.Run
	}
	res, err := run(bootstrap.Options{
		Config:         cfg.CoreConfig(),
		Database:       cfg.Database,
		SkipMigrations: opts.SkipMigrations,
	})
	if err != nil {
		return nil, err
	}
	return New(cfg, res.DB), nil
}

// New builds the app on an open database.
func New(cfg *Config, db *sqlx.DB) *App {
	bot := leihbot.New(leihbot.Options{
		Store:       loan.NewSQLStore(db),
		Replier:     leihbot.TelegramReplier{},
		PendingTTL:  cfg.Conversation.PendingTTL(),
		Location:    cfg.Location(),
		CancelWords: cfg.Lending.CancelWords,
		ConfirmWord: cfg.Lending.ConfirmWord,
	})
	reg := tg.NewRegistry()
	bot.Register(reg)
	return &App{cfg: cfg, db: db, bot: bot, registry: reg}
}

// Bot exposes the lending bot.
func (a *App) Bot() *leihbot.Bot { return a.bot }

// TelegramRunOptions wires commands, conversation text and middlewares.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	admin := middleware.AdminOptions{
		AdminID:  core.Telegram.AdminID,
		OnReject: replyText("This command is reserved for the bot admin."),
	}

	routes := router.CommandRoutes(a.registry, router.CommandRouteOptions{
		AdminID:       admin.AdminID,
		OnAdminReject: admin.OnReject,
	})
	routes = append(routes, router.TextRoutes(a.bot, a.registry, router.TextOptions{
		UnknownDocument: replyText("I only understand text messages."),
		Admin:           admin,
	})...)

	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(core, replyText(slowDownText)),
		Routes:      routes,
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			if a.db == nil {
				return nil
			}
			if err := a.db.Close(); err != nil {
				return fmt.Errorf("app: close database: %w", err)
			}
			logger.Info(ctx, "db", "db.closed")
			return nil
		},
	}, nil
}

// Workers returns the conversation janitor.
func (a *App) Workers() []corecmd.Worker {
	interval := a.cfg.Conversation.SweepInterval()
	return []corecmd.Worker{
		func(ctx context.Context) error {
			logger.Info(ctx, "conversation", "janitor.started",
				slog.Duration("interval", interval),
				slog.Duration("ttl", a.cfg.Conversation.PendingTTL()),
			)
			return a.bot.RunJanitor(ctx, interval)
		},
	}
}

// slowDownText answers updates dropped by the rate limiter.
const slowDownText = "Please slow down a little and try again."

func replyText(text string) tele.HandlerFunc {
	return func(c tele.Context) error {
		return tghelpers.SendText(c, text)
	}
}
