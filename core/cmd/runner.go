package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	coreconfig "github.com/m3rciful/leihbot/core/config"
	"github.com/m3rciful/leihbot/core/logger"
	coretelegram "github.com/m3rciful/leihbot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Worker is a background task that runs until ctx is done.
type Worker func(ctx context.Context) error

// WorkerApp is implemented by apps that run background tasks next to the bot.
type WorkerApp interface {
	Workers() []Worker
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	// Context is the parent of the signal context. Defaults to context.Background.
	Context context.Context

	// ConfigPath wins over ConfigEnvVar and DefaultConfigPath when set.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// Run loads configuration, bootstraps the app and serves until SIGINT or
// SIGTERM. Workers of a WorkerApp run next to the bot.
func Run(opts Options) error {
	switch {
	case opts.LoadConfig == nil:
		return errors.New("cmd: LoadConfig is required")
	case opts.Bootstrap == nil:
		return errors.New("cmd: Bootstrap is required")
	}
	startedAt := time.Now()

	application, err := load(opts)
	if err != nil {
		return err
	}
	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	announceLifecycle(&runOpts, startedAt)

	parent := opts.Context
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	var workers []Worker
	if wa, ok := application.(WorkerApp); ok {
		workers = wa.Workers()
	}
	return runWithWorkers(ctx, cancel, func(ctx context.Context) error {
		return run(ctx, runOpts)
	}, workers)
}

func load(opts Options) (TelegramApp, error) {
	path, err := ResolveConfigPath(opts)
	if err != nil {
		return nil, err
	}
	log.Printf("loading config: %s", path)
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg == nil || cfg.CoreConfig() == nil {
		return nil, errors.New("cmd: loaded config is missing core configuration")
	}
	application, err := opts.Bootstrap(cfg)
	if err != nil {
		return nil, fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	return application, nil
}

// announceLifecycle chains ready and shutdown log lines onto the app's hooks.
func announceLifecycle(runOpts *coretelegram.RunOptions, startedAt time.Time) {
	onStart, onStop := runOpts.OnStart, runOpts.OnStop
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.Info(ctx, "app", "ready",
			slog.Duration("startup_duration", logger.Took(startedAt)),
		)
		return nil
	}
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.Info(ctx, "app", "shutdown")
		if onStop != nil {
			return onStop(ctx, rt)
		}
		return nil
	}
}

// ResolveConfigPath picks the config file from opts, then the env var, then the default.
func ResolveConfigPath(opts Options) (string, error) {
	if opts.ConfigPath != "" {
		return opts.ConfigPath, nil
	}
	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	if p := os.Getenv(env); p != "" {
		return p, nil
	}
	if opts.DefaultConfigPath != "" {
		return opts.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
}

// runWithWorkers runs the bot and the workers in one group. The bot returning
// for any reason stops the workers; a failing worker stops the bot.
func runWithWorkers(ctx context.Context, stop context.CancelFunc, bot Worker, workers []Worker) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stop()
		return bot(gctx)
	})
	for _, w := range workers {
		if w != nil {
			g.Go(func() error { return w(gctx) })
		}
	}
	return g.Wait()
}
