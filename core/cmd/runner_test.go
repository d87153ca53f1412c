package cmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/leihbot/core/config"
	coretelegram "github.com/m3rciful/leihbot/core/telegram"
)

func TestResolveConfigPath(t *testing.T) {
	t.Setenv("LEIHBOT_TEST_CONFIG", "/from/env.yaml")

	p, err := ResolveConfigPath(Options{ConfigPath: "/explicit.yaml", ConfigEnvVar: "LEIHBOT_TEST_CONFIG"})
	require.NoError(t, err)
	require.Equal(t, "/explicit.yaml", p)

	p, err = ResolveConfigPath(Options{ConfigEnvVar: "LEIHBOT_TEST_CONFIG", DefaultConfigPath: "/default.yaml"})
	require.NoError(t, err)
	require.Equal(t, "/from/env.yaml", p)

	p, err = ResolveConfigPath(Options{ConfigEnvVar: "LEIHBOT_TEST_UNSET", DefaultConfigPath: "/default.yaml"})
	require.NoError(t, err)
	require.Equal(t, "/default.yaml", p)

	_, err = ResolveConfigPath(Options{ConfigEnvVar: "LEIHBOT_TEST_UNSET"})
	require.Error(t, err)
}

func TestRunWithWorkersStopsWorkersWhenBotReturns(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stopped := make(chan struct{})
	err := runWithWorkers(ctx, cancel,
		func(context.Context) error { return nil },
		[]Worker{func(ctx context.Context) error {
			<-ctx.Done()
			close(stopped)
			return nil
		}},
	)
	require.NoError(t, err)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("worker was not stopped")
	}
}

func TestRunWithWorkersFailingWorkerStopsBot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	boom := errors.New("janitor failed")
	err := runWithWorkers(ctx, cancel,
		func(ctx context.Context) error {
			<-ctx.Done()
			return nil
		},
		[]Worker{func(context.Context) error { return boom }},
	)
	require.ErrorIs(t, err, boom)
}

type stubConfig struct{ core *coreconfig.Config }

func (s stubConfig) CoreConfig() *coreconfig.Config { return s.core }

type stubApp struct {
	opts    coretelegram.RunOptions
	workers []Worker
}

func (a stubApp) TelegramRunOptions() (coretelegram.RunOptions, error) { return a.opts, nil }
func (a stubApp) Workers() []Worker                                   { return a.workers }

func TestRunChainsHooksAndWorkers(t *testing.T) {
	var calls []string
	app := stubApp{
		opts: coretelegram.RunOptions{
			OnStart: func(context.Context, coretelegram.Runtime) error {
				calls = append(calls, "app.start")
				return nil
			},
			OnStop: func(context.Context, coretelegram.Runtime) error {
				calls = append(calls, "app.stop")
				return nil
			},
		},
	}
	workerStopped := make(chan struct{})
	app.workers = []Worker{func(ctx context.Context) error {
		<-ctx.Done()
		close(workerStopped)
		return nil
	}}

	var loadedFrom string
	err := Run(Options{
		ConfigPath: "/etc/leihbot.yaml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			loadedFrom = path
			return stubConfig{core: &coreconfig.Config{}}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { calls = append(calls, "logger.shutdown"); return nil },
		RunTelegram: func(ctx context.Context, opts coretelegram.RunOptions) error {
			require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
			require.NoError(t, opts.OnStop(ctx, coretelegram.Runtime{}))
			return nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, "/etc/leihbot.yaml", loadedFrom)
	require.Equal(t, []string{"app.start", "app.stop", "logger.shutdown"}, calls)
	<-workerStopped
}

func TestRunRejectsMissingCoreConfig(t *testing.T) {
	err := Run(Options{
		ConfigPath: "/etc/leihbot.yaml",
		LoadConfig: func(string) (ConfigCarrier, error) { return stubConfig{}, nil },
		Bootstrap: func(ConfigCarrier) (TelegramApp, error) {
			t.Fatal("bootstrap must not run")
			return nil, nil
		},
	})
	require.ErrorContains(t, err, "missing core configuration")
}
