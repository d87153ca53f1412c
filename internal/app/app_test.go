package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/leihbot/core/bootstrap"
	"github.com/m3rciful/leihbot/core/database"
	"github.com/m3rciful/leihbot/internal/loan/loantest"
)

const sampleConfig = `
telegram:
  token: "123:abc"
  admin_id: 99
logging:
  level: debug
conversation:
  pending_ttl_seconds: 300
database:
  driver: sqlite
  path: /tmp/leihbot.db
lending:
  timezone: Europe/Berlin
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	require.Equal(t, "123:abc", cfg.Telegram.Token)
	require.EqualValues(t, 99, cfg.Telegram.AdminID)
	require.Equal(t, "longpoll", cfg.Telegram.RunMode)
	require.Equal(t, 5*time.Minute, cfg.Conversation.PendingTTL())
	require.Equal(t, time.Minute, cfg.Conversation.SweepInterval())

	require.Equal(t, database.DriverSQLite, cfg.Database.Driver)
	require.Equal(t, 1, cfg.Database.MaxConnections)

	require.Equal(t, []string{"cancel", "abbrechen"}, cfg.Lending.CancelWords)
	require.Equal(t, "yes", cfg.Lending.ConfirmWord)
	require.Equal(t, "Europe/Berlin", cfg.Location().String())
	require.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LENDING_CONFIRM_WORD", "ja")
	t.Setenv("LENDING_CANCEL_WORDS", "stop,abbrechen")
	t.Setenv("DB_PATH", "/tmp/other.db")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	require.Equal(t, "ja", cfg.Lending.ConfirmWord)
	require.Equal(t, []string{"stop", "abbrechen"}, cfg.Lending.CancelWords)
	require.Equal(t, "/tmp/other.db", cfg.Database.Path)
}

func TestNormalizeLending(t *testing.T) {
	cases := []struct {
		name    string
		lending LendingConfig
		wantErr bool
	}{
		{"defaults", DefaultLending(), false},
		{"empty timezone means utc", LendingConfig{CancelWords: []string{"cancel"}, ConfirmWord: "yes"}, false},
		{"bad timezone", LendingConfig{Timezone: "Mars/Olympus", CancelWords: []string{"cancel"}, ConfirmWord: "yes"}, true},
		{"no cancel word", LendingConfig{CancelWords: []string{" "}, ConfirmWord: "yes"}, true},
		{"no confirm word", LendingConfig{CancelWords: []string{"cancel"}}, true},
		{"confirm is cancel", LendingConfig{CancelWords: []string{"Cancel"}, ConfirmWord: "cancel"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var loc *time.Location
			err := tc.lending.normalize(&loc)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, loc)
		})
	}
}

func TestNormalizeRejectsBrokenSections(t *testing.T) {
	require.Error(t, Normalize(nil))

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	cfg.Database.Driver = "oracle"
	require.Error(t, Normalize(cfg))
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)
	return New(cfg, loantest.OpenDB(t))
}

func TestTelegramRunOptions(t *testing.T) {
	a := newTestApp(t)
	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)

	require.Same(t, a.cfg.CoreConfig(), opts.Config)
	require.Same(t, a.registry, opts.Registry)
	require.NotEmpty(t, opts.Middlewares)

	endpoints := make(map[any]bool, len(opts.Routes))
	for _, r := range opts.Routes {
		require.NotNil(t, r.Handler)
		endpoints[r.Endpoint] = true
	}
	for _, e := range []any{"/lend", "/verleihen", "/return", "/rueckgabe", "/note", "/list_open",
		"/list_closed", "/list_all", "/cancel", "/pending", "/help", "/start", tele.OnText, tele.OnDocument} {
		require.True(t, endpoints[e], "missing route %v", e)
	}
	require.Len(t, opts.Routes, 18)
}

func TestRateLimitedUserIsTold(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []string
	)
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/sendMessage") {
			var body struct {
				Text string `json:"text"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			mu.Lock()
			sent = append(sent, body.Text)
			mu.Unlock()
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":5,"type":"private"}}}`))
	}))
	t.Cleanup(api.Close)

	a := newTestApp(t)
	a.cfg.RateLimit.IntervalMS = 60_000
	opts, err := a.TelegramRunOptions()
	require.NoError(t, err)

	var limit tele.MiddlewareFunc
	for _, mw := range opts.Middlewares {
		if mw.Name == "rate_limit" {
			limit = mw.Use
		}
	}
	require.NotNil(t, limit)

	bot, err := tele.NewBot(tele.Settings{URL: api.URL, Token: "123:abc", Offline: true})
	require.NoError(t, err)
	calls := 0
	h := limit(func(tele.Context) error { calls++; return nil })
	upd := func(id int) tele.Context {
		return bot.NewContext(tele.Update{ID: id, Message: &tele.Message{
			Text:   "/list_open",
			Chat:   &tele.Chat{ID: 5, Type: tele.ChatPrivate},
			Sender: &tele.User{ID: 7},
		}})
	}

	require.NoError(t, h(upd(1)))
	require.NoError(t, h(upd(2)))
	require.Equal(t, 1, calls)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{slowDownText}, sent)
}

func TestWorkersStopWithContext(t *testing.T) {
	a := newTestApp(t)
	workers := a.Workers()
	require.Len(t, workers, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- workers[0](ctx) }()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestBootstrapPassesSections(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	var got bootstrap.Options
	a, err := Bootstrap(cfg, BootstrapOptions{
		SkipMigrations: true,
		Bootstrap: func(o bootstrap.Options) (*bootstrap.Result, error) {
			got = o
			return &bootstrap.Result{DB: loantest.OpenDB(t)}, nil
		},
	})
	require.NoError(t, err)
	require.NotNil(t, a.Bot())
	require.True(t, got.SkipMigrations)
	require.Same(t, cfg.CoreConfig(), got.Config)
	require.Equal(t, cfg.Database, got.Database)

	boom := errors.New("boom")
	_, err = Bootstrap(cfg, BootstrapOptions{
		Bootstrap: func(bootstrap.Options) (*bootstrap.Result, error) { return nil, boom },
	})
	require.ErrorIs(t, err, boom)

	_, err = Bootstrap(nil, BootstrapOptions{})
	require.Error(t, err)
}
