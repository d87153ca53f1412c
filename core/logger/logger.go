package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/leihbot/core/buildinfo"
	coreconfig "github.com/m3rciful/leihbot/core/config"
)

var (
	initOnce sync.Once
	levelVar slog.LevelVar
	active   *sinks

	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the base logger. Until InitLogger runs it discards everything.
	L *slog.Logger
)

func init() {
	setBase(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func setBase(l *slog.Logger) {
	L = l
}

// settings is the logging section resolved to concrete values.
type settings struct {
	format   logFormat
	level    slog.Level
	keyOrder []string
	sample   [2]int
	profile  string
	dir      string
	botFile  string
	errFile  string
}

func resolve(cfg *coreconfig.Config) settings {
	s := settings{
		format:   formatJSON,
		level:    slog.LevelInfo,
		keyOrder: append([]string(nil), defaultKeyOrder...),
		sample:   [2]int{1, 50},
		profile:  "prod",
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging
	if p := strings.ToLower(strings.TrimSpace(lc.Profile)); p != "" {
		s.profile = p
	}
	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}
	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}
	if order := splitKeys(lc.KeysOrder); len(order) > 0 {
		s.keyOrder = order
	}
	if spec := strings.TrimSpace(lc.DebugSample); spec != "" {
		switch num, den := parseRatioSpec(spec); {
		case num == 0 && den == 0:
			s.sample = [2]int{}
		case num > 0 && den > 0:
			s.sample = [2]int{num, den}
		}
	}
	s.dir = strings.TrimSpace(lc.Dir)
	s.botFile = strings.TrimSpace(lc.BotFile)
	s.errFile = strings.TrimSpace(lc.ErrorsFile)
	return s
}

func splitKeys(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "default" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sinks owns the async writers and the files behind them.
type sinks struct {
	mu      sync.Mutex
	closed  bool
	main    *asyncWriter
	errs    *asyncWriter
	closers []io.Closer
}

// openSinks always writes to stdout. Files in dir are added when they can be
// opened; failures there are reported on the standard logger and skipped.
func openSinks(s settings) *sinks {
	out := []io.Writer{os.Stdout}
	var errOut []io.Writer
	var closers []io.Closer
	if s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			log.Printf("logger: create log dir %s: %v", s.dir, err)
		} else {
			if f := openLogFile(s.dir, s.botFile); f != nil {
				out = append(out, f)
				closers = append(closers, f)
			}
			if f := openLogFile(s.dir, s.errFile); f != nil {
				errOut = append(errOut, f)
				closers = append(closers, f)
			}
		}
	}
	sk := &sinks{main: newAsyncWriter(out, 64*1024), closers: closers}
	if len(errOut) > 0 {
		sk.errs = newAsyncWriter(errOut, 16*1024)
	}
	return sk
}

func openLogFile(dir, name string) *os.File {
	if name == "" {
		return nil
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: open log file %s: %v", path, err)
		return nil
	}
	return f
}

func (sk *sinks) close() error {
	sk.mu.Lock()
	defer sk.mu.Unlock()
	if sk.closed {
		return nil
	}
	sk.closed = true
	var errs []error
	for _, w := range []*asyncWriter{sk.main, sk.errs} {
		if w != nil {
			errs = append(errs, w.Close())
		}
	}
	for _, c := range sk.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// InitLogger configures the global structured logger. Only the first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		s := resolve(cfg)
		levelVar.Set(s.level)
		debugSampler.Set(s.sample[0], s.sample[1])
		traceOverride = isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))

		active = openSinks(s)
		handler := newStructuredHandler(handlerConfig{
			level:     &levelVar,
			writer:    active.main,
			errWriter: active.errs,
			format:    s.format,
			keyOrder:  s.keyOrder,
		})
		setBase(slog.New(handler))
		slog.SetDefault(L)

		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("go_version", runtime.Version()),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", s.profile),
			slog.String("log_level", s.level.String()),
		)
	})
	return nil
}

// Shutdown flushes buffered log output and closes opened sinks.
func Shutdown() error {
	if active == nil {
		return nil
	}
	return active.close()
}

// Background returns context.Background().
func Background() context.Context {
	return context.Background()
}

// LogEvent logs attrs under event, resolving the logger from ctx when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns the base logger tagged with component name.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs at level for component.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug detail should be logged.
// TRACE=1 or LOG_TRACE=1 disables sampling.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}
