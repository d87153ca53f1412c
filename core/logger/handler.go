package logger

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

const timeFormatMillis = "2006-01-02T15:04:05.000Z07:00"

var errNoWriter = errors.New("logger: writer not initialized")

type handlerConfig struct {
	level  slog.Leveler
	writer *asyncWriter
	// errWriter additionally receives records at error level and above.
	errWriter *asyncWriter
	format    logFormat
	keyOrder  []string
}

// structuredHandler renders slog records as single kv or json lines.
type structuredHandler struct {
	cfg    handlerConfig
	enc    encoder
	attrs  []slog.Attr
	groups []string
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	if cfg.level == nil {
		cfg.level = slog.LevelInfo
	}
	if cfg.keyOrder == nil {
		cfg.keyOrder = append([]string(nil), defaultKeyOrder...)
	}
	return &structuredHandler{cfg: cfg, enc: cfg.format.encoder()}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.level.Level()
}

func (h *structuredHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.cfg.writer == nil {
		return errNoWriter
	}

	f := make(record, 16)
	ts := r.Time.UTC()
	f["ts"] = ts.Truncate(time.Millisecond).Format(timeFormatMillis)
	f["level"] = normalizeLevel(r.Level.String())
	if h.cfg.format == formatJSON {
		f["ts_unix_nano"] = ts.UnixNano()
	}

	prefix := strings.Join(h.groups, ".")
	for _, a := range h.attrs {
		f.add(prefix, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		f.add(prefix, a)
		return true
	})
	f.fromContext(ctx)
	f.compactRID(h.cfg.format == formatJSON)

	if f.str("event") == "" {
		f["event"] = cmp.Or(r.Message, "unknown")
	}
	if f.str("component") == "" {
		f["component"] = "app"
	}
	f.normalize()

	line, err := h.enc.encode(f, h.cfg.keyOrder)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if h.cfg.errWriter != nil && r.Level >= slog.LevelError {
		if err := h.cfg.errWriter.Write(line); err != nil {
			return err
		}
	}
	return h.cfg.writer.Write(line)
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

func (h *structuredHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

// record holds the flattened fields of one log line.
type record map[string]any

func (f record) str(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func (f record) setDefault(key string, v any) {
	if _, ok := f[key]; !ok {
		f[key] = v
	}
}

// add flattens groups into dotted keys.
func (f record) add(prefix string, a slog.Attr) {
	key := a.Key
	if prefix != "" {
		key = strings.Trim(prefix+"."+key, ".")
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, child := range a.Value.Group() {
			f.add(key, child)
		}
		return
	}
	if key == "" {
		return
	}
	if k, v, ok := attrValue(key, a.Value.Resolve()); ok {
		f[k] = v
	}
}

// contextFields are copied from the context unless the record already sets them.
var contextFields = []struct {
	key string
	get func(context.Context) any
}{
	{"rid", func(ctx context.Context) any { return RIDFrom(ctx) }},
	{"session", func(ctx context.Context) any { return SessionFrom(ctx) }},
	{"run_id", func(ctx context.Context) any { return RunIDFrom(ctx) }},
	{"user_id", func(ctx context.Context) any { return UserIDFrom(ctx) }},
	{"update_id", func(ctx context.Context) any { return UpdateIDFrom(ctx) }},
	{"chat_id", func(ctx context.Context) any { return ChatIDFrom(ctx) }},
	{"handler", func(ctx context.Context) any { return HandlerFrom(ctx) }},
}

func (f record) fromContext(ctx context.Context) {
	if ctx == nil {
		return
	}
	for _, cf := range contextFields {
		switch v := cf.get(ctx).(type) {
		case string:
			if v != "" {
				f.setDefault(cf.key, v)
			}
		case int64:
			if v != 0 {
				f.setDefault(cf.key, v)
			}
		case int:
			if v != 0 {
				f.setDefault(cf.key, v)
			}
		}
	}
}

// compactRID shortens rid; json output keeps the original as rid_full.
func (f record) compactRID(keepFull bool) {
	rid := f.str("rid")
	if rid == "" {
		return
	}
	compact := CompactRID(rid)
	if compact == "" || compact == rid {
		return
	}
	if keepFull {
		f.setDefault("rid_full", rid)
	}
	f["rid"] = compact
}

// normalize maps enum fields onto their canonical spelling and drops empties.
func (f record) normalize() {
	if level := f.str("level"); level != "" {
		f["level"] = normalizeLevel(level)
	}
	if s := f.str("status"); s != "" {
		normalized, _ := normalizeStatus(s)
		f["status"] = normalized
	}
	if o := f.str("outcome"); o != "" {
		if normalized, ok := normalizeOutcome(o); ok {
			f["outcome"] = normalized
		} else {
			delete(f, "outcome")
		}
	}
	for k, v := range f {
		switch val := v.(type) {
		case nil:
			delete(f, k)
		case string:
			if val == "" {
				delete(f, k)
			}
		case fmt.Stringer:
			if val.String() == "" {
				delete(f, k)
			}
		}
	}
}

func attrValue(key string, val slog.Value) (string, any, bool) {
	switch val.Kind() {
	case slog.KindString:
		return key, strings.TrimSpace(val.String()), true
	case slog.KindBool:
		return key, val.Bool(), true
	case slog.KindInt64:
		return key, val.Int64(), true
	case slog.KindUint64:
		if u := val.Uint64(); u <= math.MaxInt64 {
			return key, int64(u), true
		}
		return key, val.Uint64(), true
	case slog.KindFloat64:
		return key, val.Float64(), true
	case slog.KindDuration:
		return durationKey(key), RoundMS(val.Duration()).Milliseconds(), true
	case slog.KindTime:
		return key, val.Time().UTC().Format(time.RFC3339Nano), true
	}
	switch x := val.Any().(type) {
	case nil:
		return key, nil, false
	case error:
		return key, x.Error(), true
	case string:
		return key, strings.TrimSpace(x), true
	case time.Duration:
		return durationKey(key), RoundMS(x).Milliseconds(), true
	case fmt.Stringer:
		return key, x.String(), true
	default:
		return key, fmt.Sprint(x), true
	}
}

// durationKey maps "duration" and "*_duration" keys onto their millisecond names.
func durationKey(key string) string {
	switch {
	case key == "duration":
		return "duration_ms"
	case strings.HasSuffix(key, "_duration"):
		return strings.TrimSuffix(key, "_duration") + "_duration_ms"
	case !strings.HasSuffix(key, "_ms"):
		return key + "_ms"
	}
	return key
}
