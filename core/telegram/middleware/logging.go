package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/leihbot/core/logger"
	tghelpers "github.com/m3rciful/leihbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// seenTTL bounds how long an update id is remembered for deduplication.
const seenTTL = 10 * time.Second

// seenUpdates remembers recently logged update ids. The logger middleware may
// wrap both a command route and the text fallback that dispatches to it.
type seenUpdates struct {
	mu   sync.Mutex
	seen map[int]time.Time
}

var receipts = &seenUpdates{seen: make(map[int]time.Time)}

// first reports whether id was not logged within seenTTL, and marks it.
func (s *seenUpdates) first(id int, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, at := range s.seen {
		if now.Sub(at) > seenTTL {
			delete(s.seen, k)
		}
	}
	if _, ok := s.seen[id]; ok {
		return false
	}
	s.seen[id] = now
	return true
}

// LoggerMiddleware builds the request context with its rid and writes one
// sampled update.received line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Get("update_start") == nil {
			c.Set("update_start", time.Now())
		}
		ctx := tghelpers.BuildContext(c)
		upd := c.Update()
		if logger.ShouldSampleDebug() && receipts.first(upd.ID, time.Now()) {
			logger.Debug(ctx, "tg", "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("status", "ok")}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		if user.Username != "" {
			attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
		}
		if user.LanguageCode != "" {
			attrs = append(attrs, slog.String("lang", user.LanguageCode))
		}
	}
	if msg := c.Message(); msg != nil {
		if t := msg.Text; t != "" {
			attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(t, 256)))
		}
		if msg.ThreadID != 0 {
			attrs = append(attrs, slog.Int("thread_id", msg.ThreadID))
		}
	}
	return attrs
}
