package middleware

import (
	"log/slog"
	"sync"
	"time"

	coreconfig "github.com/m3rciful/leihbot/core/config"
	"github.com/m3rciful/leihbot/core/logger"
	tghelpers "github.com/m3rciful/leihbot/core/telegram/helpers"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
}

// limiter keeps one token bucket per user: a burst of one, refilled once per
// interval. Full buckets carry no information and are pruned once the map grows.
type limiter struct {
	every rate.Limit
	mu    sync.Mutex
	seen  map[int64]*rate.Limiter
}

const limiterPruneAt = 1024

func newLimiter(interval time.Duration) *limiter {
	return &limiter{every: rate.Every(interval), seen: make(map[int64]*rate.Limiter)}
}

func (l *limiter) allow(userID int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.seen[userID]
	if !ok {
		if len(l.seen) >= limiterPruneAt {
			for id, idle := range l.seen {
				if idle.TokensAt(now) >= 1 {
					delete(l.seen, id)
				}
			}
		}
		lim = rate.NewLimiter(l.every, 1)
		l.seen[userID] = lim
	}
	return lim.AllowN(now, 1)
}

func updateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return coreconfig.UpdateCallback
	case upd.Message != nil:
		return coreconfig.UpdateMessage
	case upd.Query != nil:
		return coreconfig.UpdateInlineQuery
	}
	return "other"
}

// RateLimitMiddleware enforces a minimum interval between updates of the same
// user. Limited updates are dropped after OnLimited runs.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	lim := newLimiter(opts.Interval)
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[updateKind(c.Update())]; skip {
				return next(c)
			}
			if lim.allow(user.ID, time.Now()) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "rate_limited"),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
