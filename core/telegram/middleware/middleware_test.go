package middleware

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	tghelpers "github.com/m3rciful/leihbot/core/telegram/helpers"
)

func update(id int, sender int64) tele.Context {
	return (&tele.Bot{}).NewContext(tele.Update{ID: id, Message: &tele.Message{
		Text:   "hi",
		Chat:   &tele.Chat{ID: 5},
		Sender: &tele.User{ID: sender},
	}})
}

func TestLimiterAllow(t *testing.T) {
	l := newLimiter(time.Second)
	now := time.Unix(1000, 0)
	require.True(t, l.allow(1, now))
	require.False(t, l.allow(1, now.Add(500*time.Millisecond)))
	require.True(t, l.allow(2, now.Add(500*time.Millisecond)))
	require.True(t, l.allow(1, now.Add(time.Second)))
}

func TestLimiterPrunesStaleEntries(t *testing.T) {
	l := newLimiter(time.Second)
	now := time.Unix(1000, 0)
	for id := range int64(limiterPruneAt) {
		l.allow(id, now)
	}
	require.True(t, l.allow(-1, now.Add(2*time.Second)))
	require.Len(t, l.seen, 1)
}

func TestRateLimitMiddleware(t *testing.T) {
	limited := 0
	mw := RateLimitMiddleware(RateLimitOptions{
		Interval:  time.Hour,
		OnLimited: func(tele.Context) error { limited++; return nil },
	})
	calls := 0
	h := mw(func(tele.Context) error { calls++; return nil })

	require.NoError(t, h(update(1, 7)))
	require.NoError(t, h(update(2, 7)))
	require.NoError(t, h(update(3, 8)))
	require.Equal(t, 2, calls)
	require.Equal(t, 1, limited)

	excluded := RateLimitMiddleware(RateLimitOptions{
		Interval: time.Hour,
		Exclude:  map[string]struct{}{"message": {}},
	})(func(tele.Context) error { calls++; return nil })
	require.NoError(t, excluded(update(4, 9)))
	require.NoError(t, excluded(update(5, 9)))
	require.Equal(t, 4, calls)
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(func(tele.Context) error { panic("boom") })
	err := h(update(1, 1))
	require.EqualError(t, err, "panic: boom")

	sentinel := errors.New("plain")
	h = RecoverMiddleware(func(tele.Context) error { return sentinel })
	require.ErrorIs(t, h(update(2, 1)), sentinel)
}

func TestAdminOnly(t *testing.T) {
	rejected := 0
	mw := AdminOnlyMiddleware(AdminOptions{AdminID: 7, OnReject: func(tele.Context) error { rejected++; return nil }})
	passed := 0
	h := mw(func(tele.Context) error { passed++; return nil })

	require.NoError(t, h(update(1, 7)))
	require.NoError(t, h(update(2, 8)))
	require.Equal(t, 1, passed)
	require.Equal(t, 1, rejected)

	// Without a configured admin the gate stays shut, even for sender 0.
	closed := AdminOnlyMiddleware(AdminOptions{OnReject: func(tele.Context) error { rejected++; return nil }})(
		func(tele.Context) error { passed++; return nil })
	require.NoError(t, closed(update(3, 8)))
	require.NoError(t, closed(update(4, 0)))
	require.Equal(t, 1, passed)
	require.Equal(t, 3, rejected)
}

func TestMetricsAndLoggerMiddleware(t *testing.T) {
	c := update(10, 3)
	c.Set("messages", 4)
	var seen tele.Context
	h := LoggerMiddleware(func(c tele.Context) error {
		seen = c
		return nil
	})
	require.NoError(t, h(c))
	require.Equal(t, "10:5:3", c.Get("rid"))
	_, ok := tghelpers.ContextFrom(seen)
	require.True(t, ok)

	// Counters survive a second pass so nested wrapping does not reset them.
	require.NoError(t, MessageMetricsMiddleware(h)(c))
	msgs, _ := tghelpers.Counters(c)
	require.Equal(t, 4, msgs)

	fresh := update(11, 3)
	require.NoError(t, MessageMetricsMiddleware(h)(fresh))
	msgs, kb := tghelpers.Counters(fresh)
	require.Zero(t, msgs)
	require.False(t, kb)
}

func TestSeenUpdatesDeduplicates(t *testing.T) {
	s := &seenUpdates{seen: make(map[int]time.Time)}
	now := time.Now()
	require.True(t, s.first(7, now))
	require.False(t, s.first(7, now.Add(time.Second)))
	require.True(t, s.first(8, now))
	require.True(t, s.first(7, now.Add(seenTTL+time.Second)))
	require.Len(t, s.seen, 1)
}
