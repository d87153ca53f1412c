package helpers

import (
	"context"

	"github.com/m3rciful/leihbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const (
	keyContext  = "logger_ctx"
	keyRID      = "rid"
	keyMessages = "messages"
	keyKeyboard = "kb"
)

// StoreContext attaches reusable context to tele.Context for downstream helpers.
func StoreContext(c tele.Context, ctx context.Context) {
	if c == nil || ctx == nil {
		return
	}
	c.Set(keyContext, ctx)
}

// ContextFrom returns the context stored by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(keyContext).(context.Context)
	return ctx, ok && ctx != nil
}

// UpdateIDs returns the update, chat and sender ids of c; absent ones are 0.
func UpdateIDs(c tele.Context) (updateID int, chatID, userID int64) {
	updateID = c.Update().ID
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	return updateID, chatID, userID
}

// BuildContext returns the update's logging context, creating and caching it
// on first use: rid, update meta and the "tg" component logger.
func BuildContext(c tele.Context) context.Context {
	if cached, ok := ContextFrom(c); ok {
		return cached
	}
	updateID, chatID, userID := UpdateIDs(c)
	rid, _ := c.Get(keyRID).(string)
	if rid == "" {
		rid = logger.BuildRID(updateID, chatID, userID)
		c.Set(keyRID, rid)
	}
	ctx := logger.WithRID(logger.Background(), rid)
	ctx = logger.WithUpdateMeta(ctx, updateID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	StoreContext(c, ctx)
	return ctx
}

// WithHandler enriches stored context with handler metadata for downstream logs.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	StoreContext(c, ctx)
	return ctx
}

// ResetCounters zeroes the outbound counters of an update.
func ResetCounters(c tele.Context) {
	c.Set(keyMessages, 0)
	c.Set(keyKeyboard, false)
}

// Counters reports how many replies were sent or queued for the update and
// whether any of them carried a keyboard.
func Counters(c tele.Context) (messages int, keyboard bool) {
	messages, _ = c.Get(keyMessages).(int)
	keyboard, _ = c.Get(keyKeyboard).(bool)
	return messages, keyboard
}

func countOutbound(c tele.Context, opts *tele.SendOptions) {
	n, _ := c.Get(keyMessages).(int)
	c.Set(keyMessages, n+1)
	if opts != nil && opts.ReplyMarkup != nil {
		c.Set(keyKeyboard, true)
	}
}
