package helpers

import (
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/m3rciful/leihbot/core/logger"
	"github.com/m3rciful/leihbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

func currentDispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// sendKey orders outbound messages per chat.
func sendKey(c tele.Context) string {
	if chat := c.Chat(); chat != nil {
		return strconv.FormatInt(chat.ID, 10)
	}
	return ""
}

func sendAsync(c tele.Context, action, endpoint string, opts *tele.SendOptions, run func() error) error {
	countOutbound(c, opts)
	disp := currentDispatcher()
	if disp == nil {
		return run()
	}

	ctx := BuildContext(c)
	if err := disp.Enqueue(ctx, sendKey(c), action, endpoint, run); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, "tg.sender", "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				slog.String("err", err.Error()),
			)
			return run()
		}
		return err
	}
	return nil
}

// SendText sends plain text to the current chat.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return sendAsync(c, "send.text", "sendMessage", sendOpts, func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// ReplyText answers the triggering message, quoting it.
func ReplyText(c tele.Context, text string, opts *tele.SendOptions) error {
	return sendAsync(c, "send.reply", "sendMessage", opts, func() error {
		if opts != nil {
			return c.Reply(text, opts)
		}
		return c.Reply(text)
	})
}
