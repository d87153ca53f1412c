package middleware

import (
	tghelpers "github.com/m3rciful/leihbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// MessageMetricsMiddleware starts the per-update reply counters that the send
// helpers bump and handler summaries report.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if _, seen := c.Get("messages").(int); !seen {
			tghelpers.ResetCounters(c)
		}
		return next(c)
	}
}
