package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/m3rciful/leihbot/core/logger"
	tghelpers "github.com/m3rciful/leihbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RecoverMiddleware turns a handler panic into an error so the bot keeps
// running and the handler summary records the failure.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			err = fmt.Errorf("panic: %v", r)
			logger.Error(tghelpers.BuildContext(c), "tg", "tg.panic",
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				slog.String("stack", string(debug.Stack())),
			)
		}()
		return next(c)
	}
}
