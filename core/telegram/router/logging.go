package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/leihbot/core/logger"
	tghelpers "github.com/m3rciful/leihbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// handled runs fn as the named handler and writes one handler.handled line.
func handled(c tele.Context, name string, start time.Time, fn func() error) error {
	tghelpers.WithHandler(c, name)
	err := fn()
	outcome := "ok"
	if err != nil {
		outcome = logger.OutcomeOf(deriveErrorCode(err))
	}
	summarize(c, name, start, logger.Status(err), outcome, err)
	return err
}

// skipped records an update no handler took.
func skipped(c tele.Context, name string, start time.Time) {
	summarize(c, name, start, "skip", "ok", nil)
}

func summarize(c tele.Context, name string, start time.Time, status, outcome string, err error) {
	ctx := tghelpers.WithHandler(c, name)
	msgs, kb := tghelpers.Counters(c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.Info(ctx, "tg", "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// deriveErrorCode prefers a Code() method anywhere in the chain and falls
// back to the error's type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
