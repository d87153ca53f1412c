package router

import (
	"time"

	tg "github.com/m3rciful/leihbot/core/telegram"
	"github.com/m3rciful/leihbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation consumes text that is neither a command nor a command alias,
// usually the answer to a pending prompt.
type Conversation interface {
	HandleText(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
	// Admin guards admin-only commands reached through the text fallback.
	Admin middleware.AdminOptions
}

// TextRoutes builds handlers for text and document routing. Commands and
// their aliases win over a pending conversation step, so a command always
// starts afresh.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if reg != nil && len(text) > 1 && text[0] == '/' {
			if key, cmd, ok := reg.LookupCommand(commandName(text)); ok && cmd.Handler != nil {
				h := cmd.Handler
				if cmd.AdminOnly {
					h = middleware.AdminOnlyMiddleware(opts.Admin)(h)
				}
				name := normalizeHandlerName(key)
				return handled(c, name, start, func() error {
					return h(c)
				})
			}
		}

		if conv != nil {
			return handled(c, "conversation", start, func() error {
				return conv.HandleText(c)
			})
		}

		if opts.UnknownText != nil {
			return handled(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		skipped(c, "unknown_text", start)
		return nil
	}

	docHandler := func(c tele.Context) error {
		start := time.Now()
		if opts.UnknownDocument != nil {
			return handled(c, "unexpected_document", start, func() error {
				return opts.UnknownDocument(c)
			})
		}
		skipped(c, "unexpected_document", start)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}

// commandName strips arguments and a "@botname" suffix from a command text.
func commandName(text string) string {
	for i, r := range text {
		if r == ' ' || r == '@' || r == '\n' {
			return text[:i]
		}
	}
	return text
}
