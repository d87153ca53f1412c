package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/leihbot/core/logger"
	tg "github.com/m3rciful/leihbot/core/telegram"
	"github.com/m3rciful/leihbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per command name and alias. Each handler
// is guarded by recover and the admin check, and writes a handler summary.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	admin := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for key, def := range reg.Commands() {
		inner := def.Handler
		if def.AdminOnly {
			inner = admin(inner)
		}
		name := normalizeHandlerName(key)
		h := func(c tele.Context) error {
			return handled(c, name, time.Now(), func() error { return inner(c) })
		}
		h = middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
		for _, n := range def.Names(key) {
			routes = append(routes, tg.Route{Endpoint: n, Handler: h})
		}
	}

	logger.Info(context.Background(), "tg.wire", "routes.commands",
		slog.Int("count", len(reg.Commands())),
		slog.Int("routes", len(routes)),
	)
	return routes
}
