package router

import (
	"context"
	"log/slog"
	"sort"

	"github.com/bekksaar/intakebot/core/logger"
	tg "github.com/bekksaar/intakebot/core/telegram"
	"github.com/bekksaar/intakebot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures the admin gate on commands.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes binds every registered command to its own endpoint. Admin-only
// commands are gated before logging so rejected calls stay quiet.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	gate := middleware.AdminOnly(opts.AdminID, opts.OnAdminReject)

	names := make([]string, 0, len(reg.Commands()))
	for name := range reg.Commands() {
		names = append(names, name)
	}
	sort.Strings(names)

	routes := make([]tg.Route, 0, len(names))
	for _, name := range names {
		cmd := reg.Commands()[name]
		handlerKey := handlerName(name)
		h := middleware.RecoverMiddleware(func(c tele.Context) error {
			return serve(c, handlerKey, cmd.Handler)
		})
		h = middleware.LoggerMiddleware(h)
		if cmd.AdminOnly {
			h = gate(h)
		}
		routes = append(routes, tg.Route{Endpoint: name, Handler: h})
	}

	logger.Info(context.Background(), "tg.wire", "routes.commands",
		slog.Int("commands", len(routes)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}
