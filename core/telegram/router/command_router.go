package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/doorshop/core/logger"
	tg "github.com/m3rciful/doorshop/core/telegram"
	"github.com/m3rciful/doorshop/core/telegram/middleware"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	Admin middleware.AdminOptions
}

// CommandRoutes prepares command handlers; admin-only commands get the allowlist guard.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	guard := middleware.AdminOnlyMiddleware(opts.Admin)
	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		h := def.Handler
		if def.AdminOnly {
			h = guard(h)
		}
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  commandSummary(cmd, h),
		})
	}

	logger.Info(context.Background(), logger.CompWire, "complete",
		slog.Int("commands", len(reg.Commands())),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}
