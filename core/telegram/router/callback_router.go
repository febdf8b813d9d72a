package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/doorshop/core/telegram"
	"github.com/m3rciful/doorshop/core/telegram/callbacks"
	"github.com/m3rciful/doorshop/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback and admin behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
	Admin    middleware.AdminOptions
}

// CallbackRoute returns a handler that routes callbacks through the registry.
// Admin-only callbacks pass the allowlist guard before dispatch.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	guard := middleware.AdminOnlyMiddleware(opts.Admin)
	handler := func(c tele.Context) error {
		start := time.Now()
		if c.Callback() == nil {
			return nil
		}

		key := callbacks.CallbackKey(c)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		cb, ok := reg.GetCallback(key)
		if !ok || cb.Handler == nil {
			fallback := reg.CallbackNotFound()
			if fallback == nil {
				fallback = opts.NotFound
			}
			extras = append(extras, slog.String("reason", "not_found"))
			return handleWithSummary(c, name, start, "", "", func() error {
				if fallback != nil {
					return fallback(c)
				}
				return c.Respond()
			}, extras...)
		}

		h := cb.Handler
		if cb.AdminOnly {
			h = guard(h)
			extras = append(extras, slog.Bool("admin", true))
		}
		return handleWithSummary(c, name, start, "", "", func() error {
			err := h(c)
			// Stops the client spinner when the handler did not answer itself.
			_ = c.Respond()
			return err
		}, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  handler,
	}
}
