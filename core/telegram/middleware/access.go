package middleware

import (
	"log/slog"
	"slices"

	"github.com/m3rciful/doorshop/core/logger"
	tghelpers "github.com/m3rciful/doorshop/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminIDs []int64
	OnReject tele.HandlerFunc
}

// Allowed reports whether userID is on the allowlist. An empty allowlist admits nobody.
func (o AdminOptions) Allowed(userID int64) bool {
	return userID != 0 && slices.Contains(o.AdminIDs, userID)
}

// AdminOnlyMiddleware ensures that only allowlisted users can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			var userID int64
			if u := c.Sender(); u != nil {
				userID = u.ID
			}
			if !opts.Allowed(userID) {
				logger.Warn(tghelpers.BuildContext(c), logger.CompTG, "admin.reject",
					slog.Int64("user_id", userID),
				)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
