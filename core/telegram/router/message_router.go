package router

import (
	"time"

	tg "github.com/m3rciful/doorshop/core/telegram"

	tele "gopkg.in/telebot.v4"
)

// Dialog receives user input while a multi-step flow is active.
type Dialog interface {
	InProgress(userID int64) bool
	Handle(c tele.Context) error
}

// MessageOptions controls fallback behaviour for text and media updates.
type MessageOptions struct {
	UnknownText  tele.HandlerFunc
	UnknownMedia tele.HandlerFunc
}

// MessageRoutes routes text, photo, video and document updates. Input goes to
// the active dialog first; text falls back to command lookup and the registry
// fallback, media to UnknownMedia.
func MessageRoutes(dlg Dialog, reg *tg.Registry, opts MessageOptions) []tg.Route {
	inDialog := func(c tele.Context) bool {
		return dlg != nil && c.Sender() != nil && dlg.InProgress(c.Sender().ID)
	}

	text := func(c tele.Context) error {
		start := time.Now()
		if inDialog(c) {
			return handleWithSummary(c, "dialog", start, "", "", func() error {
				return dlg.Handle(c)
			})
		}

		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return handleWithSummary(c, normalizeHandlerName(key), start, "", "", func() error {
					return cmd.Handler(c)
				})
			}
			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, "", "", func() error {
					return fb(c)
				})
			}
		}

		if opts.UnknownText != nil {
			return handleWithSummary(c, "unknown_text", start, "", "", func() error {
				return opts.UnknownText(c)
			})
		}
		logHandlerSummary(c, "unknown_text", start, "skip", "ok", nil)
		return nil
	}

	media := func(c tele.Context) error {
		start := time.Now()
		if inDialog(c) {
			return handleWithSummary(c, "dialog_media", start, "", "", func() error {
				return dlg.Handle(c)
			})
		}
		if opts.UnknownMedia != nil {
			return handleWithSummary(c, "unexpected_media", start, "", "", func() error {
				return opts.UnknownMedia(c)
			})
		}
		logHandlerSummary(c, "unexpected_media", start, "skip", "ok", nil)
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: text},
		{Endpoint: tele.OnPhoto, Handler: media},
		{Endpoint: tele.OnVideo, Handler: media},
		{Endpoint: tele.OnDocument, Handler: media},
	}
}
