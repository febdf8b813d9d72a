package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/doorshop/core/logger"
	"github.com/m3rciful/doorshop/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// Dispatch runs fn through the async sender when one is wired, falling back
// to a synchronous call when the queue is absent, full or closed.
func Dispatch(ctx context.Context, chatID int64, action, endpoint string, run func() error) error {
	return dispatch(ctx, sender.Job{ChatID: chatID, Action: action, Endpoint: endpoint, Run: run})
}

// DispatchOnce is Dispatch for best-effort calls that are never retried.
func DispatchOnce(ctx context.Context, chatID int64, action, endpoint string, run func() error) error {
	return dispatch(ctx, sender.Job{ChatID: chatID, Action: action, Endpoint: endpoint, Run: run, NoRetry: true})
}

func dispatch(ctx context.Context, job sender.Job) error {
	disp := globalDispatcher.Load()
	if disp == nil {
		return job.Run()
	}
	action, endpoint, run := job.Action, job.Endpoint, job.Run
	if err := disp.Enqueue(ctx, job); err != nil {
		if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
			logger.Warn(ctx, logger.CompSender, "queue.fallback",
				slog.String("action", action),
				slog.String("endpoint", endpoint),
				logger.Err(err),
			)
			return run()
		}
		return err
	}
	return nil
}

// Alert answers the pending callback query with a short toast. It is a no-op
// for non-callback updates.
func Alert(c tele.Context, text string) error {
	if c.Callback() == nil {
		return nil
	}
	return c.Respond(&tele.CallbackResponse{Text: text})
}
