// Package sender runs outbound Telegram calls on background workers with
// retries. Jobs addressed to the same chat are delivered in order.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/doorshop/core/logger"
	"github.com/m3rciful/doorshop/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned when enqueue is attempted after dispatcher stop.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull indicates the worker queue is saturated and the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

// Options controls the behaviour of the outbound dispatcher.
type Options struct {
	// QueueSize is the backlog of each worker.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent retrying a single job.
	MaxDuration time.Duration
}

// Job is one outbound call.
type Job struct {
	// ChatID pins the job to a worker so calls to one chat keep their
	// order. Zero falls back to the chat of ctx, then to round robin.
	ChatID   int64
	Action   string
	Endpoint string
	Run      func() error
	// NoRetry runs the job exactly once, for calls that must not be
	// duplicated when a timed out request was in fact delivered.
	NoRetry bool
}

// Stats counts finished jobs.
type Stats struct {
	Sent    uint64
	Failed  uint64
	Retries uint64
}

type queued struct {
	ctx context.Context
	Job
}

// Dispatcher executes outbound Telegram calls asynchronously.
type Dispatcher struct {
	opts   Options
	queues []chan queued
	rr     atomic.Uint64
	stop   chan struct{}
	once   sync.Once
	// mu keeps Enqueue from sending on a closed queue.
	mu sync.RWMutex
	wg sync.WaitGroup

	sent, failed, retries atomic.Uint64
}

// NewDispatcher starts a dispatcher, filling zero options with defaults.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 2 * time.Second
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 12 * time.Second
	}

	d := &Dispatcher{
		opts:   opts,
		queues: make([]chan queued, opts.Workers),
		stop:   make(chan struct{}),
	}
	d.wg.Add(opts.Workers)
	for i := range d.queues {
		d.queues[i] = make(chan queued, opts.QueueSize)
		go d.worker(d.queues[i])
	}
	return d
}

// Enqueue schedules job for asynchronous execution. The job outlives the
// caller's cancellation so notifications survive the end of the update.
// Run must be idempotent when retries are enabled.
func (d *Dispatcher) Enqueue(ctx context.Context, job Job) error {
	if job.Run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if job.ChatID == 0 {
		job.ChatID = logger.ChatIDFrom(ctx)
	}
	q := queued{ctx: context.WithoutCancel(ctx), Job: job}

	d.mu.RLock()
	defer d.mu.RUnlock()
	select {
	case <-d.stop:
		return ErrQueueClosed
	default:
	}
	select {
	case d.queues[d.shard(job.ChatID)] <- q:
		return nil
	default:
		return ErrQueueFull
	}
}

func (d *Dispatcher) shard(chatID int64) int {
	n := uint64(len(d.queues))
	if chatID == 0 {
		return int(d.rr.Add(1) % n)
	}
	if chatID < 0 {
		chatID = -chatID
	}
	return int(uint64(chatID) % n)
}

// Stats returns the counters of finished jobs.
func (d *Dispatcher) Stats() Stats {
	return Stats{Sent: d.sent.Load(), Failed: d.failed.Load(), Retries: d.retries.Load()}
}

// Pending returns the number of queued jobs not yet picked up by a worker.
func (d *Dispatcher) Pending() int {
	n := 0
	for _, q := range d.queues {
		n += len(q)
	}
	return n
}

// Close stops accepting jobs and waits for queued ones to finish.
func (d *Dispatcher) Close() {
	_ = d.CloseContext(context.Background())
}

// CloseContext is Close bounded by ctx. Workers keep draining in the
// background when ctx expires first.
func (d *Dispatcher) CloseContext(ctx context.Context) error {
	d.once.Do(func() {
		d.mu.Lock()
		close(d.stop)
		for _, q := range d.queues {
			close(q)
		}
		d.mu.Unlock()
	})
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		st := d.Stats()
		logger.Info(ctx, logger.CompSender, "closed",
			slog.Uint64("sent", st.Sent),
			slog.Uint64("failed", st.Failed),
			slog.Uint64("retries", st.Retries),
		)
		return nil
	case <-ctx.Done():
		logger.Warn(ctx, logger.CompSender, "close.timeout", slog.Int("pending", d.Pending()))
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(q <-chan queued) {
	defer d.wg.Done()
	for j := range q {
		d.handle(j)
	}
}

func (d *Dispatcher) handle(j queued) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()
	start := time.Now()
	attrs := j.attrs()

	var err error
	attempt := 1
	for ; ; attempt++ {
		if err = j.Run(); err == nil {
			d.sent.Add(1)
			logger.Debug(j.ctx, logger.CompSender, "send.ok",
				append(attrs,
					slog.Int("attempt", attempt),
					slog.Duration("duration", logger.Took(start)),
				)...,
			)
			return
		}
		if j.NoRetry || attempt > d.opts.MaxRetries || !netutil.ShouldRetry(err) {
			break
		}
		delay := d.opts.RetryBackoff * time.Duration(attempt)
		if wait, ok := netutil.RetryAfter(err); ok {
			delay = wait
		}
		if !sleep(ctx, delay) {
			err = errors.Join(err, ctx.Err())
			break
		}
		d.retries.Add(1)
		logger.Debug(j.ctx, logger.CompSender, "send.retry",
			append(attrs,
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error_kind", Classify(err)),
			)...,
		)
	}

	d.failed.Add(1)
	logger.Error(j.ctx, logger.CompSender, "send.fail",
		append(attrs,
			slog.Int("attempts", attempt),
			slog.String("error", Redact(err)),
			slog.String("error_kind", Classify(err)),
			slog.Duration("duration", logger.Took(start)),
		)...,
	)
}

func (j queued) attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.Action)}
	if j.Endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.Endpoint))
	}
	if j.ChatID != 0 {
		attrs = append(attrs, slog.Int64("target_chat_id", j.ChatID))
	}
	return attrs
}

// sleep waits for d unless ctx ends first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
