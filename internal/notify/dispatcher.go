// Package notify delivers acceptance emails outside the request cycle.
//
// A status update hands the Dispatcher an AcceptanceEmail and returns at
// once. A small pool of workers drains a bounded queue and calls the Sender
// with a bounded number of attempts. Delivery failures are logged and go no
// further.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
)

// AcceptanceEmail tells a user their join request was accepted.
type AcceptanceEmail struct {
	To           string
	Username     string
	ProjectTitle string
}

// Sender delivers one email. Implementations must honour ctx.
type Sender interface {
	Send(ctx context.Context, msg AcceptanceEmail) error
}

// Options tunes the Dispatcher. Zero values fall back to the defaults below.
type Options struct {
	QueueSize   int
	Workers     int
	MaxAttempts uint
	RetryDelay  time.Duration
	SendTimeout time.Duration
}

const (
	defaultQueueSize   = 100
	defaultWorkers     = 2
	defaultMaxAttempts = 3
	defaultRetryDelay  = 2 * time.Second
	defaultSendTimeout = 30 * time.Second
)

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = defaultQueueSize
	}
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.MaxAttempts == 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = defaultRetryDelay
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = defaultSendTimeout
	}
	return o
}

// Dispatcher is a bounded, fire-and-forget email queue.
type Dispatcher struct {
	sender Sender
	opts   Options
	logger *slog.Logger

	queue chan AcceptanceEmail

	mu     sync.RWMutex // guards closed and sends on queue
	closed bool

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Messages enqueued before Start wait in
// the queue.
func NewDispatcher(sender Sender, opts Options, logger *slog.Logger) *Dispatcher {
	opts = opts.withDefaults()
	return &Dispatcher{
		sender: sender,
		opts:   opts,
		logger: logger,
		queue:  make(chan AcceptanceEmail, opts.QueueSize),
	}
}

// Start launches the workers. Calling it again is a no-op.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		for i := 0; i < d.opts.Workers; i++ {
			d.wg.Add(1)
			go d.work(i)
		}
		d.logger.Info("notification dispatcher started",
			"workers", d.opts.Workers,
			"queue_size", d.opts.QueueSize,
		)
	})
}

// Enqueue submits msg without blocking. It reports false when the message
// was dropped because the queue is full or the dispatcher is stopped.
func (d *Dispatcher) Enqueue(msg AcceptanceEmail) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("notification dropped: dispatcher stopped", "to", msg.To, "project", msg.ProjectTitle)
		return false
	}

	select {
	case d.queue <- msg:
		return true
	default:
		d.logger.Warn("notification dropped: queue full", "to", msg.To, "project", msg.ProjectTitle)
		return false
	}
}

// Stop closes intake and waits for the workers to drain the queue, or for
// ctx to end, whichever comes first.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("notification dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("notification dispatcher stop timed out", "pending", len(d.queue))
		return ctx.Err()
	}
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(id, msg)
	}
}

func (d *Dispatcher) deliver(worker int, msg AcceptanceEmail) {
	start := time.Now()

	err := retry.Do(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), d.opts.SendTimeout)
			defer cancel()
			return d.sender.Send(ctx, msg)
		},
		retry.Attempts(d.opts.MaxAttempts),
		retry.Delay(d.opts.RetryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			d.logger.Debug("retrying notification",
				"to", msg.To,
				"attempt", n+1,
				"error", err,
			)
		}),
	)
	if err != nil {
		d.logger.Error("notification failed",
			"worker", worker,
			"to", msg.To,
			"project", msg.ProjectTitle,
			"attempts", d.opts.MaxAttempts,
			"error", err,
		)
		return
	}

	d.logger.Info("notification sent",
		"worker", worker,
		"to", msg.To,
		"project", msg.ProjectTitle,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
