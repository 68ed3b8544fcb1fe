package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSender records every successful send and fails the first
// failTimes calls.
type recordingSender struct {
	mu        sync.Mutex
	calls     int
	failTimes int
	sent      []AcceptanceEmail
	block     chan struct{}
}

func (s *recordingSender) Send(ctx context.Context, msg AcceptanceEmail) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failTimes {
		return errors.New("smtp: connection refused")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) snapshot() (int, []AcceptanceEmail) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]AcceptanceEmail(nil), s.sent...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastOptions() Options {
	return Options{
		QueueSize:   10,
		Workers:     2,
		MaxAttempts: 3,
		RetryDelay:  time.Millisecond,
		SendTimeout: time.Second,
	}
}

func stop(t *testing.T, d *Dispatcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, d.Stop(ctx))
}

func TestDispatcher_DeliversEveryMessage(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, fastOptions(), discardLogger())
	d.Start()

	msgs := []AcceptanceEmail{
		{To: "a@example.com", Username: "a", ProjectTitle: "GoKit"},
		{To: "b@example.com", Username: "b", ProjectTitle: "GoKit"},
		{To: "c@example.com", Username: "c", ProjectTitle: "ml-notebook"},
	}
	for _, m := range msgs {
		assert.True(t, d.Enqueue(m))
	}
	stop(t, d)

	calls, sent := sender.snapshot()
	assert.Equal(t, 3, calls)
	assert.ElementsMatch(t, msgs, sent)
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	sender := &recordingSender{failTimes: 2}
	d := NewDispatcher(sender, fastOptions(), discardLogger())
	d.Start()

	d.Enqueue(AcceptanceEmail{To: "a@example.com", Username: "a", ProjectTitle: "GoKit"})
	stop(t, d)

	calls, sent := sender.snapshot()
	assert.Equal(t, 3, calls)
	assert.Len(t, sent, 1)
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	sender := &recordingSender{failTimes: 100}
	d := NewDispatcher(sender, fastOptions(), discardLogger())
	d.Start()

	d.Enqueue(AcceptanceEmail{To: "a@example.com"})
	stop(t, d)

	calls, sent := sender.snapshot()
	assert.Equal(t, 3, calls)
	assert.Empty(t, sent)
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	sender := &recordingSender{}
	opts := fastOptions()
	opts.QueueSize = 1
	d := NewDispatcher(sender, opts, discardLogger())

	// Not started yet, so nothing drains the queue.
	assert.True(t, d.Enqueue(AcceptanceEmail{To: "first@example.com"}))
	assert.False(t, d.Enqueue(AcceptanceEmail{To: "second@example.com"}))

	d.Start()
	stop(t, d)

	_, sent := sender.snapshot()
	require.Len(t, sent, 1)
	assert.Equal(t, "first@example.com", sent[0].To)
}

func TestDispatcher_EnqueueAfterStop(t *testing.T) {
	d := NewDispatcher(&recordingSender{}, fastOptions(), discardLogger())
	d.Start()
	stop(t, d)

	assert.False(t, d.Enqueue(AcceptanceEmail{To: "late@example.com"}))
	// A second Stop is harmless.
	stop(t, d)
}

func TestDispatcher_EnqueueDoesNotWaitForDelivery(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	d := NewDispatcher(sender, fastOptions(), discardLogger())
	d.Start()

	start := time.Now()
	assert.True(t, d.Enqueue(AcceptanceEmail{To: "a@example.com"}))
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	close(sender.block)
	stop(t, d)

	_, sent := sender.snapshot()
	assert.Len(t, sent, 1)
}

func TestDispatcher_StopHonoursDeadline(t *testing.T) {
	sender := &recordingSender{block: make(chan struct{})}
	opts := fastOptions()
	opts.Workers = 1
	opts.MaxAttempts = 1
	d := NewDispatcher(sender, opts, discardLogger())
	d.Start()
	d.Enqueue(AcceptanceEmail{To: "slow@example.com"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Stop(ctx), context.DeadlineExceeded)

	close(sender.block)
	stop(t, d)
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, defaultQueueSize, o.QueueSize)
	assert.Equal(t, defaultWorkers, o.Workers)
	assert.Equal(t, uint(defaultMaxAttempts), o.MaxAttempts)
	assert.Equal(t, defaultRetryDelay, o.RetryDelay)
	assert.Equal(t, defaultSendTimeout, o.SendTimeout)
}
