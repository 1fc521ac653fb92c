package sender

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastOptions() Options {
	return Options{Workers: 1, MaxRetries: 2, RetryBackoff: time.Millisecond, PerSecond: -1}
}

func TestDispatcherRetriesTransientErrors(t *testing.T) {
	d := NewDispatcher(fastOptions())
	var calls atomic.Int32
	err := d.Enqueue(t.Context(), "notify", "sendMessage", func() error {
		if calls.Add(1) == 1 {
			return &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		return nil
	})
	require.NoError(t, err)
	d.Close()

	assert.Equal(t, int32(2), calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDispatcherDoesNotRetryClientErrors(t *testing.T) {
	d := NewDispatcher(fastOptions())
	var calls atomic.Int32
	require.NoError(t, d.Enqueue(t.Context(), "notify", "sendMessage", func() error {
		calls.Add(1)
		return errors.New("telegram: Bad Request: chat not found (400)")
	}))
	d.Close()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDispatcherRunsJobsOfCancelledUpdates(t *testing.T) {
	d := NewDispatcher(fastOptions())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := make(chan struct{}, 1)
	require.NoError(t, d.Enqueue(ctx, "send.text", "sendMessage", func() error {
		ran <- struct{}{}
		return nil
	}))
	d.Close()
	assert.Len(t, ran, 1)
}

func TestDispatcherRejectsAfterClose(t *testing.T) {
	d := NewDispatcher(fastOptions())
	d.Close()
	d.Close()
	err := d.Enqueue(t.Context(), "notify", "sendMessage", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.Error(t, d.Enqueue(t.Context(), "notify", "sendMessage", nil))
}

func TestDispatcherReportsFullQueue(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1, Workers: 1, PerSecond: -1})
	release := make(chan struct{})
	started := make(chan struct{})
	block := func() error {
		close(started)
		<-release
		return nil
	}
	require.NoError(t, d.Enqueue(t.Context(), "a", "", block))
	<-started
	require.NoError(t, d.Enqueue(t.Context(), "b", "", func() error { return nil }))
	assert.ErrorIs(t, d.Enqueue(t.Context(), "c", "", func() error { return nil }), ErrQueueFull)
	close(release)
	d.Close()
}

func TestDispatcherPacesCalls(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, PerSecond: 20})
	start := time.Now()
	for range 4 {
		require.NoError(t, d.Enqueue(t.Context(), "notify", "", func() error { return nil }))
	}
	d.Close()
	// Burst covers the first call; three more need at least 150ms at 20/s.
	assert.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}
