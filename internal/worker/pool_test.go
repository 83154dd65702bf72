package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsJobs(t *testing.T) {
	pool := NewWorkerPool(3, 10, 0)
	pool.Start()

	var count atomic.Int32
	done := make(chan struct{}, 5)
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(Job{
			ID: "job",
			Task: func(context.Context) error {
				count.Add(1)
				return nil
			},
			OnDone: func(error) { done <- struct{}{} },
		}))
	}
	for i := 0; i < 5; i++ {
		<-done
	}

	require.NoError(t, pool.Shutdown(time.Second))
	assert.Equal(t, int32(5), count.Load())
	stats := pool.GetStats()
	assert.Equal(t, int64(5), stats.CompletedJobs)
	assert.Zero(t, stats.FailedJobs)
}

func TestPoolRetries(t *testing.T) {
	pool := NewWorkerPool(1, 1, 2)
	pool.SetBackoff(time.Millisecond)
	pool.Start()
	defer pool.Shutdown(time.Second)

	var attempts atomic.Int32
	result := make(chan error, 1)
	require.NoError(t, pool.Submit(Job{
		ID: "flaky",
		Task: func(context.Context) error {
			if attempts.Add(1) < 3 {
				return errors.New("временная ошибка")
			}
			return nil
		},
		OnDone: func(err error) { result <- err },
	}))

	assert.NoError(t, <-result)
	assert.Equal(t, int32(3), attempts.Load())
}

func TestPoolRetryOnStopsEarly(t *testing.T) {
	pool := NewWorkerPool(1, 1, 5)
	pool.SetBackoff(time.Millisecond)
	pool.Start()
	defer pool.Shutdown(time.Second)

	permanent := errors.New("постоянная ошибка")
	var attempts atomic.Int32
	result := make(chan error, 1)
	require.NoError(t, pool.Submit(Job{
		ID: "permanent",
		Task: func(context.Context) error {
			attempts.Add(1)
			return permanent
		},
		RetryOn: func(err error) bool { return !errors.Is(err, permanent) },
		OnDone:  func(err error) { result <- err },
	}))

	assert.ErrorIs(t, <-result, permanent)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestSubmitQueueFull(t *testing.T) {
	// Воркеры не запущены, очередь на одну задачу.
	pool := NewWorkerPool(1, 1, 0)
	noop := Job{ID: "noop", Task: func(context.Context) error { return nil }}

	require.NoError(t, pool.Submit(noop))
	assert.ErrorIs(t, pool.Submit(noop), ErrQueueFull)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pool.SubmitBlocking(ctx, noop), context.DeadlineExceeded)
}

func TestSubmitAfterShutdown(t *testing.T) {
	pool := NewWorkerPool(1, 1, 0)
	pool.Start()
	require.NoError(t, pool.Shutdown(time.Second))
	require.NoError(t, pool.Shutdown(time.Second))

	err := pool.Submit(Job{ID: "late", Task: func(context.Context) error { return nil }})
	assert.ErrorIs(t, err, ErrPoolClosed)
	assert.False(t, errors.Is(ErrQueueFull, ErrShutdownTimeout))
}

func TestShutdownTimeout(t *testing.T) {
	pool := NewWorkerPool(1, 1, 0)
	pool.Start()

	started := make(chan struct{})
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, pool.Submit(Job{
		ID: "slow",
		Task: func(context.Context) error {
			close(started)
			<-release
			return nil
		},
	}))
	<-started

	assert.ErrorIs(t, pool.Shutdown(10*time.Millisecond), ErrShutdownTimeout)
}
