package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueProcessesJobs(t *testing.T) {
	var handled int32
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&handled, 1)
		return nil
	}, QueueConfig{Workers: 2})
	q.Start(context.Background())

	for i := 0; i < 10; i++ {
		require.NoError(t, q.Enqueue(Job{ID: "j", Type: "t"}))
	}
	q.Stop()

	assert.Equal(t, int32(10), atomic.LoadInt32(&handled))
}

func TestQueueRejectsBeforeStartAndAfterStop(t *testing.T) {
	q := NewQueue("test", func(context.Context, Job) error { return nil }, QueueConfig{})
	assert.ErrorIs(t, q.Enqueue(Job{ID: "early"}), ErrQueueClosed)

	q.Start(context.Background())
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Job{ID: "late"}), ErrQueueClosed)
}

func TestQueueRetriesUntilSuccess(t *testing.T) {
	var mu sync.Mutex
	var attempts []int
	done := make(chan struct{})

	q := NewQueue("test", func(ctx context.Context, job Job) error {
		mu.Lock()
		attempts = append(attempts, job.Attempt)
		mu.Unlock()
		if job.Attempt < 2 {
			return errors.New("smtp down")
		}
		close(done)
		return nil
	}, QueueConfig{MaxRetries: 3, RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "mail"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not retried to success")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 2}, attempts)
}

func TestQueueReportsFinalFailure(t *testing.T) {
	results := make(chan bool, 4)
	q := NewQueue("test", func(context.Context, Job) error {
		return errors.New("boom")
	}, QueueConfig{
		MaxRetries: 1,
		RetryDelay: time.Millisecond,
		OnResult: func(job Job, err error, final bool) {
			results <- final
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "mail"}))

	var got []bool
	for len(got) < 2 {
		select {
		case final := <-results:
			got = append(got, final)
		case <-time.After(2 * time.Second):
			t.Fatal("missing result")
		}
	}
	assert.Equal(t, []bool{false, true}, got)
}

func TestQueueJobTimeout(t *testing.T) {
	errs := make(chan error, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		<-ctx.Done()
		return ctx.Err()
	}, QueueConfig{
		MaxRetries: 0,
		JobTimeout: 10 * time.Millisecond,
		OnResult: func(job Job, err error, final bool) {
			errs <- err
		},
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "slow"}))
	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not time out")
	}
}
