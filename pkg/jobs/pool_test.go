package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func batchOf(n int) []Job {
	batch := make([]Job, 0, n)
	for i := 1; i <= n; i++ {
		batch = append(batch, Job{ID: fmt.Sprintf("job-%d", i), Payload: i})
	}
	return batch
}

func TestPoolRunBoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	pool := NewPool[int]("test", func(ctx context.Context, job Job) (int, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return job.Payload.(int), nil
	}, PoolConfig{Workers: 3, Logger: zap.NewNop()})

	results := pool.Run(context.Background(), batchOf(20))

	require.Len(t, results, 20)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	sum := 0
	for _, r := range results {
		require.NoError(t, r.Err)
		sum += r.Value
	}
	assert.Equal(t, 210, sum)
}

func TestPoolRunKeepsFailuresPerJob(t *testing.T) {
	pool := NewPool[string]("test", func(ctx context.Context, job Job) (string, error) {
		if job.ID == "job-2" {
			return "", errors.New("boom")
		}
		if job.ID == "job-3" {
			panic("unexpected")
		}
		return job.ID, nil
	}, PoolConfig{Workers: 2})

	results := pool.Run(context.Background(), batchOf(4))

	require.Len(t, results, 4)
	failed := map[string]bool{}
	for _, r := range results {
		if r.Err != nil {
			failed[r.Job.ID] = true
		}
	}
	assert.Equal(t, map[string]bool{"job-2": true, "job-3": true}, failed)
}

func TestPoolRunCancelledContextReportsUnfedJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls int32
	pool := NewPool[int]("test", func(ctx context.Context, job Job) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, nil
	}, PoolConfig{Workers: 1})

	results := pool.Run(ctx, batchOf(5))

	require.Len(t, results, 5)
	cancelled := 0
	for _, r := range results {
		if errors.Is(r.Err, context.Canceled) {
			cancelled++
		}
	}
	assert.Equal(t, 5-int(atomic.LoadInt32(&calls)), cancelled)
}

func TestPoolRunEmptyBatch(t *testing.T) {
	pool := NewPool[int]("test", nil, PoolConfig{})
	assert.Nil(t, pool.Run(context.Background(), nil))
	assert.Equal(t, 1, pool.Workers())
}
