// Package workerpool provides bounded fan-out for the pipeline phases.
// Each tier (materials, countries, experts) runs its branches under a
// weighted semaphore so at most N provider-calling tasks execute
// concurrently, with a per-task timeout that marks only the offending
// branch while its siblings keep running.
package workerpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/altai-labs/magellan/internal/providers"
)

// TaskStatus classifies how one branch finished.
type TaskStatus string

const (
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusTimeout   TaskStatus = "timeout"
)

// Pool bounds concurrent execution for one fan-out tier.
type Pool struct {
	name        string
	sem         *semaphore.Weighted
	taskTimeout time.Duration
	logger      *zap.Logger
}

// New creates a pool admitting at most limit concurrent tasks. A
// non-positive limit falls back to 1; a non-positive taskTimeout disables
// the per-task deadline.
func New(name string, limit int64, taskTimeout time.Duration, logger *zap.Logger) *Pool {
	if limit < 1 {
		limit = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		name:        name,
		sem:         semaphore.NewWeighted(limit),
		taskTimeout: taskTimeout,
		logger:      logger,
	}
}

// Result carries the outcome of one branch, addressed by its input index so
// aggregation stays deterministic regardless of completion order.
type Result[T any] struct {
	Index   int
	Value   T
	Err     error
	Status  TaskStatus
	Elapsed time.Duration
}

// TimedOut reports whether the branch exceeded its deadline.
func (r Result[T]) TimedOut() bool { return r.Status == StatusTimeout }

// Map fans out fn over n branches under the pool's concurrency limit and
// waits for every branch to finish or time out. A branch that exceeds the
// per-task timeout is marked StatusTimeout; siblings are unaffected and the
// call only returns once all branches have settled.
func Map[T any](ctx context.Context, p *Pool, n int, fn func(ctx context.Context, index int) (T, error)) []Result[T] {
	results := make([]Result[T], n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = runOne(ctx, p, idx, fn)
		}(i)
	}
	wg.Wait()

	return results
}

func runOne[T any](ctx context.Context, p *Pool, idx int, fn func(ctx context.Context, index int) (T, error)) Result[T] {
	start := time.Now()

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return Result[T]{Index: idx, Err: err, Status: StatusFailed, Elapsed: time.Since(start)}
	}
	defer p.sem.Release(1)

	taskCtx := ctx
	cancel := func() {}
	if p.taskTimeout > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, p.taskTimeout)
	}
	defer cancel()

	value, err := fn(taskCtx, idx)
	elapsed := time.Since(start)

	res := Result[T]{Index: idx, Value: value, Err: err, Status: StatusCompleted, Elapsed: elapsed}
	if err != nil {
		res.Status = StatusFailed
		if providers.IsTimeout(err) || errors.Is(taskCtx.Err(), context.DeadlineExceeded) {
			res.Status = StatusTimeout
		}
		p.logger.Debug("branch finished with error",
			zap.String("pool", p.name),
			zap.Int("index", idx),
			zap.String("status", string(res.Status)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	}
	return res
}
