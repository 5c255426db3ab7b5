package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"wbor-twilio/pkg/logger"

	"golang.org/x/sync/semaphore"
)

var ErrClosed = errors.New("tasks: runner is shut down")

// Runner executes background work after an HTTP response has been written.
//
// A weighted semaphore bounds how many tasks run at once. Each task gets its
// own deadline; cancelling the runner cancels every task.
type Runner struct {
	sem    *semaphore.Weighted
	log    *slog.Logger
	active atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewRunner(maxConcurrent int64, l *slog.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		sem:    semaphore.NewWeighted(maxConcurrent),
		log:    logger.OrDefault(l),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Go schedules fn and returns immediately.
//
// The task context keeps the values of parent (request logger, IDs) but not
// its cancellation, so it outlives the request that started it. It ends after
// timeout or when the runner is cancelled.
func (r *Runner) Go(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.run(parent, name, timeout, fn)
	}()
	return nil
}

func (r *Runner) run(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) {
	if err := r.sem.Acquire(r.ctx, 1); err != nil {
		r.log.Warn("task dropped", "task", name, "err", err)
		return
	}
	defer r.sem.Release(1)

	r.active.Add(1)
	defer r.active.Add(-1)

	ctx := context.WithoutCancel(parent)
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()
	stop := context.AfterFunc(r.ctx, cancel)
	defer stop()

	log := logger.From(ctx)
	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("task panicked", "task", name, "panic", fmt.Sprint(rec))
		}
	}()

	if err := fn(ctx); err != nil {
		log.Debug("task finished with error", "task", name, "err", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	log.Debug("task finished", "task", name, "duration_ms", time.Since(start).Milliseconds())
}

// InFlight reports tasks currently holding a slot.
func (r *Runner) InFlight() int {
	return int(r.active.Load())
}

// Wait blocks until every scheduled task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting tasks and waits for in-flight ones. If ctx ends
// first, remaining tasks are cancelled and ctx's error is returned.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
