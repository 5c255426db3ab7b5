package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunner_RunsTasks(t *testing.T) {
	r := NewRunner(2, nil)
	var n atomic.Int32
	for i := 0; i < 5; i++ {
		if err := r.Go(context.Background(), "inc", time.Second, func(context.Context) error {
			n.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("go: %v", err)
		}
	}
	r.Wait()
	if n.Load() != 5 {
		t.Fatalf("expected 5 runs, got %d", n.Load())
	}
}

func TestRunner_BoundsConcurrency(t *testing.T) {
	r := NewRunner(2, nil)
	var cur, peak atomic.Int32
	for i := 0; i < 8; i++ {
		_ = r.Go(context.Background(), "busy", time.Second, func(context.Context) error {
			v := cur.Add(1)
			for {
				p := peak.Load()
				if v <= p || peak.CompareAndSwap(p, v) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			cur.Add(-1)
			return nil
		})
	}
	r.Wait()
	if peak.Load() > 2 {
		t.Fatalf("expected at most 2 concurrent tasks, saw %d", peak.Load())
	}
}

func TestRunner_TaskOutlivesParentButNotTimeout(t *testing.T) {
	r := NewRunner(1, nil)
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	var got error
	_ = r.Go(parent, "wait", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		got = ctx.Err()
		return got
	})
	r.Wait()
	if !errors.Is(got, context.DeadlineExceeded) {
		t.Fatalf("expected task deadline, got %v", got)
	}
}

func TestRunner_ShutdownRejectsNewTasks(t *testing.T) {
	r := NewRunner(1, nil)
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if err := r.Go(context.Background(), "late", time.Second, func(context.Context) error { return nil }); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestRunner_ShutdownCancelsOnDeadline(t *testing.T) {
	r := NewRunner(1, nil)
	_ = r.Go(context.Background(), "hang", time.Hour, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestRunner_RecoversPanics(t *testing.T) {
	r := NewRunner(1, nil)
	_ = r.Go(context.Background(), "boom", time.Second, func(context.Context) error { panic("boom") })
	r.Wait()
	if r.InFlight() != 0 {
		t.Fatalf("expected no in-flight tasks")
	}
}
