package events

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"wbor-twilio/internal/tasks"
)

// silentBroker accepts TCP connections and never speaks AMQP.
func silentBroker(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, c)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			_ = c.Close()
		}
	})
	return "amqp://guest:guest@" + ln.Addr().String() + "/"
}

func TestAMQPPublisher_SilentBrokerRespectsDeadline(t *testing.T) {
	p, err := NewAMQPPublisher(silentBroker(t), "source_exchange", nil)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = p.Publish(ctx, TypeSMSIncoming, map[string]any{"Body": "hi"})
	if err == nil {
		t.Fatalf("expected publish to fail against a silent broker")
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("publish took %v, want about the 300ms deadline", elapsed)
	}
}

func TestAMQPPublisher_WaitersGiveUpWithContext(t *testing.T) {
	p, err := NewAMQPPublisher(silentBroker(t), "source_exchange", nil)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	defer p.Close()

	holding := make(chan struct{})
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		close(holding)
		_ = p.Publish(ctx, TypeSMSIncoming, map[string]any{})
	}()
	<-holding
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	err = p.Publish(ctx, TypeSMSOutgoing, map[string]any{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("second publish waited %v behind the first", elapsed)
	}
}

func TestEmitter_SilentBrokerLeavesWorkRunnerFree(t *testing.T) {
	p, err := NewAMQPPublisher(silentBroker(t), "source_exchange", nil)
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	defer p.Close()

	eventRunner := tasks.NewRunner(2, nil)
	work := tasks.NewRunner(2, nil)
	em := NewEmitter(p, eventRunner, 300*time.Millisecond)

	for i := 0; i < 4; i++ {
		em.Emit(context.Background(), TypeCallEvents, map[string]any{"n": i})
	}

	started := make(chan struct{})
	if err := work.Go(context.Background(), "classify", time.Second, func(context.Context) error {
		close(started)
		return nil
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatalf("unrelated task blocked behind event publishing")
	}

	done := make(chan struct{})
	go func() {
		eventRunner.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("event publishes outlived their timeout")
	}
	work.Wait()
}

func TestEmitter_NilIsNoop(t *testing.T) {
	var em *Emitter
	em.Emit(context.Background(), TypeSMSIncoming, nil)
}
