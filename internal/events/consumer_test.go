package events

import (
	"context"
	"sync"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeAcker struct {
	mu      sync.Mutex
	acked   []uint64
	nacked  []uint64
	requeue bool
}

func (f *fakeAcker) Ack(tag uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeAcker) Nack(tag uint64, _ bool, requeue bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nacked = append(f.nacked, tag)
	f.requeue = f.requeue || requeue
	return nil
}

func (f *fakeAcker) Reject(tag uint64, requeue bool) error { return f.Nack(tag, false, requeue) }

func newTestConsumer(t *testing.T, url string) *Consumer {
	t.Helper()
	c, err := NewConsumer(ConsumerOptions{
		URL:        url,
		Exchange:   "source_exchange",
		Queue:      "outgoing_sms",
		RoutingKey: RoutingKey(TypeSMSOutgoing),
		RetryDelay: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("consumer: %v", err)
	}
	return c
}

func TestNewConsumer_RequiresTopology(t *testing.T) {
	if _, err := NewConsumer(ConsumerOptions{URL: "amqp://x", Exchange: "ex"}); err == nil {
		t.Fatalf("expected error without queue and routing key")
	}
	if _, err := NewConsumer(ConsumerOptions{Exchange: "ex", Queue: "q", RoutingKey: "k"}); err == nil {
		t.Fatalf("expected error without url")
	}
}

func TestConsumer_SettlesByOutcome(t *testing.T) {
	c := newTestConsumer(t, "amqp://unused")
	acker := &fakeAcker{}

	var seen []string
	handle := func(ctx context.Context, d Delivery) Outcome {
		if _, ok := ctx.Deadline(); !ok {
			t.Errorf("handler ctx has no deadline")
		}
		seen = append(seen, string(d.Body))
		if string(d.Body) == "bad" {
			return Reject
		}
		return Ack
	}

	key := RoutingKey(TypeSMSOutgoing)
	c.settle(context.Background(), amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, RoutingKey: key, Body: []byte("good")}, handle)
	c.settle(context.Background(), amqp.Delivery{Acknowledger: acker, DeliveryTag: 2, RoutingKey: key, Body: []byte("bad")}, handle)
	c.settle(context.Background(), amqp.Delivery{Acknowledger: acker, DeliveryTag: 3, RoutingKey: "source.twilio.sms.incoming", Body: []byte("other")}, handle)

	if len(seen) != 2 {
		t.Fatalf("expected the mismatched key to skip the handler, saw %v", seen)
	}
	if len(acker.acked) != 1 || acker.acked[0] != 1 {
		t.Fatalf("expected tag 1 acked, got %v", acker.acked)
	}
	if len(acker.nacked) != 2 || acker.nacked[0] != 2 || acker.nacked[1] != 3 {
		t.Fatalf("expected tags 2 and 3 rejected, got %v", acker.nacked)
	}
	if acker.requeue {
		t.Fatalf("rejected deliveries must not be requeued")
	}
}

func TestConsumer_RunStopsWithContextWhileBrokerIsSilent(t *testing.T) {
	c := newTestConsumer(t, silentBroker(t))

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, func(context.Context, Delivery) Outcome { return Ack })
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil on shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run still blocked %v after its context ended", time.Since(start))
	}
}
