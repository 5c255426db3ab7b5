package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"wbor-twilio/pkg/logger"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Event sub-keys published under source.twilio.<type>.
const (
	TypeSMSIncoming       = "sms.incoming"
	TypeSMSOutgoing       = "sms.outgoing"
	TypeCallEvents        = "call-events"
	TypeVoiceIntelligence = "voice-intelligence"
	TypeRecording         = "voice.recording"
)

const source = "twilio"

// Publisher fans gateway events out to downstream consumers. Publishing is
// best-effort: callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, eventType string, data map[string]any) error
	Close() error
}

// RoutingKey returns the topic routing key for an event type.
func RoutingKey(eventType string) string {
	return fmt.Sprintf("source.%s.%s", source, eventType)
}

// AMQPPublisher publishes JSON events to a durable topic exchange.
// The connection is opened lazily and re-dialed after the broker drops it.
type AMQPPublisher struct {
	url      string
	exchange string
	log      *slog.Logger

	// lock is a one-slot semaphore so waiters can give up when ctx ends.
	lock chan struct{}
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, exchange string, l *slog.Logger) (*AMQPPublisher, error) {
	if url == "" {
		return nil, errors.New("events: amqp url is required")
	}
	if exchange == "" {
		return nil, errors.New("events: exchange is required")
	}
	return &AMQPPublisher{url: url, exchange: exchange, log: logger.OrDefault(l), lock: make(chan struct{}, 1)}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, eventType string, data map[string]any) error {
	msg, err := buildMessage(eventType, data, time.Now())
	if err != nil {
		return err
	}

	if err := p.acquire(ctx); err != nil {
		return fmt.Errorf("events: publish %s: %w", eventType, err)
	}
	defer p.release()

	ch, err := p.channel(ctx)
	if err != nil {
		return err
	}

	key := RoutingKey(eventType)
	if err := ch.PublishWithContext(ctx, p.exchange, key, false, false, msg); err != nil {
		p.resetLocked()
		return fmt.Errorf("events: publish %s: %w", key, err)
	}
	p.log.DebugContext(ctx, "event published", "exchange", p.exchange, "routing_key", key, "message_id", msg.MessageId)
	return nil
}

func (p *AMQPPublisher) acquire(ctx context.Context) error {
	select {
	case p.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AMQPPublisher) release() { <-p.lock }

type dialResult struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	err  error
}

// channel returns an open channel, dialing and declaring the exchange if
// needed. It gives up when ctx ends; a late connection is closed.
// Caller holds the lock.
func (p *AMQPPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.resetLocked()

	done := make(chan dialResult, 1)
	go func() { done <- p.dial(ctx) }()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		p.conn, p.ch = r.conn, r.ch
		return r.ch, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, fmt.Errorf("events: dial: %w", ctx.Err())
	}
}

func (p *AMQPPublisher) dial(ctx context.Context) dialResult {
	conn, ch, err := dialBroker(ctx, p.url, "wbor-twilio")
	if err != nil {
		return dialResult{err: err}
	}
	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return dialResult{err: fmt.Errorf("events: declare exchange %s: %w", p.exchange, err)}
	}
	return dialResult{conn: conn, ch: ch}
}

func (p *AMQPPublisher) resetLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.ch, p.conn = nil, nil
}

// Close waits up to five seconds for an in-flight publish, then drops the
// connection.
func (p *AMQPPublisher) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.acquire(ctx); err != nil {
		return err
	}
	defer p.release()
	p.resetLocked()
	return nil
}

// buildMessage encodes data with its type and a message ID. Messages are
// persistent and start with a zero retry count for downstream consumers.
func buildMessage(eventType string, data map[string]any, now time.Time) (amqp.Publishing, error) {
	body := make(map[string]any, len(data)+2)
	for k, v := range data {
		body[k] = v
	}
	body["type"] = eventType

	id, _ := body["wbor_message_id"].(string)
	if id == "" {
		id = uuid.NewString()
		body["wbor_message_id"] = id
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("events: encode %s: %w", eventType, err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Timestamp:    now.UTC(),
		Headers:      amqp.Table{"x-retry-count": int32(0)},
		Body:         raw,
	}, nil
}

// Nop drops every event. Used when RABBITMQ_URL is unset.
type Nop struct{}

func (Nop) Publish(context.Context, string, map[string]any) error { return nil }
func (Nop) Close() error                                          { return nil }

// Recorded is one event captured by MemoryPublisher.
type Recorded struct {
	Type string
	Data map[string]any
}

// MemoryPublisher records events in process; useful for tests.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Recorded
	Err    error
}

func (m *MemoryPublisher) Publish(_ context.Context, eventType string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.events = append(m.events, Recorded{Type: eventType, Data: data})
	return nil
}

func (m *MemoryPublisher) Close() error { return nil }

func (m *MemoryPublisher) Events() []Recorded {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Recorded, len(m.events))
	copy(out, m.events)
	return out
}
