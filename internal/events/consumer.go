package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"wbor-twilio/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Outcome tells the consumer how to settle a delivery.
type Outcome int

const (
	Ack Outcome = iota
	// Reject drops the delivery without requeue. A dead-letter exchange on
	// the queue, if configured, keeps it.
	Reject
)

func (o Outcome) String() string {
	if o == Ack {
		return "ack"
	}
	return "reject"
}

// Delivery is the part of an AMQP delivery a handler reads.
type Delivery struct {
	RoutingKey string
	MessageID  string
	Body       []byte
}

// Handler settles one delivery. It runs under a per-delivery timeout.
type Handler func(ctx context.Context, d Delivery) Outcome

type ConsumerOptions struct {
	URL        string
	Exchange   string
	Queue      string
	RoutingKey string

	// HandleTimeout bounds one handler call. Default 30s.
	HandleTimeout time.Duration
	// RetryDelay is the pause before reconnecting. Default 5s.
	RetryDelay time.Duration
	Logger     *slog.Logger
}

// Consumer drains one durable queue bound to the topic exchange, one
// message at a time.
type Consumer struct {
	opts ConsumerOptions
	log  *slog.Logger
}

func NewConsumer(opts ConsumerOptions) (*Consumer, error) {
	switch {
	case opts.URL == "":
		return nil, errors.New("events: amqp url is required")
	case opts.Exchange == "" || opts.Queue == "" || opts.RoutingKey == "":
		return nil, errors.New("events: exchange, queue and routing key are required")
	}
	if opts.HandleTimeout <= 0 {
		opts.HandleTimeout = 30 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	return &Consumer{opts: opts, log: logger.OrDefault(opts.Logger)}, nil
}

// Run consumes until ctx ends, reconnecting after broker failures. It
// returns nil once ctx is done, or an error when the broker refuses access.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	for {
		err := c.consume(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}
		var aerr *amqp.Error
		if errors.As(err, &aerr) && aerr.Code == amqp.AccessRefused {
			return fmt.Errorf("events: consume %s: %w", c.opts.Queue, err)
		}
		c.log.Error("queue consumer disconnected", "queue", c.opts.Queue, "err", err, "retry_in", c.opts.RetryDelay.String())

		t := time.NewTimer(c.opts.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (c *Consumer) consume(ctx context.Context, handle Handler) error {
	conn, ch, err := dialBroker(ctx, c.opts.URL, "wbor-twilio-"+c.opts.Queue)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := ch.ExchangeDeclare(c.opts.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return fmt.Errorf("events: declare exchange %s: %w", c.opts.Exchange, err)
	}
	if _, err := ch.QueueDeclare(c.opts.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("events: declare queue %s: %w", c.opts.Queue, err)
	}
	if err := ch.QueueBind(c.opts.Queue, c.opts.RoutingKey, c.opts.Exchange, false, nil); err != nil {
		return fmt.Errorf("events: bind queue %s: %w", c.opts.Queue, err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("events: qos: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, c.opts.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("events: consume %s: %w", c.opts.Queue, err)
	}
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.log.Info("queue consumer ready", "queue", c.opts.Queue, "routing_key", c.opts.RoutingKey)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case aerr, ok := <-closed:
			if ok && aerr != nil {
				return aerr
			}
			return errors.New("events: connection closed")
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("events: delivery channel closed")
			}
			c.settle(ctx, d, handle)
		}
	}
}

// settle runs handle and acks or rejects d. Deliveries for another routing
// key are rejected without reaching handle.
func (c *Consumer) settle(ctx context.Context, d amqp.Delivery, handle Handler) {
	log := c.log.With("queue", c.opts.Queue, "routing_key", d.RoutingKey, "message_id", d.MessageId)

	out := Reject
	if d.RoutingKey != c.opts.RoutingKey {
		log.Warn("delivery with unexpected routing key rejected", "expected", c.opts.RoutingKey)
	} else {
		// A delivery in progress finishes even when shutdown begins.
		hctx, cancel := context.WithTimeout(logger.With(context.WithoutCancel(ctx), log), c.opts.HandleTimeout)
		out = handle(hctx, Delivery{RoutingKey: d.RoutingKey, MessageID: d.MessageId, Body: d.Body})
		cancel()
	}

	var err error
	if out == Ack {
		err = d.Ack(false)
	} else {
		err = d.Nack(false, false)
	}
	if err != nil {
		log.Error("delivery settle failed", "outcome", out.String(), "err", err)
		return
	}
	log.Debug("delivery settled", "outcome", out.String())
}
