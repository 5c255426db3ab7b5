package events

import (
	"context"
	"fmt"
	"net"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// dialTimeout bounds the TCP connect and AMQP handshake when ctx has no
// earlier deadline.
const dialTimeout = 10 * time.Second

// dialBroker opens a connection and one channel. The handshake is bounded by
// ctx: amqp091 has no context-aware dial, so the socket deadline is pulled in
// when ctx ends.
func dialBroker(ctx context.Context, url, name string) (*amqp.Connection, *amqp.Channel, error) {
	var stop func() bool
	cfg := amqp.Config{
		Properties: amqp.Table{"connection_name": name},
		Heartbeat:  10 * time.Second,
		Dial: func(network, addr string) (net.Conn, error) {
			d := net.Dialer{Timeout: dialTimeout}
			conn, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			// amqp091 clears this deadline once the connection is open.
			deadline := time.Now().Add(dialTimeout)
			if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
				deadline = dl
			}
			if err := conn.SetDeadline(deadline); err != nil {
				_ = conn.Close()
				return nil, err
			}
			stop = context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
			return conn, nil
		},
	}

	conn, err := amqp.DialConfig(url, cfg)
	if stop != nil && !stop() && err == nil {
		// ctx ended after the handshake; the socket may carry a stale deadline.
		_ = conn.Close()
		return nil, nil, fmt.Errorf("events: dial: %w", ctx.Err())
	}
	if err != nil {
		return nil, nil, fmt.Errorf("events: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("events: open channel: %w", err)
	}
	return conn, ch, nil
}
