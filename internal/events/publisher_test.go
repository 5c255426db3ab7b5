package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestRoutingKey(t *testing.T) {
	if got := RoutingKey(TypeSMSIncoming); got != "source.twilio.sms.incoming" {
		t.Fatalf("unexpected key %q", got)
	}
}

func TestBuildMessage(t *testing.T) {
	now := time.Unix(1700000000, 0)
	msg, err := buildMessage(TypeSMSOutgoing, map[string]any{"body": "hi", "recipient_number": "+12075550111"}, now)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" {
		t.Fatalf("unexpected properties %+v", msg)
	}
	if msg.Headers["x-retry-count"] != int32(0) {
		t.Fatalf("expected retry header, got %v", msg.Headers)
	}

	var body map[string]any
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["type"] != TypeSMSOutgoing || body["body"] != "hi" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["wbor_message_id"] != msg.MessageId || msg.MessageId == "" {
		t.Fatalf("expected generated message id in body and properties")
	}
}

func TestBuildMessage_KeepsCallerID(t *testing.T) {
	msg, err := buildMessage(TypeSMSIncoming, map[string]any{"wbor_message_id": "abc"}, time.Now())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if msg.MessageId != "abc" {
		t.Fatalf("expected caller id, got %q", msg.MessageId)
	}
}

func TestNewAMQPPublisher_RequiresURL(t *testing.T) {
	if _, err := NewAMQPPublisher("", "x", nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestMemoryPublisher(t *testing.T) {
	m := &MemoryPublisher{}
	_ = m.Publish(context.Background(), TypeCallEvents, map[string]any{"CallSid": "CA1"})
	evs := m.Events()
	if len(evs) != 1 || evs[0].Type != TypeCallEvents {
		t.Fatalf("unexpected events %+v", evs)
	}
}
