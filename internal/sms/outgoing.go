package sms

import (
	"context"
	"encoding/json"

	"wbor-twilio/internal/apperr"
	"wbor-twilio/internal/events"
	"wbor-twilio/pkg/logger"
)

// QueuedMessage is a send request published on source.twilio.sms.outgoing
// by other station services. Messages carrying a MessageSID are this
// gateway's own records of completed sends.
type QueuedMessage struct {
	ID         string `json:"wbor_message_id"`
	Recipient  string `json:"recipient_number"`
	Body       string `json:"body"`
	MessageSID string `json:"message_sid"`
}

// HandleQueued settles one queued send request: it is sent once and acked,
// or rejected without requeue when malformed, invalid or refused by the
// provider. The broker is trusted, so no password is required.
func (s *Service) HandleQueued(ctx context.Context, d events.Delivery) events.Outcome {
	log := logger.From(ctx)

	var m QueuedMessage
	if err := json.Unmarshal(d.Body, &m); err != nil {
		log.Warn("queued sms malformed", "err", err)
		return events.Reject
	}
	if m.MessageSID != "" {
		log.Debug("queued sms already sent", "message_sid", m.MessageSID)
		return events.Ack
	}
	if m.Recipient == "" || m.Body == "" {
		log.Warn("queued sms missing recipient_number or body", "wbor_message_id", m.ID)
		return events.Reject
	}

	res, err := s.dispatch(ctx, OutboundSmsRequest{Recipient: m.Recipient, Body: m.Body}, m.ID)
	if err != nil {
		log.Warn("queued sms not sent", "wbor_message_id", m.ID, "error_kind", apperr.KindOf(err).String())
		return events.Reject
	}
	log.Info("queued sms sent", "wbor_message_id", m.ID, "message_sid", res.MessageSID)
	return events.Ack
}
