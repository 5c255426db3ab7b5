package sms

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"wbor-twilio/internal/apperr"
	"wbor-twilio/internal/audit"
	"wbor-twilio/internal/auth"
	"wbor-twilio/internal/banlist"
	"wbor-twilio/internal/events"
	"wbor-twilio/internal/metrics"
	"wbor-twilio/internal/tasks"
	"wbor-twilio/internal/telephony"
	"wbor-twilio/pkg/logger"
)

// InboundHandler processes an accepted inbound text after the webhook has
// been acknowledged.
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg InboundMessage)
}

// Service is the inbound message router: it validates outbound sends and
// dispatches inbound texts to background handling.
type Service struct {
	sender   telephony.Sender
	station  string
	password *auth.PasswordChecker
	audit    *audit.Service
	bans     banlist.Store
	events   *events.Emitter
	names    telephony.CallerNameLookup
	runner   *tasks.Runner
	handler  InboundHandler
	metrics  *metrics.Metrics
	log      *slog.Logger
	clock    func() time.Time

	inboundTimeout time.Duration
}

type Deps struct {
	Sender        telephony.Sender
	StationNumber string
	Password      *auth.PasswordChecker
	Audit         *audit.Service
	Bans          banlist.Store
	Publisher     events.Publisher
	Runner        *tasks.Runner
	Metrics       *metrics.Metrics
	Logger        *slog.Logger

	// Events publishes on its own runner. Built from Publisher and Runner
	// when nil.
	Events *events.Emitter

	// CallerNames adds SenderName to sms.incoming. Optional.
	CallerNames telephony.CallerNameLookup

	// InboundTimeout bounds the whole background handling of one inbound text.
	InboundTimeout time.Duration
}

// UnknownSender is the SenderName used when no caller name is available.
const UnknownSender = "Unknown"

const callerNameTimeout = 3 * time.Second

func NewService(d Deps) (*Service, error) {
	if d.Sender == nil {
		return nil, errors.New("sms: sender is required")
	}
	if d.Password == nil {
		return nil, errors.New("sms: password checker is required")
	}
	if d.Runner == nil {
		return nil, errors.New("sms: task runner is required")
	}
	if d.Bans == nil {
		d.Bans = banlist.NewMemoryStore()
	}
	if d.Events == nil {
		d.Events = events.NewEmitter(d.Publisher, d.Runner, 10*time.Second)
	}
	if d.InboundTimeout <= 0 {
		d.InboundTimeout = time.Minute
	}
	return &Service{
		sender:         d.Sender,
		station:        d.StationNumber,
		password:       d.Password,
		audit:          d.Audit,
		bans:           d.Bans,
		events:         d.Events,
		names:          d.CallerNames,
		runner:         d.Runner,
		metrics:        d.Metrics,
		log:            logger.OrDefault(d.Logger),
		clock:          time.Now,
		inboundTimeout: d.InboundTimeout,
	}, nil
}

// SetInboundHandler wires the assistant. It must be called before serving.
func (s *Service) SetInboundHandler(h InboundHandler) {
	s.handler = h
}

// SendMessage checks the shared secret, validates req and dispatches once.
// Provider failures are not retried.
func (s *Service) SendMessage(ctx context.Context, req OutboundSmsRequest, sourceIP string) (SendResult, error) {
	if err := s.password.Check(ctx, req.Password, sourceIP, "/send"); err != nil {
		s.metrics.SMSSent("unauthorized")
		return SendResult{}, err
	}
	return s.dispatch(ctx, req, "")
}

// dispatch validates req and sends it once. messageID, when set, is carried
// into the sms.outgoing event.
func (s *Service) dispatch(ctx context.Context, req OutboundSmsRequest, messageID string) (SendResult, error) {
	const op = "sms.send"
	log := logger.From(ctx)

	req.Recipient = NormalizeRecipient(req.Recipient)
	if err := req.Validate(s.station); err != nil {
		s.metrics.SMSSent("rejected")
		log.Info("outbound sms rejected", "reason", apperr.Message(err, "invalid request"))
		return SendResult{}, err
	}

	sid, err := s.sender.SendSMS(ctx, req.Recipient, req.Body)
	if err != nil {
		s.metrics.SMSSent("failed")
		log.Error("outbound sms dispatch failed", "recipient", req.Recipient, "err", err)
		return SendResult{}, apperr.Internal(op, err)
	}

	res := SendResult{MessageSID: sid, Recipient: req.Recipient, SentAt: s.clock().UTC()}
	s.metrics.SMSSent("ok")
	log.Info("outbound sms sent", "message_sid", sid, "recipient", req.Recipient)

	data := map[string]any{
		"recipient_number": req.Recipient,
		"body":             req.Body,
		"message_sid":      sid,
		"source":           "twilio",
		"sent_at":          res.SentAt.Format(time.RFC3339),
	}
	if messageID != "" {
		data["wbor_message_id"] = messageID
	}
	s.publish(ctx, events.TypeSMSOutgoing, data)
	return res, nil
}

// ReceiveInboundText accepts a listener text and hands it to background
// processing. It returns before classification starts.
func (s *Service) ReceiveInboundText(ctx context.Context, msg InboundMessage) error {
	const op = "sms.receive"
	log := logger.From(ctx)

	if msg.From == "" {
		s.metrics.SMSReceived("rejected")
		return apperr.BadRequest(op, "missing sender")
	}

	banned, err := s.bans.IsBanned(ctx, msg.From)
	if err != nil {
		// Fail open: a ban list outage must not drop listener texts.
		log.Warn("ban list lookup failed", "err", err)
	}
	if banned {
		s.metrics.SMSReceived("banned")
		log.Info("inbound sms from banned number dropped", "message_id", msg.ID)
		return nil
	}

	s.metrics.SMSReceived("accepted")
	log.Info("inbound sms received", "message_id", msg.ID, "message_sid", msg.MessageSID, "from", msg.From)

	msg.SenderName = s.senderName(ctx, msg.From)
	data := map[string]any{
		"wbor_message_id": msg.ID,
		"MessageSid":      msg.MessageSID,
		"From":            msg.From,
		"To":              msg.To,
		"Body":            msg.Body,
		"NumMedia":        msg.NumMedia,
		"SenderName":      msg.SenderName,
		"source":          "twilio",
	}
	for i, u := range msg.MediaURLs {
		data["MediaUrl"+strconv.Itoa(i)] = u
	}
	s.publish(ctx, events.TypeSMSIncoming, data)

	if s.handler == nil {
		return nil
	}
	h := s.handler
	err = s.runner.Go(ctx, "sms.inbound", s.inboundTimeout, func(ctx context.Context) error {
		h.HandleInbound(ctx, msg)
		return nil
	})
	if err != nil {
		return apperr.Internal(op, err)
	}
	return nil
}

// Ban adds number to the ban list and audits the change.
func (s *Service) Ban(ctx context.Context, number, sourceIP string) error {
	return s.setBan(ctx, number, sourceIP, true)
}

// Unban removes number from the ban list and audits the change.
func (s *Service) Unban(ctx context.Context, number, sourceIP string) error {
	return s.setBan(ctx, number, sourceIP, false)
}

func (s *Service) setBan(ctx context.Context, number, sourceIP string, ban bool) error {
	const op = "sms.ban"
	n := NormalizeRecipient(number)
	if !recipientPattern.MatchString(n) {
		return apperr.BadRequest(op, "invalid number")
	}
	n = banlist.Normalize(n)

	var err error
	if ban {
		err = s.bans.Ban(ctx, n)
	} else {
		err = s.bans.Unban(ctx, n)
	}
	if err != nil {
		return apperr.Internal(op, err)
	}

	log := logger.From(ctx)
	log.Info("ban list updated", "number", n, "banned", ban)
	if s.audit != nil {
		if err := s.audit.LogBan(ctx, sourceIP, n, ban); err != nil {
			log.Error("audit append failed", "err", err)
		}
	}
	return nil
}

// senderName looks up the CNAM name for from within three seconds. Any
// failure yields UnknownSender.
func (s *Service) senderName(ctx context.Context, from string) string {
	if s.names == nil {
		return UnknownSender
	}
	ctx, cancel := context.WithTimeout(ctx, callerNameTimeout)
	defer cancel()

	name, err := s.names.LookupCallerName(ctx, from)
	if err != nil {
		logger.From(ctx).Warn("caller name lookup failed", "from", from, "err", err)
		return UnknownSender
	}
	if name == "" {
		return UnknownSender
	}
	return name
}

func (s *Service) publish(ctx context.Context, eventType string, data map[string]any) {
	s.events.Emit(ctx, eventType, data)
}
