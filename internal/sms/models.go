package sms

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"wbor-twilio/internal/apperr"
)

// MaxBodyLength is the provider's hard limit, counted in characters.
const MaxBodyLength = 1600

// InboundMessage is a text received from a listener. Immutable once received.
type InboundMessage struct {
	ID         string    `json:"wbor_message_id"`
	MessageSID string    `json:"MessageSid"`
	From       string    `json:"From"`
	To         string    `json:"To"`
	Body       string    `json:"Body"`
	NumMedia   int       `json:"NumMedia"`
	MediaURLs  []string  `json:"media_urls,omitempty"`
	SenderName string    `json:"SenderName"`
	ReceivedAt time.Time `json:"received_at"`
}

// OutboundSmsRequest is validated before dispatch and never persisted.
type OutboundSmsRequest struct {
	Password  string
	Recipient string
	Body      string
}

// SendResult describes an accepted dispatch.
type SendResult struct {
	MessageSID string    `json:"message_sid"`
	Recipient  string    `json:"recipient_number"`
	SentAt     time.Time `json:"sent_at"`
}

var recipientPattern = regexp.MustCompile(`^\+?\d{10,15}$`)

// NormalizeRecipient undoes query-string decoding of "+" into a space.
func NormalizeRecipient(s string) string {
	s = strings.TrimRight(s, " \t\r\n")
	s = strings.ReplaceAll(s, " ", "+")
	for strings.HasPrefix(s, "++") {
		s = s[1:]
	}
	return s
}

// Validate checks req against the station number. It does not check the
// password; that is the caller's first step.
func (req OutboundSmsRequest) Validate(stationNumber string) error {
	const op = "sms.validate"
	switch {
	case !recipientPattern.MatchString(req.Recipient):
		return apperr.BadRequest(op, "invalid recipient number")
	case strings.TrimSpace(req.Body) == "":
		return apperr.BadRequest(op, "body is required")
	case utf8.RuneCountInString(req.Body) > MaxBodyLength:
		return apperr.BadRequest(op, "body exceeds 1600 characters")
	case stationNumber != "" && sameNumber(req.Recipient, stationNumber):
		return apperr.BadRequest(op, "recipient is the station number")
	}
	return nil
}

func sameNumber(a, b string) bool {
	return strings.TrimPrefix(a, "+") == strings.TrimPrefix(b, "+")
}
