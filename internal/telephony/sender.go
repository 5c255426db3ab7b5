package telephony

import (
	"context"
	"errors"
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Sender dispatches a single outbound SMS and returns the provider message ID.
//
// Rules:
// - No provider SDK calls outside this package.
// - Implementations must not retry; callers decide what a failure means.
type Sender interface {
	SendSMS(ctx context.Context, to, body string) (string, error)
}

// TwilioSender sends SMS through the Twilio Messages API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioSender(accountSID, authToken, from string) (*TwilioSender, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, errors.New("telephony: missing Twilio credentials")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, from: from}, nil
}

// From is the station number messages are sent from.
func (s *TwilioSender) From() string { return s.from }

func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	// The SDK call is not context-aware; at least honor cancellation before dispatch.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(s.from)
	params.SetTo(to)
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("twilio create message: %w", err)
	}
	if resp == nil || resp.Sid == nil {
		return "", errors.New("twilio create message: empty response")
	}
	return *resp.Sid, nil
}
