package telephony

import (
	"context"
	"fmt"
	"strings"

	lookups "github.com/twilio/twilio-go/rest/lookups/v2"
)

// CallerNameLookup resolves the CNAM name registered for a number.
// An empty name with a nil error means the carrier has none.
type CallerNameLookup interface {
	LookupCallerName(ctx context.Context, number string) (string, error)
}

// LookupCallerName asks Twilio Lookup v2 for the caller_name field. The SDK
// call has no context, so an abandoned call finishes in the background.
func (s *TwilioSender) LookupCallerName(ctx context.Context, number string) (string, error) {
	type result struct {
		name string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		params := &lookups.FetchPhoneNumberParams{}
		params.SetFields("caller_name")
		resp, err := s.client.LookupsV2.FetchPhoneNumber(number, params)
		if err != nil {
			done <- result{err: fmt.Errorf("twilio lookup: %w", err)}
			return
		}
		done <- result{name: callerName(resp)}
	}()

	select {
	case r := <-done:
		return r.name, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("twilio lookup: %w", ctx.Err())
	}
}

func callerName(resp *lookups.LookupsV2PhoneNumber) string {
	if resp == nil || resp.CallerName == nil {
		return ""
	}
	name, _ := (*resp.CallerName)["caller_name"].(string)
	return strings.TrimSpace(name)
}
