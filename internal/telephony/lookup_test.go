package telephony

import (
	"testing"

	lookups "github.com/twilio/twilio-go/rest/lookups/v2"
)

func TestCallerName(t *testing.T) {
	withName := map[string]interface{}{"caller_name": " JANE LISTENER ", "caller_type": "CONSUMER"}
	noName := map[string]interface{}{"caller_name": nil, "error_code": 60601}

	cases := []struct {
		name string
		resp *lookups.LookupsV2PhoneNumber
		want string
	}{
		{"nil response", nil, ""},
		{"field not requested", &lookups.LookupsV2PhoneNumber{}, ""},
		{"no cnam record", &lookups.LookupsV2PhoneNumber{CallerName: &noName}, ""},
		{"registered", &lookups.LookupsV2PhoneNumber{CallerName: &withName}, "JANE LISTENER"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := callerName(tc.resp); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}
