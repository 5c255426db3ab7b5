package sms

import (
	"strings"
	"testing"

	"wbor-twilio/internal/apperr"
)

func TestNormalizeRecipient(t *testing.T) {
	cases := map[string]string{
		" 12075550111":  "+12075550111",
		"+12075550111":  "+12075550111",
		"12075550111 ":  "12075550111",
		"++12075550111": "+12075550111",
	}
	for in, want := range cases {
		if got := NormalizeRecipient(in); got != want {
			t.Fatalf("NormalizeRecipient(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestValidate(t *testing.T) {
	station := "+12075550100"
	ok := OutboundSmsRequest{Recipient: "+12075550111", Body: "hello"}
	if err := ok.Validate(station); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	atLimit := ok
	atLimit.Body = strings.Repeat("é", MaxBodyLength)
	if err := atLimit.Validate(station); err != nil {
		t.Fatalf("expected 1600 characters to pass, got %v", err)
	}

	bad := map[string]OutboundSmsRequest{
		"short number":   {Recipient: "12345", Body: "x"},
		"letters":        {Recipient: "+1207555abcd", Body: "x"},
		"empty body":     {Recipient: "+12075550111", Body: "   "},
		"oversized body": {Recipient: "+12075550111", Body: strings.Repeat("a", MaxBodyLength+1)},
		"station number": {Recipient: "12075550100", Body: "x"},
	}
	for name, req := range bad {
		if err := req.Validate(station); apperr.KindOf(err) != apperr.KindBadRequest {
			t.Fatalf("%s: expected bad request, got %v", name, err)
		}
	}
}
