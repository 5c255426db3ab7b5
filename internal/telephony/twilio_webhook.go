package telephony

import (
	"net/http"
	"strconv"
	"strings"
)

// Twilio posts application/x-www-form-urlencoded webhooks.
// The types below keep only the fields the gateway reads; decisions are made
// by the callers, not here.

// TwilioSMSForm is the inbound-message webhook payload.
type TwilioSMSForm struct {
	MessageSid string
	AccountSid string
	From       string
	To         string
	Body       string
	NumMedia   int
	MediaURLs  []string
}

func ParseTwilioSMS(r *http.Request) (TwilioSMSForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioSMSForm{}, err
	}
	n, _ := strconv.Atoi(strings.TrimSpace(r.PostFormValue("NumMedia")))
	var media []string
	// Twilio attaches at most ten media items per message.
	for i := 0; i < n && i < 10; i++ {
		if u := strings.TrimSpace(r.PostFormValue("MediaUrl" + strconv.Itoa(i))); u != "" {
			media = append(media, u)
		}
	}
	return TwilioSMSForm{
		MessageSid: strings.TrimSpace(r.PostFormValue("MessageSid")),
		AccountSid: strings.TrimSpace(r.PostFormValue("AccountSid")),
		From:       normalizePhone(r.PostFormValue("From")),
		To:         normalizePhone(r.PostFormValue("To")),
		Body:       r.PostFormValue("Body"),
		NumMedia:   n,
		MediaURLs:  media,
	}, nil
}

// TwilioRecordingForm is the recording-status callback payload.
type TwilioRecordingForm struct {
	AccountSid         string
	CallSid            string
	RecordingSid       string
	RecordingURL       string
	RecordingStatus    string
	RecordingDuration  string
	RecordingStartTime string
}

func ParseTwilioRecording(r *http.Request) (TwilioRecordingForm, error) {
	if err := r.ParseForm(); err != nil {
		return TwilioRecordingForm{}, err
	}
	return TwilioRecordingForm{
		AccountSid:         strings.TrimSpace(r.PostFormValue("AccountSid")),
		CallSid:            strings.TrimSpace(r.PostFormValue("CallSid")),
		RecordingSid:       strings.TrimSpace(r.PostFormValue("RecordingSid")),
		RecordingURL:       strings.TrimSpace(r.PostFormValue("RecordingUrl")),
		RecordingStatus:    strings.TrimSpace(r.PostFormValue("RecordingStatus")),
		RecordingDuration:  strings.TrimSpace(r.PostFormValue("RecordingDuration")),
		RecordingStartTime: strings.TrimSpace(r.PostFormValue("RecordingStartTime")),
	}, nil
}

// FormValues flattens a parsed POST form to the first value per key.
// Twilio signs exactly this map.
func FormValues(r *http.Request) (map[string]string, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(r.PostForm))
	for k, vs := range r.PostForm {
		if len(vs) > 0 {
			out[k] = vs[0]
		}
	}
	return out, nil
}

func normalizePhone(s string) string {
	// Twilio sometimes sends "anonymous" or empty; keep as-is.
	return strings.TrimSpace(s)
}
