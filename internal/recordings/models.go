package recordings

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"wbor-twilio/internal/apperr"
)

// State is a step of the recording pipeline.
//
//	Received -> Validated -> Acknowledged -> Downloading -> Stored -> Logged
//	Received -> Rejected
type State string

const (
	StateReceived     State = "received"
	StateValidated    State = "validated"
	StateRejected     State = "rejected"
	StateAcknowledged State = "acknowledged"
	StateDownloading  State = "downloading"
	StateStored       State = "stored"
	StateLogged       State = "logged"
)

// Callback is the recording-status webhook as received.
type Callback struct {
	CallSID      string
	RecordingSID string
	RecordingURL string
	StartTime    string
	Duration     string
}

// CallRecording is the call log row. StoragePath is never empty once inserted.
type CallRecording struct {
	CallID          string    `json:"call_id"`
	RecordingSID    string    `json:"recording_sid,omitempty"`
	RecordedAt      time.Time `json:"recorded_at"`
	SourceURL       string    `json:"source_url"`
	StoragePath     string    `json:"storage_path"`
	DurationSeconds *int      `json:"duration_seconds,omitempty"`
	SizeBytes       int64     `json:"size_bytes"`
	CreatedAt       time.Time `json:"created_at"`
}

// Ack is returned to the provider once a callback is accepted.
type Ack struct {
	CallID    string `json:"call_id"`
	State     State  `json:"state"`
	Duplicate bool   `json:"duplicate"`
}

// validCallback is a Callback that passed validation.
type validCallback struct {
	CallID       string
	RecordingSID string
	SourceURL    *url.URL
	RecordedAt   time.Time
	Duration     *int
}

// CallSIDs become file names, so they are restricted to a safe alphabet.
var callIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

var timeLayouts = []string{time.RFC1123Z, time.RFC3339, time.RFC1123}

// validateCallID trims and checks a CallSid. Every callback needs one,
// including those that are acknowledged without archiving.
func validateCallID(raw string) (string, error) {
	const op = "recordings.validate"

	id := strings.TrimSpace(raw)
	if id == "" {
		return "", apperr.BadRequest(op, "CallSid is required")
	}
	if !callIDPattern.MatchString(id) {
		return "", apperr.BadRequest(op, "CallSid is malformed")
	}
	return id, nil
}

func (cb Callback) validate() (validCallback, error) {
	const op = "recordings.validate"

	id, err := validateCallID(cb.CallSID)
	if err != nil {
		return validCallback{}, err
	}

	raw := strings.TrimSpace(cb.RecordingURL)
	if raw == "" {
		return validCallback{}, apperr.BadRequest(op, "RecordingUrl is required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return validCallback{}, apperr.BadRequest(op, "RecordingUrl must be an absolute http(s) URL")
	}

	ts := strings.TrimSpace(cb.StartTime)
	if ts == "" {
		return validCallback{}, apperr.BadRequest(op, "RecordingStartTime is required")
	}
	var at time.Time
	for _, layout := range timeLayouts {
		if at, err = time.Parse(layout, ts); err == nil {
			break
		}
	}
	if err != nil {
		return validCallback{}, apperr.BadRequest(op, "RecordingStartTime has an invalid format")
	}

	v := validCallback{
		CallID:       id,
		RecordingSID: strings.TrimSpace(cb.RecordingSID),
		SourceURL:    u,
		RecordedAt:   at.UTC(),
	}
	if d := strings.TrimSpace(cb.Duration); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 0 {
			return validCallback{}, apperr.BadRequest(op, "RecordingDuration must be a non-negative integer")
		}
		v.Duration = &n
	}
	return v, nil
}
