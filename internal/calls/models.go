package calls

import (
	"strings"
	"time"
)

// Event is a call status change reported by the provider. It is published
// downstream and not stored.
type Event struct {
	CallSID  string     `json:"CallSid"`
	From     string     `json:"From"`
	To       string     `json:"To"`
	Status   CallStatus `json:"CallStatus"`
	Duration int        `json:"CallDuration,omitempty"`

	// Raw carries every form field as received.
	Raw map[string]string `json:"-"`

	ReceivedAt time.Time `json:"received_at"`
}

type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusNoAnswer   CallStatus = "no_answer"
	CallStatusBusy       CallStatus = "busy"
	CallStatusCanceled   CallStatus = "canceled"
	CallStatusUnknown    CallStatus = "unknown"
)

// ParseCallStatus maps the provider's hyphenated status values.
func ParseCallStatus(s string) CallStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "queued", "initiated":
		return CallStatusQueued
	case "ringing":
		return CallStatusRinging
	case "in-progress", "answered":
		return CallStatusInProgress
	case "completed":
		return CallStatusCompleted
	case "failed":
		return CallStatusFailed
	case "no-answer":
		return CallStatusNoAnswer
	case "busy":
		return CallStatusBusy
	case "canceled":
		return CallStatusCanceled
	default:
		return CallStatusUnknown
	}
}

// Terminal reports whether no further status changes follow.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusNoAnswer, CallStatusBusy, CallStatusCanceled:
		return true
	default:
		return false
	}
}
