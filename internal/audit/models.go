package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - ip capture is best-effort; do not block request handling on audit failures.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`

	// IPAddress is the resolved client IP (gin ClientIP, honoring trusted proxies).
	IPAddress string `json:"ip_address,omitempty"`

	// Path is the route the event was raised on.
	Path string `json:"path,omitempty"`

	// Subject identifies what was acted on (a phone number, a call ID).
	Subject string `json:"subject,omitempty"`

	// Message is a short human-readable description for station ops.
	Message string `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventTypeUnauthorized      EventType = "unauthorized_access"
	EventTypeSignatureRejected EventType = "signature_rejected"
	EventTypeBanAdded          EventType = "ban_added"
	EventTypeBanRemoved        EventType = "ban_removed"
)
