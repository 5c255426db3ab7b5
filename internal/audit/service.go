package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records internal audit information.
// Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// LogUnauthorized records a failed shared-secret check.
func (s *Service) LogUnauthorized(ctx context.Context, ip, path string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeUnauthorized,
		IPAddress: ip,
		Path:      path,
		Message:   "shared secret mismatch",
	})
}

// LogSignatureRejected records a webhook whose provider signature did not verify.
func (s *Service) LogSignatureRejected(ctx context.Context, ip, path string) error {
	return s.Append(ctx, Event{
		Type:      EventTypeSignatureRejected,
		IPAddress: ip,
		Path:      path,
		Message:   "webhook signature mismatch",
	})
}

// LogBan records a ban list change.
func (s *Service) LogBan(ctx context.Context, ip, number string, banned bool) error {
	e := Event{Type: EventTypeBanAdded, IPAddress: ip, Subject: number, Message: "number banned"}
	if !banned {
		e.Type = EventTypeBanRemoved
		e.Message = "number unbanned"
	}
	return s.Append(ctx, e)
}
