package audit

import (
	"context"
	"log/slog"
	"sync"

	"wbor-twilio/pkg/logger"
)

// MemoryRepo is a simple in-memory append-only repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// LogRepo writes each event as a structured log line. The gateway keeps no
// audit table; the log pipeline is the durable store.
type LogRepo struct {
	log *slog.Logger
}

func NewLogRepo(l *slog.Logger) *LogRepo {
	return &LogRepo{log: logger.OrDefault(l)}
}

func (r *LogRepo) Append(ctx context.Context, e Event) error {
	r.log.LogAttrs(ctx, slog.LevelInfo, "audit event",
		slog.String("audit_id", e.ID),
		slog.String("type", string(e.Type)),
		slog.String("ip", e.IPAddress),
		slog.String("path", e.Path),
		slog.String("subject", e.Subject),
		slog.String("message", e.Message),
		slog.Time("created_at", e.CreatedAt),
	)
	return nil
}
