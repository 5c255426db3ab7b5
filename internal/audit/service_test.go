package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestService_AppendRequiresType(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	if err := svc.Append(context.Background(), Event{IPAddress: "1.2.3.4"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_LogUnauthorizedCapturesIP(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogUnauthorized(context.Background(), "1.2.3.4", "/send"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].IPAddress != "1.2.3.4" || evs[0].Path != "/send" {
		t.Fatalf("unexpected event %+v", evs[0])
	}
	if evs[0].Type != EventTypeUnauthorized {
		t.Fatalf("expected unauthorized_access, got %q", evs[0].Type)
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp to be filled")
	}
}

func TestService_LogBanTypes(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_ = svc.LogBan(ctx, "ip", "+12075550111", true)
	_ = svc.LogBan(ctx, "ip", "+12075550111", false)

	evs := repo.Events()
	if len(evs) != 2 || evs[0].Type != EventTypeBanAdded || evs[1].Type != EventTypeBanRemoved {
		t.Fatalf("unexpected events %+v", evs)
	}
}

func TestLogRepo_WritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	svc := NewService(NewLogRepo(slog.New(slog.NewJSONHandler(&buf, nil))))

	if err := svc.LogUnauthorized(context.Background(), "5.6.7.8", "/ban"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["msg"] != "audit event" || line["ip"] != "5.6.7.8" || line["type"] != "unauthorized_access" {
		t.Fatalf("unexpected log line %v", line)
	}
}
