package recordings

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRepositories(t *testing.T) {
	for name, newRepo := range map[string]func(t *testing.T) Repository{
		"sql":    func(t *testing.T) Repository { return openRepo(t) },
		"memory": func(t *testing.T) Repository { return NewMemoryRepo() },
	} {
		t.Run(name, func(t *testing.T) {
			repo := newRepo(t)
			ctx := context.Background()
			base := time.Date(2025, 10, 14, 12, 0, 0, 0, time.UTC)
			dur := 30

			older := CallRecording{CallID: "CA1", RecordedAt: base, SourceURL: "https://a", StoragePath: "/r/CA1.mp3", DurationSeconds: &dur, SizeBytes: 10, CreatedAt: base}
			newer := CallRecording{CallID: "CA2", RecordingSID: "RE2", RecordedAt: base.Add(time.Hour), SourceURL: "https://b", StoragePath: "/r/CA2.mp3", SizeBytes: 20, CreatedAt: base}

			for _, rec := range []CallRecording{older, newer} {
				ok, err := repo.Insert(ctx, rec)
				if err != nil || !ok {
					t.Fatalf("insert %s: ok=%v err=%v", rec.CallID, ok, err)
				}
			}
			dupe := older
			dupe.StoragePath = "/elsewhere.mp3"
			ok, err := repo.Insert(ctx, dupe)
			if err != nil || ok {
				t.Fatalf("duplicate insert: ok=%v err=%v", ok, err)
			}

			got, err := repo.Get(ctx, "CA1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.StoragePath != "/r/CA1.mp3" || got.DurationSeconds == nil || *got.DurationSeconds != 30 || !got.RecordedAt.Equal(base) {
				t.Fatalf("unexpected row %+v", got)
			}
			got2, _ := repo.Get(ctx, "CA2")
			if got2.DurationSeconds != nil || got2.RecordingSID != "RE2" {
				t.Fatalf("unexpected row %+v", got2)
			}

			if _, err := repo.Get(ctx, "CA9"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if ok, _ := repo.Exists(ctx, "CA2"); !ok {
				t.Fatalf("CA2 should exist")
			}

			list, err := repo.List(ctx, 0)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(list) != 2 || list[0].CallID != "CA2" {
				t.Fatalf("expected newest first, got %+v", list)
			}
			if one, _ := repo.List(ctx, 1); len(one) != 1 {
				t.Fatalf("limit not applied")
			}
			if n, _ := repo.Count(ctx); n != 2 {
				t.Fatalf("count = %d", n)
			}

			if _, err := repo.Insert(ctx, CallRecording{CallID: "CA3", RecordedAt: base, CreatedAt: base}); err == nil {
				t.Fatalf("empty storage path must be rejected")
			}
		})
	}
}
