package recordings

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"wbor-twilio/internal/database"
	"wbor-twilio/internal/events"
	"wbor-twilio/internal/tasks"
)

const startTime = "Tue, 14 Oct 2025 17:31:10 +0000"

var audio = []byte("ID3\x04\x00fake-mp3-frames")

type harness struct {
	pipeline *Pipeline
	repo     Repository
	files    *FileStore
	runner   *tasks.Runner
	events   *events.MemoryPublisher
	logs     *bytes.Buffer
}

func openRepo(t *testing.T) *SQLRepo {
	t.Helper()
	db, err := database.Open(context.Background(), "sqlite", "file:"+filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLRepo(db)
}

func newHarness(t *testing.T, repo Repository) *harness {
	t.Helper()
	files, err := NewFileStore(filepath.Join(t.TempDir(), "recordings"), "mp3")
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	runner := tasks.NewRunner(4, log)
	pub := &events.MemoryPublisher{}

	p, err := NewPipeline(Deps{
		Repo:       repo,
		Files:      files,
		Downloader: &HTTPDownloader{AccountSID: "AC1", AuthToken: "tok", Timeout: 2 * time.Second},
		Runner:     runner,
		Publisher:  pub,
		Logger:     log,
	})
	if err != nil {
		t.Fatalf("pipeline: %v", err)
	}
	return &harness{pipeline: p, repo: repo, files: files, runner: runner, events: pub, logs: &buf}
}

// mediaServer serves audio and counts requests.
func mediaServer(t *testing.T, hits *atomic.Int32, delay time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if !strings.HasSuffix(r.URL.Path, ".mp3") {
			http.NotFound(w, r)
			return
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write(audio)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func callback(callID, recordingURL string) Callback {
	return Callback{
		CallSID:      callID,
		RecordingSID: "RE" + callID,
		RecordingURL: recordingURL,
		StartTime:    startTime,
		Duration:     "42",
	}
}

func countMsg(buf *bytes.Buffer, msg string) int {
	n := 0
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		if json.Unmarshal([]byte(line), &m) == nil && m["msg"] == msg {
			n++
		}
	}
	return n
}
