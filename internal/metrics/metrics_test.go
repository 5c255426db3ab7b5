package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fixedCount int64

func (f fixedCount) Count(context.Context) (int64, error) { return int64(f), nil }

type fixedTasks int

func (f fixedTasks) InFlight() int { return int(f) }

func TestCounters(t *testing.T) {
	m := New()
	m.SMSSent("ok")
	m.SMSSent("ok")
	m.Recording("download_failed")

	if got := testutil.ToFloat64(m.smsSent.WithLabelValues("ok")); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.recordings.WithLabelValues("download_failed")); got != 1 {
		t.Fatalf("expected 1, got %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.SMSSent("ok")
	m.Classified("other")
	m.Register(nil, nil)
}

func TestHandlerExposesCollector(t *testing.T) {
	m := New()
	m.Register(fixedCount(3), fixedTasks(1))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{"wbor_twilio_recordings_stored 3", "wbor_twilio_tasks_in_flight 1", "wbor_twilio_uptime_seconds"} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in scrape output", want)
		}
	}
}
