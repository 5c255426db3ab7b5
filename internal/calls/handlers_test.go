package calls

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"wbor-twilio/internal/events"
	"wbor-twilio/internal/tasks"

	"github.com/gin-gonic/gin"
)

func TestParseCallStatus(t *testing.T) {
	cases := map[string]CallStatus{
		"in-progress": CallStatusInProgress,
		"no-answer":   CallStatusNoAnswer,
		"Completed":   CallStatusCompleted,
		"bogus":       CallStatusUnknown,
	}
	for in, want := range cases {
		if got := ParseCallStatus(in); got != want {
			t.Fatalf("ParseCallStatus(%q) = %q, want %q", in, got, want)
		}
	}
	if !CallStatusBusy.Terminal() || CallStatusRinging.Terminal() {
		t.Fatalf("unexpected terminal states")
	}
}

func newRouter(pub *events.MemoryPublisher, runner *tasks.Runner) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := Handlers{Events: events.NewEmitter(pub, runner, time.Second)}
	r := gin.New()
	r.POST("/call-events", h.CallEvents)
	r.POST("/voice-intelligence", h.VoiceIntelligence)
	return r
}

func TestCallEvents_Publishes(t *testing.T) {
	pub := &events.MemoryPublisher{}
	runner := tasks.NewRunner(1, nil)
	r := newRouter(pub, runner)

	form := url.Values{"CallSid": {"CA1"}, "CallStatus": {"no-answer"}}
	req := httptest.NewRequest(http.MethodPost, "/call-events", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	runner.Wait()

	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	evs := pub.Events()
	if len(evs) != 1 || evs[0].Type != events.TypeCallEvents || evs[0].Data["status"] != "no_answer" || evs[0].Data["CallSid"] != "CA1" {
		t.Fatalf("unexpected events %+v", evs)
	}
}

func TestVoiceIntelligence(t *testing.T) {
	pub := &events.MemoryPublisher{}
	runner := tasks.NewRunner(1, nil)
	r := newRouter(pub, runner)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/voice-intelligence", strings.NewReader(`{"transcript_sid":"GT1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	runner.Wait()
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if evs := pub.Events(); len(evs) != 1 || evs[0].Data["transcript_sid"] != "GT1" {
		t.Fatalf("unexpected events %+v", evs)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/voice-intelligence", strings.NewReader(`nope`)))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
