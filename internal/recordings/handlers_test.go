package recordings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"wbor-twilio/internal/auth"

	"github.com/gin-gonic/gin"
)

func newRouter(t *testing.T, h *harness) (*gin.Engine, *auth.LinkManager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	links, err := auth.NewLinkManager("link-secret", 15*time.Minute)
	if err != nil {
		t.Fatalf("link manager: %v", err)
	}
	hs := Handlers{Pipeline: h.pipeline, Repo: h.repo, Links: links, PublicBaseURL: "https://sms.example.org/"}

	r := gin.New()
	r.POST("/voice/recording", hs.Callback)
	r.GET("/recordings", hs.List)
	r.GET("/recordings/:call_id/link", hs.Link)
	r.GET("/recordings/:call_id/audio", hs.Audio)
	return r, links
}

func postCallback(r http.Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/voice/recording", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestCallbackThenDownloadLink(t *testing.T) {
	h := newHarness(t, NewMemoryRepo())
	r, _ := newRouter(t, h)
	var hits atomic.Int32
	srv := mediaServer(t, &hits, 0)

	w := postCallback(r, url.Values{
		"CallSid":            {"CA700"},
		"RecordingSid":       {"RE700"},
		"RecordingUrl":       {srv.URL + "/Recordings/RE700"},
		"RecordingStatus":    {"completed"},
		"RecordingDuration":  {"12"},
		"RecordingStartTime": {startTime},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("callback status %d: %s", w.Code, w.Body.String())
	}
	var ack Ack
	_ = json.Unmarshal(w.Body.Bytes(), &ack)
	if ack.CallID != "CA700" || ack.State != StateAcknowledged {
		t.Fatalf("unexpected ack %+v", ack)
	}
	h.runner.Wait()

	w = get(r, "/recordings/CA700/link")
	if w.Code != http.StatusOK {
		t.Fatalf("link status %d: %s", w.Code, w.Body.String())
	}
	var link struct {
		URL string `json:"url"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &link)
	if !strings.HasPrefix(link.URL, "https://sms.example.org/recordings/CA700/audio?token=") {
		t.Fatalf("unexpected link %q", link.URL)
	}

	u, _ := url.Parse(link.URL)
	w = get(r, u.RequestURI())
	if w.Code != http.StatusOK {
		t.Fatalf("audio status %d: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != string(audio) {
		t.Fatalf("unexpected audio body")
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "CA700.mp3") {
		t.Fatalf("missing attachment header: %q", w.Header().Get("Content-Disposition"))
	}

	w = get(r, "/recordings")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"call_id":"CA700"`) {
		t.Fatalf("list: %d %s", w.Code, w.Body.String())
	}
}

func TestCallback_InvalidFormIsRejected(t *testing.T) {
	h := newHarness(t, NewMemoryRepo())
	r, _ := newRouter(t, h)

	w := postCallback(r, url.Values{"CallSid": {"CA1"}, "RecordingStartTime": {startTime}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestCallback_IgnoresIncompleteRecording(t *testing.T) {
	h := newHarness(t, NewMemoryRepo())
	r, _ := newRouter(t, h)

	w := postCallback(r, url.Values{"CallSid": {"CA1"}, "RecordingStatus": {"absent"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	h.runner.Wait()
	if ids, _ := h.files.List(); len(ids) != 0 {
		t.Fatalf("nothing should be stored")
	}
}

func TestCallback_IncompleteRecordingStillNeedsCallSid(t *testing.T) {
	h := newHarness(t, NewMemoryRepo())
	r, _ := newRouter(t, h)

	for name, form := range map[string]url.Values{
		"missing":   {"RecordingStatus": {"absent"}},
		"malformed": {"CallSid": {"../../etc"}, "RecordingStatus": {"failed"}},
	} {
		t.Run(name, func(t *testing.T) {
			w := postCallback(r, form)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
			}
			if !strings.Contains(w.Body.String(), "CallSid") {
				t.Fatalf("expected CallSid error, got %s", w.Body.String())
			}
		})
	}
}

func TestAudio_RejectsBadTokens(t *testing.T) {
	h := newHarness(t, NewMemoryRepo())
	r, links := newRouter(t, h)

	if w := get(r, "/recordings/CA1/audio?token=garbage"); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for garbage token, got %d", w.Code)
	}

	other, _, _ := links.Issue(time.Now(), "CA2")
	if w := get(r, "/recordings/CA1/audio?token="+url.QueryEscape(other)); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for another call's token, got %d", w.Code)
	}

	valid, _, _ := links.Issue(time.Now(), "CA1")
	if w := get(r, "/recordings/CA1/audio?token="+url.QueryEscape(valid)); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown call, got %d", w.Code)
	}
}

func TestLink_UnknownCall(t *testing.T) {
	h := newHarness(t, NewMemoryRepo())
	r, _ := newRouter(t, h)

	if w := get(r, "/recordings/CA404/link"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := get(r, "/recordings/bad.id/link"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
