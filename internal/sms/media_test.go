package sms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"wbor-twilio/internal/playout"

	"github.com/gin-gonic/gin"
)

func mediaServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/photo.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
		case "/anim.gif":
			w.Header().Set("Content-Type", "image/gif; charset=binary")
		case "/clip.mp4":
			w.Header().Set("Content-Type", "video/mp4")
		default:
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("media"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestMediaInspector_Classify(t *testing.T) {
	srv := mediaServer(t)
	m := MediaInspector{Client: srv.Client()}
	ctx := context.Background()

	cases := []struct {
		name  string
		paths []string
		want  playout.Media
	}{
		{"none", nil, playout.NoMedia},
		{"images", []string{"/photo.jpg", "/anim.gif"}, playout.SupportedMedia},
		{"video", []string{"/photo.jpg", "/clip.mp4"}, playout.UnsupportedMedia},
		{"missing", []string{"/gone.png"}, playout.UnsupportedMedia},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var urls []string
			for _, p := range tc.paths {
				urls = append(urls, srv.URL+p)
			}
			if got := m.Classify(ctx, urls); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestReceive_UnsupportedMediaReply(t *testing.T) {
	h := newHarness(t)
	srv := mediaServer(t)

	hs := Handlers{Service: h.svc, AutoReply: true, Automation: fixedAutomation(false), Media: MediaInspector{Client: srv.Client()}}
	r := gin.New()
	r.POST("/sms", hs.Receive)

	post := func(mediaPath string) string {
		form := url.Values{"MessageSid": {"SM1"}, "From": {"+12075550111"}, "To": {"+12075550100"}, "NumMedia": {"1"}, "MediaUrl0": {srv.URL + mediaPath}}
		req := httptest.NewRequest(http.MethodPost, "/sms", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		h.runner.Wait()
		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", w.Code)
		}
		return w.Body.String()
	}

	if body := post("/clip.mp4"); !strings.Contains(body, "unsupported media types") {
		t.Fatalf("expected unsupported media reply, got %s", body)
	}
	if body := post("/photo.jpg"); !strings.Contains(body, "support media at this time") {
		t.Fatalf("expected generic media reply, got %s", body)
	}

	evs := h.publisher.Events()
	if len(evs) != 2 || evs[0].Data["MediaUrl0"] != srv.URL+"/clip.mp4" {
		t.Fatalf("expected media urls on incoming events, got %+v", evs)
	}
}
