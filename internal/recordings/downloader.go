package recordings

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"wbor-twilio/internal/apperr"
)

// Downloader streams a recording's audio into w.
type Downloader interface {
	Download(ctx context.Context, src *url.URL, w io.Writer) (int64, error)
}

// HTTPDownloader fetches recordings from the provider's media URLs.
//
// Twilio serves the same recording as .mp3 or .wav depending on the suffix,
// so a bare RecordingUrl gets Format appended.
type HTTPDownloader struct {
	Client     *http.Client
	AccountSID string
	AuthToken  string
	Format     string
	Timeout    time.Duration
}

func (d *HTTPDownloader) Download(ctx context.Context, src *url.URL, w io.Writer) (int64, error) {
	const op = "recordings.download"

	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.mediaURL(src), nil)
	if err != nil {
		return 0, apperr.Internal(op, err)
	}
	if d.AccountSID != "" && isTwilioHost(src.Hostname()) {
		req.SetBasicAuth(d.AccountSID, d.AuthToken)
	}

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, apperr.Upstream(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return 0, apperr.UpstreamStatus(op, resp.StatusCode)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, apperr.Upstream(op, err)
	}
	if n == 0 {
		return 0, apperr.Upstream(op, io.ErrUnexpectedEOF)
	}
	return n, nil
}

func (d *HTTPDownloader) mediaURL(src *url.URL) string {
	u := *src
	if path.Ext(u.Path) == "" {
		u.Path += "." + d.extension()
	}
	return u.String()
}

func (d *HTTPDownloader) extension() string {
	if d.Format == "wav" {
		return "wav"
	}
	return "mp3"
}

// Credentials only go to the provider's own hosts.
func isTwilioHost(host string) bool {
	host = strings.ToLower(host)
	return host == "twilio.com" || strings.HasSuffix(host, ".twilio.com")
}
