package sms

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"wbor-twilio/internal/playout"
	"wbor-twilio/pkg/logger"
)

// MediaChecker classifies the attachments of an inbound text.
type MediaChecker interface {
	Classify(ctx context.Context, urls []string) playout.Media
}

// supportedMediaTypes are the attachment types downstream displays can show.
var supportedMediaTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// MediaInspector fetches each attachment and checks its Content-Type. An
// unreachable attachment counts as unsupported.
type MediaInspector struct {
	Client *http.Client
	// Timeout bounds the whole inspection. Default 10s.
	Timeout time.Duration
}

func (m MediaInspector) Classify(ctx context.Context, urls []string) playout.Media {
	if len(urls) == 0 {
		return playout.NoMedia
	}
	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := m.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := logger.From(ctx)
	for _, u := range urls {
		ct, err := contentType(ctx, client, u)
		if err != nil {
			log.Warn("media fetch failed", "url", u, "err", err)
			return playout.UnsupportedMedia
		}
		if !supportedMediaTypes[ct] {
			log.Info("unsupported media type", "url", u, "content_type", ct)
			return playout.UnsupportedMedia
		}
	}
	return playout.SupportedMedia
}

func contentType(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	// An unparseable type is reported as empty, which is unsupported.
	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return ct, nil
}
