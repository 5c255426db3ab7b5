package playout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"wbor-twilio/internal/apperr"
	"wbor-twilio/pkg/logger"
)

// TrackMetadata is fetched per query and never cached.
type TrackMetadata struct {
	Title     string    `json:"title"`
	Artist    string    `json:"artist"`
	Show      string    `json:"show,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

// FormatReply renders the listener-facing reply.
func FormatReply(t TrackMetadata) string {
	return fmt.Sprintf("%s by %s", t.Title, t.Artist)
}

// Resolver queries the station playout system.
type Resolver struct {
	url           string
	automationURL string
	timeout       time.Duration
	httpClient    *http.Client
	log           *slog.Logger
	clock         func() time.Time
}

type Options struct {
	URL           string
	AutomationURL string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

func NewResolver(opts Options) *Resolver {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Resolver{
		url:           opts.URL,
		automationURL: opts.AutomationURL,
		timeout:       opts.Timeout,
		httpClient:    hc,
		log:           logger.OrDefault(opts.Logger),
		clock:         time.Now,
	}
}

type nowPlaying struct {
	Title  string `json:"title"`
	Song   string `json:"song"`
	Artist string `json:"artist"`
	Show   string `json:"show"`
}

// ResolveCurrentTrack issues one bounded GET against the playout API.
// It does not log; callers decide how a failure is reported.
func (r *Resolver) ResolveCurrentTrack(ctx context.Context) (TrackMetadata, error) {
	const op = "playout.resolve"

	var np nowPlaying
	if err := r.getJSON(ctx, op, r.url, &np); err != nil {
		return TrackMetadata{}, err
	}

	title := strings.TrimSpace(np.Title)
	if title == "" {
		title = strings.TrimSpace(np.Song)
	}
	artist := strings.TrimSpace(np.Artist)
	if title == "" || artist == "" {
		return TrackMetadata{}, apperr.Upstream(op, fmt.Errorf("response missing title or artist"))
	}
	return TrackMetadata{
		Title:     title,
		Artist:    artist,
		Show:      strings.TrimSpace(np.Show),
		FetchedAt: r.clock().UTC(),
	}, nil
}

type playlists struct {
	Items []struct {
		Automation *int `json:"automation"`
	} `json:"items"`
}

// AutomationActive reports whether the station is running on automation
// (no live DJ). Any failure counts as "not automated".
func (r *Resolver) AutomationActive(ctx context.Context) bool {
	if r.automationURL == "" {
		return false
	}
	var pl playlists
	if err := r.getJSON(ctx, "playout.automation", r.automationURL, &pl); err != nil {
		r.log.WarnContext(ctx, "automation status unavailable", "err", err)
		return false
	}
	if len(pl.Items) == 0 || pl.Items[0].Automation == nil {
		r.log.WarnContext(ctx, "automation status not found in response")
		return false
	}
	return *pl.Items[0].Automation == 1
}

func (r *Resolver) getJSON(ctx context.Context, op, url string, out any) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return apperr.Internal(op, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return apperr.Upstream(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return apperr.UpstreamStatus(op, resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return apperr.Upstream(op, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}
