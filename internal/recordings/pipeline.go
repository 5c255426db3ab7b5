package recordings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"wbor-twilio/internal/apperr"
	"wbor-twilio/internal/events"
	"wbor-twilio/internal/metrics"
	"wbor-twilio/internal/tasks"
	"wbor-twilio/pkg/logger"
)

// Pipeline acknowledges recording callbacks and archives the audio in the
// background: download, store, then log exactly one call_recordings row.
type Pipeline struct {
	repo    Repository
	files   *FileStore
	dl      Downloader
	claims  Claimer
	runner  *tasks.Runner
	events  *events.Emitter
	metrics *metrics.Metrics
	log     *slog.Logger
	clock   func() time.Time

	timeout time.Duration
}

type Deps struct {
	Repo       Repository
	Files      *FileStore
	Downloader Downloader
	Claims     Claimer
	Runner     *tasks.Runner
	Publisher  events.Publisher
	Events     *events.Emitter // built from Publisher and Runner when nil
	Metrics    *metrics.Metrics
	Logger     *slog.Logger

	// Timeout bounds one background archive, download included.
	Timeout time.Duration
}

func NewPipeline(d Deps) (*Pipeline, error) {
	switch {
	case d.Repo == nil:
		return nil, errors.New("recordings: repository is required")
	case d.Files == nil:
		return nil, errors.New("recordings: file store is required")
	case d.Downloader == nil:
		return nil, errors.New("recordings: downloader is required")
	case d.Runner == nil:
		return nil, errors.New("recordings: task runner is required")
	}
	if d.Claims == nil {
		d.Claims = NewMemoryClaimer()
	}
	if d.Events == nil {
		d.Events = events.NewEmitter(d.Publisher, d.Runner, 10*time.Second)
	}
	if d.Timeout <= 0 {
		d.Timeout = 3 * time.Minute
	}
	return &Pipeline{
		repo:    d.Repo,
		files:   d.Files,
		dl:      d.Downloader,
		claims:  d.Claims,
		runner:  d.Runner,
		events:  d.Events,
		metrics: d.Metrics,
		log:     logger.OrDefault(d.Logger),
		clock:   time.Now,
		timeout: d.Timeout,
	}, nil
}

// HandleVoiceCallback validates cb and schedules the archive. It returns as
// soon as the work is scheduled; download failures are never reported back.
//
// A callback for a call that is already logged, or already being archived,
// is acknowledged as a duplicate and does nothing.
func (p *Pipeline) HandleVoiceCallback(ctx context.Context, cb Callback) (Ack, error) {
	const op = "recordings.callback"

	v, err := cb.validate()
	if err != nil {
		p.metrics.Recording(string(StateRejected))
		p.log.Warn("recording callback rejected", "call_id", cb.CallSID, "err", err)
		return Ack{CallID: cb.CallSID, State: StateRejected}, err
	}

	exists, err := p.repo.Exists(ctx, v.CallID)
	if err != nil {
		return Ack{}, apperr.Internal(op, err)
	}
	if exists {
		p.metrics.Recording("duplicate")
		p.log.Info("recording already logged", "call_id", v.CallID)
		return Ack{CallID: v.CallID, State: StateAcknowledged, Duplicate: true}, nil
	}

	owner, ok, err := p.claims.Claim(ctx, v.CallID)
	switch {
	case err != nil:
		// The unique call_id and the fixed file path still keep a second
		// worker from producing a second row or file.
		p.log.Warn("recording claim unavailable", "call_id", v.CallID, "err", err)
	case !ok:
		p.metrics.Recording("duplicate")
		p.log.Info("recording already in progress", "call_id", v.CallID)
		return Ack{CallID: v.CallID, State: StateAcknowledged, Duplicate: true}, nil
	}

	err = p.runner.Go(ctx, "recording "+v.CallID, p.timeout, func(ctx context.Context) error {
		return p.archive(ctx, v, owner)
	})
	if err != nil {
		p.release(ctx, v.CallID, owner)
		return Ack{}, apperr.Internal(op, err)
	}

	p.log.Info("recording callback acknowledged", "call_id", v.CallID, "recording_sid", v.RecordingSID)
	return Ack{CallID: v.CallID, State: StateAcknowledged}, nil
}

func (p *Pipeline) archive(ctx context.Context, v validCallback, owner string) error {
	defer p.release(ctx, v.CallID, owner)
	log := p.log.With("call_id", v.CallID)

	path, size, err := p.files.Save(v.CallID, func(w io.Writer) (int64, error) {
		return p.dl.Download(ctx, v.SourceURL, w)
	})
	if err != nil {
		switch apperr.KindOf(err) {
		case apperr.KindUpstreamTimeout, apperr.KindUpstreamFailure:
			p.metrics.Recording("download_failed")
			log.Error("recording download failed", "error_kind", apperr.KindOf(err).String(), "err", err)
		default:
			p.metrics.Recording("store_failed")
			log.Error("recording storage failed", "err", err)
		}
		return err
	}

	now := p.clock().UTC()
	rec := CallRecording{
		CallID:          v.CallID,
		RecordingSID:    v.RecordingSID,
		RecordedAt:      v.RecordedAt,
		SourceURL:       v.SourceURL.String(),
		StoragePath:     path,
		DurationSeconds: v.Duration,
		SizeBytes:       size,
		CreatedAt:       now,
	}
	inserted, err := p.repo.Insert(ctx, rec)
	if err != nil {
		ierr := apperr.Inconsistency("recordings.archive", "file stored without a call log row", err)
		p.metrics.Recording("orphaned")
		log.Error("orphaned recording file", "path", path, "error_kind", apperr.KindOf(ierr).String(), "err", ierr)
		return ierr
	}
	if !inserted {
		p.metrics.Recording("duplicate")
		log.Info("recording already logged", "path", path)
		return nil
	}

	p.metrics.Recording(string(StateLogged))
	log.Info("recording stored", "path", path, "size_bytes", size)

	data := map[string]any{
		"call_id":      rec.CallID,
		"storage_path": rec.StoragePath,
		"source_url":   rec.SourceURL,
		"recorded_at":  rec.RecordedAt.Format(time.RFC3339),
		"size_bytes":   rec.SizeBytes,
	}
	if rec.RecordingSID != "" {
		data["recording_sid"] = rec.RecordingSID
	}
	if rec.DurationSeconds != nil {
		data["duration_seconds"] = *rec.DurationSeconds
	}
	p.events.Emit(ctx, events.TypeRecording, data)
	return nil
}

func (p *Pipeline) release(ctx context.Context, callID, owner string) {
	if owner == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.claims.Release(ctx, callID, owner); err != nil {
		p.log.Warn("recording claim release failed", "call_id", callID, "err", err)
	}
}
