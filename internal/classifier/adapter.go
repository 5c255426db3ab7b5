package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"wbor-twilio/internal/apperr"
	"wbor-twilio/internal/metrics"
	"wbor-twilio/internal/sms"
	"wbor-twilio/pkg/logger"
)

const systemPrompt = `You classify text messages sent to a college radio station.
Answer with a JSON object only: {"intent": "<label>", "confidence": <number between 0 and 1>}.
Use label "current_song" when the sender asks what song, track or artist is playing right now.
Use label "other" for anything else, including song requests and shout-outs.`

// Completer is the model endpoint the adapter talks to.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Adapter turns inbound messages into classification results. One attempt per
// message, bounded by timeout.
type Adapter struct {
	model   Completer
	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics
	clock   func() time.Time
}

func NewAdapter(model Completer, timeout time.Duration, m *metrics.Metrics, l *slog.Logger) *Adapter {
	return &Adapter{model: model, timeout: timeout, metrics: m, log: logger.OrDefault(l), clock: time.Now}
}

type modelAnswer struct {
	Intent     string   `json:"intent"`
	Confidence *float64 `json:"confidence"`
}

// Classify never returns an error: failures are a Result with Failed set.
func (a *Adapter) Classify(ctx context.Context, msg sms.InboundMessage) Result {
	start := a.clock()
	res := Result{MessageID: msg.ID}

	cctx := ctx
	if a.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	intent, confidence, err := a.classify(cctx, msg.Body)
	res.Latency = a.clock().Sub(start)

	if err != nil {
		res.Intent = IntentUnknown
		res.Failed = true
		a.metrics.Classified("failed")
		a.log.WarnContext(ctx, "classification failed",
			"message_id", msg.ID,
			"error_kind", apperr.KindOf(err).String(),
			"err", err,
			"latency_ms", res.Latency.Milliseconds(),
		)
		return res
	}

	res.Intent = intent
	res.Confidence = confidence
	a.metrics.Classified(intent.String())
	a.log.InfoContext(ctx, "classification succeeded",
		"message_id", msg.ID,
		"intent", intent.String(),
		"confidence", confidence,
		"latency_ms", res.Latency.Milliseconds(),
	)
	return res
}

func (a *Adapter) classify(ctx context.Context, body string) (Intent, float64, error) {
	const op = "classifier.classify"
	if a.model == nil {
		return IntentUnknown, 0, apperr.Internal(op, fmt.Errorf("model not configured"))
	}

	content, err := a.model.Complete(ctx, systemPrompt, body)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			err = apperr.Upstream(op, err)
		}
		return IntentUnknown, 0, err
	}

	var ans modelAnswer
	if err := json.Unmarshal([]byte(stripFences(content)), &ans); err != nil {
		return IntentUnknown, 0, apperr.Upstream(op, fmt.Errorf("malformed model output: %w", err))
	}
	intent, ok := ParseIntent(strings.ToLower(strings.TrimSpace(ans.Intent)))
	if !ok {
		return IntentUnknown, 0, apperr.Upstream(op, fmt.Errorf("unknown intent label %q", ans.Intent))
	}
	if ans.Confidence == nil || *ans.Confidence < 0 || *ans.Confidence > 1 {
		return IntentUnknown, 0, apperr.Upstream(op, fmt.Errorf("confidence missing or out of range"))
	}
	return intent, *ans.Confidence, nil
}

// stripFences removes a surrounding ```json ... ``` block some models add.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
