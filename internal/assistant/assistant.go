package assistant

import (
	"context"
	"log/slog"

	"wbor-twilio/internal/apperr"
	"wbor-twilio/internal/classifier"
	"wbor-twilio/internal/metrics"
	"wbor-twilio/internal/playout"
	"wbor-twilio/internal/sms"
	"wbor-twilio/pkg/logger"
)

type Classifier interface {
	Classify(ctx context.Context, msg sms.InboundMessage) classifier.Result
}

type TrackResolver interface {
	ResolveCurrentTrack(ctx context.Context) (playout.TrackMetadata, error)
}

type Replier interface {
	SendMessage(ctx context.Context, req sms.OutboundSmsRequest, sourceIP string) (sms.SendResult, error)
}

// Assistant answers "what's playing?" texts. All failures are silent towards
// the listener: they are logged and no SMS is sent.
type Assistant struct {
	classifier Classifier
	resolver   TrackResolver
	replier    Replier
	token      string
	metrics    *metrics.Metrics
	log        *slog.Logger
}

// New builds an Assistant. token is the shared secret the router expects
// on outbound sends.
func New(c Classifier, r TrackResolver, replier Replier, token string, m *metrics.Metrics, l *slog.Logger) *Assistant {
	return &Assistant{classifier: c, resolver: r, replier: replier, token: token, metrics: m, log: logger.OrDefault(l)}
}

// HandleInbound implements sms.InboundHandler.
func (a *Assistant) HandleInbound(ctx context.Context, msg sms.InboundMessage) {
	log := a.log.With("message_id", msg.ID)

	res := a.classifier.Classify(ctx, msg)
	if res.Failed {
		return
	}

	switch res.Intent {
	case classifier.IntentCurrentSong:
		a.replyCurrentTrack(ctx, log, msg)
	case classifier.IntentOther:
		log.DebugContext(ctx, "no automated reply for intent", "intent", res.Intent.String())
	case classifier.IntentUnknown:
		log.DebugContext(ctx, "unknown intent without failure flag")
	}
}

func (a *Assistant) replyCurrentTrack(ctx context.Context, log *slog.Logger, msg sms.InboundMessage) {
	track, err := a.resolver.ResolveCurrentTrack(ctx)
	if err != nil {
		a.metrics.TrackLookup("failed")
		log.WarnContext(ctx, "current track lookup failed",
			"error_kind", apperr.KindOf(err).String(),
			"err", err,
		)
		return
	}
	a.metrics.TrackLookup("ok")

	_, err = a.replier.SendMessage(ctx, sms.OutboundSmsRequest{
		Password:  a.token,
		Recipient: msg.From,
		Body:      playout.FormatReply(track),
	}, "internal")
	if err != nil {
		log.ErrorContext(ctx, "current track reply failed", "err", err)
		return
	}
	log.InfoContext(ctx, "current track reply sent", "title", track.Title, "artist", track.Artist)
}
