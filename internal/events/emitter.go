package events

import (
	"context"
	"time"

	"wbor-twilio/internal/tasks"
	"wbor-twilio/pkg/logger"
)

// Emitter publishes in the background on its own task runner, so a slow or
// hung broker only ever occupies event slots. A nil *Emitter drops events.
type Emitter struct {
	pub     Publisher
	runner  *tasks.Runner
	timeout time.Duration
}

func NewEmitter(pub Publisher, runner *tasks.Runner, timeout time.Duration) *Emitter {
	if pub == nil {
		pub = Nop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Emitter{pub: pub, runner: runner, timeout: timeout}
}

// Emit schedules one publish and returns immediately. Failures are logged.
func (e *Emitter) Emit(ctx context.Context, eventType string, data map[string]any) {
	if e == nil || e.runner == nil {
		return
	}
	err := e.runner.Go(ctx, "publish "+eventType, e.timeout, func(ctx context.Context) error {
		if err := e.pub.Publish(ctx, eventType, data); err != nil {
			logger.From(ctx).Warn("event publish failed", "type", eventType, "err", err)
			return err
		}
		return nil
	})
	if err != nil {
		logger.From(ctx).Warn("event publish skipped", "type", eventType, "err", err)
	}
}
