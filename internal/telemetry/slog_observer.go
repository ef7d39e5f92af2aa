package telemetry

import (
	"context"
	"time"

	"github.com/nexus-assistant/core/internal/observability"
)

// SlogObserver implements Observer on top of the structured logger: each
// operation's start/end is logged with duration, and anomalies are logged at
// warn level.
type SlogObserver struct {
	logger *observability.Logger
	ctx    context.Context
}

// NewSlogObserver builds an Observer backed by logger. ctx is used for every
// log call; pass context.Background() if no request-scoped context applies.
func NewSlogObserver(logger *observability.Logger, ctx context.Context) *SlogObserver {
	if ctx == nil {
		ctx = context.Background()
	}
	return &SlogObserver{logger: logger, ctx: ctx}
}

func (o *SlogObserver) OnOperationStart(op string, attrs map[string]any) OperationHandle {
	o.logger.Debug(o.ctx, "operation start", "op", op, "attrs", attrs)
	return OperationHandle{Op: op, StartedAt: time.Now()}
}

func (o *SlogObserver) OnOperationEnd(h OperationHandle, err error) {
	duration := time.Since(h.StartedAt)
	if err != nil {
		o.logger.Error(o.ctx, "operation failed", "op", h.Op, "duration_ms", duration.Milliseconds(), "error", err)
		return
	}
	o.logger.Info(o.ctx, "operation complete", "op", h.Op, "duration_ms", duration.Milliseconds())
}

func (o *SlogObserver) OnAnomaly(kind string, attrs map[string]any) {
	o.logger.Warn(o.ctx, "anomaly", "kind", kind, "attrs", attrs)
}
