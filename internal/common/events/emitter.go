package events

import (
	"context"
	"log/slog"

	"xs2a/internal/common/metrics"
	"xs2a/internal/common/middleware"
)

// Emitter publishes events best effort. A failed publish is logged and
// counted but never fails the request that caused it. A nil Emitter, or one
// without a publisher, drops every event.
type Emitter struct {
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewEmitter creates an emitter. publisher may be nil when no broker is configured.
func NewEmitter(publisher Publisher, m *metrics.Metrics, logger *slog.Logger) *Emitter {
	return &Emitter{publisher: publisher, metrics: m, logger: logger}
}

// Emit builds and publishes an event.
func (e *Emitter) Emit(ctx context.Context, eventType, aggregateType, aggregateID string, data any) {
	if e == nil || e.publisher == nil {
		return
	}
	event, err := NewEvent(eventType, aggregateType, aggregateID, data)
	if err != nil {
		e.logger.Error("encoding event", "type", eventType, "error", err)
		return
	}
	event.WithCorrelation(middleware.GetRequestID(ctx))

	err = e.publisher.Publish(ctx, event)
	e.metrics.EventPublished(eventType, err)
	if err != nil {
		e.logger.Warn("publishing event",
			"type", eventType,
			"aggregate_id", aggregateID,
			"error", err,
		)
	}
}
