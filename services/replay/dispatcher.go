// Package replay forwards replay requests to an outbound queue after the
// orchestrator has recorded replay intent.
package replay

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/internal/observability"
	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/services"
	"github.com/upb/case-orchestrator/services/orchestrator"
)

// Publish outcomes recorded in metrics
const (
	PublishSent    = "sent"
	PublishFailed  = "failed"
	PublishSkipped = "skipped"
)

// Replayer records replay intent
type Replayer interface {
	ReplayFailedEvent(ctx context.Context, messageID string) (orchestrator.ReplayResult, error)
}

// Publisher delivers a replayed callback downstream
type Publisher interface {
	Publish(ctx context.Context, callback models.WebhookCallback) error
}

// Dispatcher records replay intent and optionally publishes the callback
type Dispatcher struct {
	replayer  Replayer
	publisher Publisher
	metrics   observability.Metrics
	logger    *zap.Logger
}

// NewDispatcher creates a Dispatcher. A nil publisher keeps replay as
// intent only.
func NewDispatcher(replayer Replayer, publisher Publisher, metrics observability.Metrics, logger *zap.Logger) *Dispatcher {
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	return &Dispatcher{
		replayer:  replayer,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Replay records intent and then publishes. Intent stays recorded when
// publishing fails; the returned error then wraps ErrPublishFailed.
func (d *Dispatcher) Replay(ctx context.Context, messageID string) (orchestrator.ReplayResult, error) {
	result, err := d.replayer.ReplayFailedEvent(ctx, messageID)
	if err != nil {
		return result, err
	}

	if d.publisher == nil || result.Callback == nil {
		d.metrics.RecordReplayPublish(PublishSkipped)
		return result, nil
	}

	if err := d.publisher.Publish(ctx, *result.Callback); err != nil {
		d.metrics.RecordReplayPublish(PublishFailed)
		d.logger.Error("replay publish failed",
			zap.String("message_id", messageID),
			zap.String("monitoring_event_id", result.MonitoringEventID),
			zap.Error(err))
		return result, fmt.Errorf("%w: %s: %w", services.ErrPublishFailed, messageID, err)
	}

	d.metrics.RecordReplayPublish(PublishSent)
	return result, nil
}

// Publishing reports whether an outbound publisher is configured
func (d *Dispatcher) Publishing() bool {
	return d.publisher != nil
}
