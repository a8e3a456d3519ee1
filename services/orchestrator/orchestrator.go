// Package orchestrator coordinates case event ingestion, rule evaluation,
// webhook callback bookkeeping and replay intent recording.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/internal/observability"
	"github.com/upb/case-orchestrator/internal/rules"
	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/repositories"
	"github.com/upb/case-orchestrator/services"
	"github.com/upb/case-orchestrator/services/reconciliation"
)

// MonitoringSink receives a copy of every monitoring entry after it is
// appended. Implementations must not block.
type MonitoringSink interface {
	LogEvent(entry models.MonitoringEntry) error
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator overrides identifier generation
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// WithMetrics attaches a metrics collector
func WithMetrics(m observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithMonitoringSink mirrors monitoring entries to sink
func WithMonitoringSink(sink MonitoringSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// Orchestrator composes the event store, rule engine, webhook ledger and
// monitoring log. Mutating operations hold mu exclusively so readers never
// see half of a multi-step update.
type Orchestrator struct {
	mu         sync.RWMutex
	events     repositories.EventStore
	ledger     repositories.WebhookLedger
	monitoring repositories.MonitoringLog
	rules      *rules.Engine
	reconciler *reconciliation.Service
	sink       MonitoringSink
	metrics    observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	newID      func() string
}

// New creates an Orchestrator over the given stores
func New(
	events repositories.EventStore,
	ledger repositories.WebhookLedger,
	monitoring repositories.MonitoringLog,
	engine *rules.Engine,
	reconciler *reconciliation.Service,
	logger *zap.Logger,
	opts ...Option,
) *Orchestrator {
	o := &Orchestrator{
		events:     events,
		ledger:     ledger,
		monitoring: monitoring,
		rules:      engine,
		reconciler: reconciler,
		metrics:    observability.NopMetrics{},
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessEvent stores the event, evaluates the rules against it and the
// full event set, and records a monitoring entry. Any failure is captured
// into an error-status result and an event_processing_error entry.
func (o *Orchestrator) ProcessEvent(ctx context.Context, event models.Event) ProcessResult {
	start := time.Now()

	o.mu.Lock()
	result := o.processLocked(event)
	o.mu.Unlock()

	o.metrics.RecordEvent(result.Status, time.Since(start))
	if !result.OK() {
		o.logger.Error("event processing failed",
			zap.String("core_event_id", result.CoreEventID),
			zap.String("error", result.Error))
		return result
	}

	for _, a := range result.ActionsTriggered {
		o.metrics.RecordAction(string(a.Action))
	}
	for _, alert := range result.CrossCaseAlerts {
		o.metrics.RecordAlert(string(alert.Type))
	}
	o.logger.Info("event processed",
		zap.String("core_event_id", result.CoreEventID),
		zap.String("case_id", event.CaseID),
		zap.Int("actions_triggered", len(result.ActionsTriggered)),
		zap.Int("cross_case_alerts", len(result.CrossCaseAlerts)))
	return result
}

// processLocked stores the event last, so a failure at any step leaves the
// event store untouched and the same id can be retried.
func (o *Orchestrator) processLocked(event models.Event) (result ProcessResult) {
	if event.CoreEventID == "" {
		event.CoreEventID = o.newID()
	}
	id := event.CoreEventID

	defer func() {
		if r := recover(); r != nil {
			result = o.captureEventFailure(id, services.WrapProcessing("event processing panicked", fmt.Errorf("%v", r)))
		}
	}()

	if _, err := o.events.Get(id); err == nil {
		return o.captureEventFailure(id, fmt.Errorf("%w: %s", services.ErrDuplicateEventID, id))
	}

	event.ProcessedAt = o.now()
	eval := o.rules.Evaluate(&event, append(o.events.All(), event))

	actions := make([]models.TriggeredAction, 0, 3)
	if eval.AutoEscalation {
		actions = append(actions, models.TriggeredAction{
			Action:    models.ActionAutoEscalation,
			Reason:    models.ReasonAutoEscalation,
			Timestamp: o.now(),
		})
	}
	if eval.MultisigTrigger {
		actions = append(actions, models.TriggeredAction{
			Action:    models.ActionMultisigTrigger,
			Reason:    models.ReasonMultisigTrigger,
			Timestamp: o.now(),
		})
	}
	alerts := eval.CrossCaseAlerts
	if alerts == nil {
		alerts = []models.Alert{}
	}
	if len(alerts) > 0 {
		actions = append(actions, models.TriggeredAction{
			Action:    models.ActionCrossCaseAlerts,
			Alerts:    alerts,
			Timestamp: o.now(),
		})
	}

	entry := o.newEntry(models.MonitoringEventProcessed, models.MonitoringStatusSuccess).
		WithDetails(fmt.Sprintf("Processed event %s with %d actions triggered", id, len(actions)))
	if err := o.appendEntryLocked(*entry); err != nil {
		return o.captureEventFailure(id, err)
	}

	// Get above ran under the same lock, so Put cannot conflict here.
	if _, err := o.events.Put(event); err != nil {
		return o.captureEventFailure(id, err)
	}

	return ProcessResult{
		CoreEventID:      id,
		Status:           StatusProcessed,
		ActionsTriggered: actions,
		CrossCaseAlerts:  alerts,
		ProcessedAt:      event.ProcessedAt,
	}
}

func (o *Orchestrator) captureEventFailure(id string, err error) ProcessResult {
	entry := o.newEntry(models.MonitoringEventProcessingError, models.MonitoringStatusError).
		WithDetails(err.Error())
	if appendErr := o.appendEntryLocked(*entry); appendErr != nil {
		o.logger.Error("failed to record processing error", zap.Error(appendErr))
	}
	return ProcessResult{
		CoreEventID:      id,
		Status:           StatusError,
		ActionsTriggered: []models.TriggeredAction{},
		CrossCaseAlerts:  []models.Alert{},
		ProcessedAt:      o.now(),
		Error:            err.Error(),
	}
}

// HandleWebhookCallback records the callback in the ledger together with a
// webhook_<type> monitoring entry. Failures are captured like ProcessEvent.
func (o *Orchestrator) HandleWebhookCallback(ctx context.Context, callbackType string, payload json.RawMessage) CallbackResult {
	o.mu.Lock()
	result := o.handleCallbackLocked(callbackType, payload)
	o.mu.Unlock()

	o.metrics.RecordCallback(callbackType, result.Status)
	if !result.OK() {
		o.logger.Error("webhook callback failed",
			zap.String("callback_type", callbackType),
			zap.String("error", result.Error))
		return result
	}
	o.logger.Info("webhook callback received",
		zap.String("callback_type", callbackType),
		zap.String("message_id", result.MessageID))
	return result
}

func (o *Orchestrator) handleCallbackLocked(callbackType string, payload json.RawMessage) (result CallbackResult) {
	defer func() {
		if r := recover(); r != nil {
			result = o.captureCallbackFailure(callbackType, services.WrapProcessing("callback handling panicked", fmt.Errorf("%v", r)))
		}
	}()

	cb := models.WebhookCallback{
		MessageID:    o.newID(),
		CallbackType: callbackType,
		Payload:      payload,
		ReceivedAt:   o.now(),
	}
	messageID, err := o.ledger.Append(cb)
	if err != nil {
		return o.captureCallbackFailure(callbackType, err)
	}

	entry := o.newEntry(models.WebhookEventType(callbackType), models.MonitoringStatusReceived).
		WithDetails(fmt.Sprintf("Webhook %s received with message ID %s", callbackType, messageID))
	if err := o.appendEntryLocked(*entry); err != nil {
		return o.captureCallbackFailure(callbackType, err)
	}

	return CallbackResult{
		MessageID:  messageID,
		Status:     StatusReceived,
		ReceivedAt: cb.ReceivedAt,
	}
}

func (o *Orchestrator) captureCallbackFailure(callbackType string, err error) CallbackResult {
	entry := o.newEntry(models.WebhookErrorEventType(callbackType), models.MonitoringStatusError).
		WithDetails(err.Error())
	if appendErr := o.appendEntryLocked(*entry); appendErr != nil {
		o.logger.Error("failed to record callback error", zap.Error(appendErr))
	}
	return CallbackResult{
		Status:     StatusError,
		ReceivedAt: o.now(),
		Error:      err.Error(),
	}
}

// GetEventStatus looks up an event. A miss is reported through the
// not_found status, not an error.
func (o *Orchestrator) GetEventStatus(ctx context.Context, coreEventID string) EventStatus {
	o.mu.RLock()
	event, err := o.events.Get(coreEventID)
	o.mu.RUnlock()

	if err != nil {
		return EventStatus{
			CoreEventID: coreEventID,
			Status:      StatusNotFound,
			Error:       msgEventNotFound,
		}
	}

	processedAt := event.ProcessedAt
	return EventStatus{
		CoreEventID: coreEventID,
		Status:      StatusProcessed,
		EventData:   &event,
		ProcessedAt: &processedAt,
	}
}

// GetCaseStatus reconciles every event of the case through the verifier.
// The verifier runs outside the store lock.
func (o *Orchestrator) GetCaseStatus(ctx context.Context, caseID string) (reconciliation.CaseStatus, error) {
	o.mu.RLock()
	events := o.events.FindByCase(caseID)
	o.mu.RUnlock()

	if len(events) == 0 {
		return reconciliation.CaseStatus{}, fmt.Errorf("%w: %s", services.ErrCaseNotFound, caseID)
	}
	return o.reconciler.Reconcile(ctx, caseID, events), nil
}

// GetMonitoringEvents lists monitoring entries in append order. A non-empty
// eventType keeps exact matches only.
func (o *Orchestrator) GetMonitoringEvents(ctx context.Context, eventType string) []models.MonitoringEntry {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.monitoring.List(eventType)
}

// LogMonitoringEntry appends a caller-supplied entry. Missing id and
// timestamp are assigned.
func (o *Orchestrator) LogMonitoringEntry(ctx context.Context, entry models.MonitoringEntry) (LogResult, error) {
	if entry.EventType == "" || entry.Status == "" {
		return LogResult{}, services.NewDomainError(services.ErrorTypeValidation,
			"eventType and status are required", nil)
	}
	if entry.ID == "" {
		entry.ID = o.newID()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = o.now()
	}

	o.mu.Lock()
	err := o.appendEntryLocked(entry)
	o.mu.Unlock()
	if err != nil {
		return LogResult{}, services.WrapInternal("failed to append monitoring entry", err)
	}

	return LogResult{Status: StatusLogged, EventID: entry.ID}, nil
}

// ReplayFailedEvent records replay intent for a ledger entry. An unknown
// message id returns an error result and leaves every store untouched.
func (o *Orchestrator) ReplayFailedEvent(ctx context.Context, messageID string) (ReplayResult, error) {
	o.mu.Lock()
	cb, err := o.ledger.Find(messageID)
	if err != nil {
		o.mu.Unlock()
		o.metrics.RecordReplay(StatusNotFound)
		return ReplayResult{
			Status:  StatusError,
			EventID: messageID,
			Error:   msgEventNotFound,
		}, err
	}

	entry := o.newEntry(models.MonitoringReplay, models.MonitoringStatusInitiated).
		WithDetails(fmt.Sprintf("Replay initiated for event %s", messageID))
	err = o.appendEntryLocked(*entry)
	o.mu.Unlock()

	if err != nil {
		o.metrics.RecordReplay(StatusError)
		return ReplayResult{Status: StatusError, EventID: messageID, Error: err.Error()},
			services.WrapInternal("failed to record replay", err)
	}

	o.metrics.RecordReplay(StatusReplayInitiated)
	o.logger.Info("replay initiated",
		zap.String("message_id", messageID),
		zap.String("callback_type", cb.CallbackType),
		zap.String("monitoring_event_id", entry.ID))

	return ReplayResult{
		Status:            StatusReplayInitiated,
		EventID:           messageID,
		MonitoringEventID: entry.ID,
		Callback:          &cb,
	}, nil
}

// Stats returns the current store sizes
func (o *Orchestrator) Stats() Stats {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Stats{
		Events:            o.events.Count(),
		Callbacks:         o.ledger.Count(),
		MonitoringEntries: o.monitoring.Count(),
	}
}

// Rules returns the rules snapshot currently in force
func (o *Orchestrator) Rules() rules.Rules {
	return o.rules.Current()
}

func (o *Orchestrator) newEntry(eventType, status string) *models.MonitoringEntry {
	return models.NewMonitoringEntry(eventType, status).
		WithID(o.newID()).
		WithTimestamp(o.now())
}

// appendEntryLocked must be called with mu held for writing
func (o *Orchestrator) appendEntryLocked(entry models.MonitoringEntry) error {
	if err := o.monitoring.Append(entry); err != nil {
		return err
	}
	o.metrics.RecordMonitoringEntry()
	if o.sink != nil {
		// The sink logs and counts its own drops.
		_ = o.sink.LogEvent(entry)
	}
	return nil
}
