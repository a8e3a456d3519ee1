package handlers

import (
	"context"
	"encoding/json"

	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/services/orchestrator"
	"github.com/upb/case-orchestrator/services/reconciliation"
)

// EventService is the orchestrator surface used by the event routes
type EventService interface {
	ProcessEvent(ctx context.Context, event models.Event) orchestrator.ProcessResult
	GetEventStatus(ctx context.Context, coreEventID string) orchestrator.EventStatus
	GetCaseStatus(ctx context.Context, caseID string) (reconciliation.CaseStatus, error)
}

// CallbackService is the orchestrator surface used by the callback routes
type CallbackService interface {
	HandleWebhookCallback(ctx context.Context, callbackType string, payload json.RawMessage) orchestrator.CallbackResult
}

// MonitoringService is the orchestrator surface used by the monitoring routes
type MonitoringService interface {
	GetMonitoringEvents(ctx context.Context, eventType string) []models.MonitoringEntry
	LogMonitoringEntry(ctx context.Context, entry models.MonitoringEntry) (orchestrator.LogResult, error)
}

// ReplayService records replay intent and dispatches it
type ReplayService interface {
	Replay(ctx context.Context, messageID string) (orchestrator.ReplayResult, error)
}

// ArchiveReader pages through the durable monitoring archive
type ArchiveReader interface {
	ListByEventType(ctx context.Context, eventType string, limit, offset int) ([]*models.MonitoringEntry, error)
}
