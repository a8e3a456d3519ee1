package orchestrator

import (
	"time"

	"github.com/upb/case-orchestrator/models"
)

// Result statuses returned to callers
const (
	StatusProcessed       = "processed"
	StatusError           = "error"
	StatusReceived        = "received"
	StatusNotFound        = "not_found"
	StatusReplayInitiated = "replay_initiated"
	StatusLogged          = "logged"
)

const msgEventNotFound = "Event not found"

// ProcessResult is the outcome of ProcessEvent. Status is either
// StatusProcessed or StatusError; failures never surface as Go errors.
type ProcessResult struct {
	CoreEventID      string                   `json:"coreEventId"`
	Status           string                   `json:"status"`
	ActionsTriggered []models.TriggeredAction `json:"actionsTriggered"`
	CrossCaseAlerts  []models.Alert           `json:"crossCaseAlerts"`
	ProcessedAt      time.Time                `json:"processedAt"`
	Error            string                   `json:"error,omitempty"`
}

// OK reports whether the event was processed
func (r ProcessResult) OK() bool {
	return r.Status == StatusProcessed
}

// CallbackResult is the outcome of HandleWebhookCallback
type CallbackResult struct {
	MessageID  string    `json:"messageId,omitempty"`
	Status     string    `json:"status"`
	ReceivedAt time.Time `json:"receivedAt"`
	Error      string    `json:"error,omitempty"`
}

// OK reports whether the callback was recorded
func (r CallbackResult) OK() bool {
	return r.Status == StatusReceived
}

// EventStatus is the outcome of GetEventStatus
type EventStatus struct {
	CoreEventID string        `json:"coreEventId"`
	Status      string        `json:"status"`
	EventData   *models.Event `json:"eventData,omitempty"`
	ProcessedAt *time.Time    `json:"processedAt,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Found reports whether the event exists
func (s EventStatus) Found() bool {
	return s.Status != StatusNotFound
}

// ReplayResult is the outcome of ReplayFailedEvent
type ReplayResult struct {
	Status            string `json:"status"`
	EventID           string `json:"eventId"`
	MonitoringEventID string `json:"monitoringEventId,omitempty"`
	Error             string `json:"error,omitempty"`

	// Callback is the ledger entry marked for replay, for outbound dispatch.
	Callback *models.WebhookCallback `json:"-"`
}

// LogResult acknowledges LogMonitoringEntry
type LogResult struct {
	Status  string `json:"status"`
	EventID string `json:"eventId"`
}

// Stats holds store sizes
type Stats struct {
	Events            int `json:"eventsCount"`
	Callbacks         int `json:"webhookEventsCount"`
	MonitoringEntries int `json:"monitoringEventsCount"`
}
