package models

import (
	"time"

	"github.com/google/uuid"
)

// Monitoring event types written by the orchestrator
const (
	MonitoringEventProcessed       = "event_processed"
	MonitoringEventProcessingError = "event_processing_error"
	MonitoringReplay               = "replay"
)

// Monitoring statuses
const (
	MonitoringStatusSuccess   = "success"
	MonitoringStatusError     = "error"
	MonitoringStatusReceived  = "received"
	MonitoringStatusInitiated = "initiated"
)

// WebhookEventType returns the monitoring event type for a received callback
func WebhookEventType(callbackType string) string {
	return "webhook_" + callbackType
}

// WebhookErrorEventType returns the monitoring event type for a failed callback
func WebhookErrorEventType(callbackType string) string {
	return "webhook_" + callbackType + "_error"
}

// MonitoringEntry is one operational/audit record
type MonitoringEntry struct {
	ID        string    `json:"eventId" db:"id"`
	EventType string    `json:"eventType" db:"event_type" validate:"required,max=128"`
	Status    string    `json:"status" db:"status" validate:"required,max=64"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
	Details   string    `json:"details,omitempty" db:"details"`
}

// TableName returns the archive table name for the MonitoringEntry model
func (MonitoringEntry) TableName() string {
	return "monitoring_entries"
}

// NewMonitoringEntry creates a new MonitoringEntry instance
func NewMonitoringEntry(eventType, status string) *MonitoringEntry {
	return &MonitoringEntry{
		ID:        uuid.NewString(),
		EventType: eventType,
		Status:    status,
		Timestamp: time.Now().UTC(),
	}
}

// WithID overrides the generated identifier
func (m *MonitoringEntry) WithID(id string) *MonitoringEntry {
	m.ID = id
	return m
}

// WithTimestamp overrides the creation time
func (m *MonitoringEntry) WithTimestamp(ts time.Time) *MonitoringEntry {
	m.Timestamp = ts
	return m
}

// WithDetails sets the free-text detail
func (m *MonitoringEntry) WithDetails(details string) *MonitoringEntry {
	m.Details = details
	return m
}
