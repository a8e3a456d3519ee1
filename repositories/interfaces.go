package repositories

import (
	"context"

	"github.com/upb/case-orchestrator/models"
)

// EventStore holds ingested case events keyed by core event id
type EventStore interface {
	// Put stores a new event and returns its identifier.
	// The identifier must be set and must not already exist.
	Put(event models.Event) (string, error)

	// Get retrieves an event by identifier
	Get(id string) (models.Event, error)

	// All returns a snapshot of every event in insertion order
	All() []models.Event

	// FindByCase returns the events of one case in insertion order
	FindByCase(caseID string) []models.Event

	// Count returns the number of stored events
	Count() int
}

// WebhookLedger is the append-only log of received callbacks
type WebhookLedger interface {
	// Append records a callback and returns its message identifier
	Append(callback models.WebhookCallback) (string, error)

	// Find retrieves a callback by message identifier
	Find(messageID string) (models.WebhookCallback, error)

	// Count returns the number of recorded callbacks
	Count() int
}

// MonitoringLog is the append-only log of operational entries
type MonitoringLog interface {
	// Append records an entry
	Append(entry models.MonitoringEntry) error

	// List returns entries in append order. A non-empty eventType keeps
	// only entries whose event type matches exactly.
	List(eventType string) []models.MonitoringEntry

	// Count returns the number of recorded entries
	Count() int
}

// MonitoringArchive is an optional durable mirror of the monitoring log
type MonitoringArchive interface {
	// Insert persists one entry
	Insert(ctx context.Context, entry *models.MonitoringEntry) error

	// ListByEventType retrieves archived entries with pagination, oldest first.
	// An empty eventType returns every type.
	ListByEventType(ctx context.Context, eventType string, limit, offset int) ([]*models.MonitoringEntry, error)
}
