package memory

import (
	"sync"

	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/repositories"
)

// MonitoringLog implements repositories.MonitoringLog
type MonitoringLog struct {
	mu      sync.RWMutex
	entries []models.MonitoringEntry
}

// NewMonitoringLog creates an empty monitoring log
func NewMonitoringLog() repositories.MonitoringLog {
	return &MonitoringLog{}
}

// Append records an entry
func (m *MonitoringLog) Append(entry models.MonitoringEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// List returns entries in append order, optionally filtered by exact event type
func (m *MonitoringLog) List(eventType string) []models.MonitoringEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.MonitoringEntry, 0, len(m.entries))
	for _, e := range m.entries {
		if eventType == "" || e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of recorded entries
func (m *MonitoringLog) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
