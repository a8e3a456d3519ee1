// Package memory provides the process-lifetime stores that act as the
// system of record. Nothing is evicted; every store grows with traffic.
package memory

import (
	"fmt"
	"sync"

	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/repositories"
	"github.com/upb/case-orchestrator/services"
)

// EventStore implements repositories.EventStore
type EventStore struct {
	mu     sync.RWMutex
	byID   map[string]int
	events []models.Event
}

// NewEventStore creates an empty event store
func NewEventStore() repositories.EventStore {
	return &EventStore{
		byID: make(map[string]int),
	}
}

// Put stores a copy of the event
func (s *EventStore) Put(event models.Event) (string, error) {
	if event.CoreEventID == "" {
		return "", fmt.Errorf("%w: missing core event id", services.ErrInvalidEvent)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[event.CoreEventID]; exists {
		return "", services.NewDomainError(services.ErrorTypeConflict,
			fmt.Sprintf("event %s already exists", event.CoreEventID), nil).
			WithDetail("coreEventId", event.CoreEventID)
	}

	s.byID[event.CoreEventID] = len(s.events)
	s.events = append(s.events, event.Clone())
	return event.CoreEventID, nil
}

// Get retrieves an event by identifier
func (s *EventStore) Get(id string) (models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.byID[id]
	if !ok {
		return models.Event{}, fmt.Errorf("%w: %s", services.ErrEventNotFound, id)
	}
	return s.events[idx].Clone(), nil
}

// All returns a snapshot of every event in insertion order
func (s *EventStore) All() []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Event, len(s.events))
	for i := range s.events {
		out[i] = s.events[i].Clone()
	}
	return out
}

// FindByCase returns the events of one case in insertion order
func (s *EventStore) FindByCase(caseID string) []models.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Event
	for i := range s.events {
		if s.events[i].CaseID == caseID {
			out = append(out, s.events[i].Clone())
		}
	}
	return out
}

// Count returns the number of stored events
func (s *EventStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
