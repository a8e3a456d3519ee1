package memory

import (
	"fmt"
	"sync"

	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/repositories"
	"github.com/upb/case-orchestrator/services"
)

// WebhookLedger implements repositories.WebhookLedger
type WebhookLedger struct {
	mu        sync.RWMutex
	byID      map[string]int
	callbacks []models.WebhookCallback
}

// NewWebhookLedger creates an empty ledger
func NewWebhookLedger() repositories.WebhookLedger {
	return &WebhookLedger{
		byID: make(map[string]int),
	}
}

// Append records a copy of the callback. Message ids are never reused
func (l *WebhookLedger) Append(callback models.WebhookCallback) (string, error) {
	if callback.MessageID == "" {
		return "", fmt.Errorf("%w: missing message id", services.ErrInvalidCallback)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.byID[callback.MessageID]; exists {
		return "", fmt.Errorf("%w: %s", services.ErrDuplicateMessageID, callback.MessageID)
	}

	l.byID[callback.MessageID] = len(l.callbacks)
	l.callbacks = append(l.callbacks, callback.Clone())
	return callback.MessageID, nil
}

// Find retrieves a callback by message identifier
func (l *WebhookLedger) Find(messageID string) (models.WebhookCallback, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx, ok := l.byID[messageID]
	if !ok {
		return models.WebhookCallback{}, fmt.Errorf("%w: %s", services.ErrCallbackNotFound, messageID)
	}
	return l.callbacks[idx].Clone(), nil
}

// Count returns the number of recorded callbacks
func (l *WebhookLedger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.callbacks)
}
