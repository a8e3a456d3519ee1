package models

import (
	"encoding/json"
	"time"
)

// CallbackPayload is the outcome notification body sent by downstream
// systems. The orchestrator stores it verbatim; this type exists so the
// HTTP boundary can check the required fields.
type CallbackPayload struct {
	OutcomeID string                 `json:"outcomeId" validate:"required"`
	CaseID    string                 `json:"caseId" validate:"required"`
	EventType string                 `json:"eventType" validate:"required"`
	Result    map[string]interface{} `json:"result" validate:"required"`
	Timestamp string                 `json:"timestamp" validate:"required"`
}

// WebhookCallback is one received callback, as held by the ledger
type WebhookCallback struct {
	MessageID    string          `json:"messageId"`
	CallbackType string          `json:"callbackType"`
	Payload      json.RawMessage `json:"payload"`
	ReceivedAt   time.Time       `json:"receivedAt"`
}

// Clone returns a copy with its own payload buffer
func (c WebhookCallback) Clone() WebhookCallback {
	if c.Payload != nil {
		p := make(json.RawMessage, len(c.Payload))
		copy(p, c.Payload)
		c.Payload = p
	}
	return c
}
