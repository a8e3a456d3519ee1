package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SuggestedAction is the upstream recommendation attached to a case event
type SuggestedAction string

const (
	SuggestedActionApprove  SuggestedAction = "approve"
	SuggestedActionReject   SuggestedAction = "reject"
	SuggestedActionEscalate SuggestedAction = "escalate"
	SuggestedActionReview   SuggestedAction = "review"
	SuggestedActionFreeze   SuggestedAction = "freeze"
)

// IsValid reports whether the action belongs to the closed set
func (a SuggestedAction) IsValid() bool {
	switch a {
	case SuggestedActionApprove, SuggestedActionReject, SuggestedActionEscalate,
		SuggestedActionReview, SuggestedActionFreeze:
		return true
	}
	return false
}

// DefaultCurrency applies when metadata carries no currency
const DefaultCurrency = "USD"

// Known metadata keys
const (
	metadataWalletAddress = "walletAddress"
	metadataAmount        = "amount"
	metadataCurrency      = "currency"
)

// EventMetadata holds the fields the rule engine reads plus any
// additional keys the producer attached.
type EventMetadata struct {
	WalletAddress string
	Amount        float64
	Currency      string
	Extra         map[string]interface{}
}

// CurrencyOrDefault returns the currency, falling back to USD
func (m *EventMetadata) CurrencyOrDefault() string {
	if m == nil || m.Currency == "" {
		return DefaultCurrency
	}
	return m.Currency
}

// MarshalJSON flattens Extra next to the typed keys
func (m EventMetadata) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(m.Extra)+3)
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.WalletAddress != "" {
		out[metadataWalletAddress] = m.WalletAddress
	}
	out[metadataAmount] = m.Amount
	out[metadataCurrency] = m.CurrencyOrDefault()
	return json.Marshal(out)
}

// UnmarshalJSON reads the typed keys and keeps everything else in Extra
func (m *EventMetadata) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = EventMetadata{}
	for k, v := range raw {
		switch k {
		case metadataWalletAddress:
			if string(v) == "null" {
				continue
			}
			if err := json.Unmarshal(v, &m.WalletAddress); err != nil {
				return fmt.Errorf("metadata.walletAddress must be a string")
			}
		case metadataAmount:
			if string(v) == "null" {
				continue
			}
			if err := json.Unmarshal(v, &m.Amount); err != nil {
				return fmt.Errorf("metadata.amount must be numeric")
			}
		case metadataCurrency:
			if string(v) == "null" {
				continue
			}
			if err := json.Unmarshal(v, &m.Currency); err != nil {
				return fmt.Errorf("metadata.currency must be a string")
			}
		default:
			var value interface{}
			if err := json.Unmarshal(v, &value); err != nil {
				return err
			}
			if m.Extra == nil {
				m.Extra = make(map[string]interface{})
			}
			m.Extra[k] = value
		}
	}
	return nil
}

// Clone returns a copy that shares no mutable state with m
func (m *EventMetadata) Clone() *EventMetadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.Extra != nil {
		c.Extra = cloneObject(m.Extra)
	}
	return &c
}

// cloneValue copies the containers produced by json.Unmarshal into
// interface{}. Scalars are immutable and returned as is.
func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneObject(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

func cloneObject(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// Event represents one ingested case event
type Event struct {
	CoreEventID     string          `json:"coreEventId"`
	CaseID          string          `json:"caseId"`
	EvidenceID      string          `json:"evidenceId"`
	RiskScore       float64         `json:"riskScore"`
	ActionSuggested SuggestedAction `json:"actionSuggested"`
	TxHash          *string         `json:"txHash,omitempty"`
	Source          string          `json:"source,omitempty"`
	Metadata        *EventMetadata  `json:"metadata,omitempty"`
	ProcessedAt     time.Time       `json:"processedAt"`
}

// WalletAddress returns the metadata wallet address, or "" when absent
func (e *Event) WalletAddress() string {
	if e.Metadata == nil {
		return ""
	}
	return e.Metadata.WalletAddress
}

// Amount returns the metadata amount, defaulting to 0
func (e *Event) Amount() float64 {
	if e.Metadata == nil {
		return 0
	}
	return e.Metadata.Amount
}

// HasTxHash reports whether a non-empty transaction hash is attached
func (e *Event) HasTxHash() bool {
	return e.TxHash != nil && *e.TxHash != ""
}

// Clone returns a deep copy so stored events are never aliased by callers
func (e Event) Clone() Event {
	if e.TxHash != nil {
		h := *e.TxHash
		e.TxHash = &h
	}
	e.Metadata = e.Metadata.Clone()
	return e
}
