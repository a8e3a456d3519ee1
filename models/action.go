package models

import (
	"fmt"
	"time"
)

// AlertType identifies a batch-level finding
type AlertType string

const (
	AlertTypeDuplicateWallet AlertType = "duplicate_wallet"
)

// Alert is a finding that spans more than one case
type Alert struct {
	Type          AlertType `json:"type"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	CaseIDs       []string  `json:"caseIds"`
	Count         int       `json:"count"`
	Details       string    `json:"details"`
}

// NewDuplicateWalletAlert builds the alert for a wallet seen in several events
func NewDuplicateWalletAlert(wallet string, caseIDs []string) Alert {
	return Alert{
		Type:          AlertTypeDuplicateWallet,
		WalletAddress: wallet,
		CaseIDs:       caseIDs,
		Count:         len(caseIDs),
		Details:       fmt.Sprintf("Wallet %s appears in %d cases", wallet, len(caseIDs)),
	}
}

// ActionType identifies an orchestration action
type ActionType string

const (
	ActionAutoEscalation  ActionType = "auto_escalation"
	ActionMultisigTrigger ActionType = "multisig_trigger"
	ActionCrossCaseAlerts ActionType = "cross_case_alerts"
)

// Human-readable reasons attached to triggered actions
const (
	ReasonAutoEscalation  = "Risk score or transaction value threshold exceeded"
	ReasonMultisigTrigger = "Freeze action with high risk score"
)

// TriggeredAction describes one action fired while processing an event
type TriggeredAction struct {
	Action    ActionType `json:"action"`
	Reason    string     `json:"reason,omitempty"`
	Alerts    []Alert    `json:"alerts,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}
