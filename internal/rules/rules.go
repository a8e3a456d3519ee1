// Package rules holds the orchestration rule set: auto-escalation,
// multisig triggering and cross-case pattern checks. Every evaluation
// function here is pure; logging and metrics belong to the caller.
package rules

import (
	"fmt"
	"strings"

	"github.com/upb/case-orchestrator/models"
)

// MultisigPolicy is the signer quorum attached to multisig triggers
type MultisigPolicy struct {
	Required int `yaml:"required" json:"required"`
	Signers  int `yaml:"signers" json:"signers"`
}

// Rules is an immutable snapshot of the orchestration thresholds
type Rules struct {
	RiskThreshold         float64        `yaml:"risk_threshold" json:"riskThreshold"`
	HighValueThreshold    float64        `yaml:"high_value_threshold" json:"highValueThreshold"`
	MultisigRiskThreshold float64        `yaml:"multisig_risk_threshold" json:"multisigRiskThreshold"`
	Multisig              MultisigPolicy `yaml:"multisig" json:"multisig"`
}

// Default returns the built-in thresholds
func Default() Rules {
	return Rules{
		RiskThreshold:         80.0,
		HighValueThreshold:    10000.0,
		MultisigRiskThreshold: 70.0,
		Multisig: MultisigPolicy{
			Required: 3,
			Signers:  5,
		},
	}
}

// Validate checks the thresholds for internal consistency
func (r Rules) Validate() error {
	var errs []string

	if r.RiskThreshold < 0 || r.RiskThreshold > 100 {
		errs = append(errs, fmt.Sprintf("risk_threshold %v must be within [0,100]", r.RiskThreshold))
	}
	if r.MultisigRiskThreshold < 0 || r.MultisigRiskThreshold > 100 {
		errs = append(errs, fmt.Sprintf("multisig_risk_threshold %v must be within [0,100]", r.MultisigRiskThreshold))
	}
	if r.HighValueThreshold < 0 {
		errs = append(errs, fmt.Sprintf("high_value_threshold %v must not be negative", r.HighValueThreshold))
	}
	if r.Multisig.Signers <= 0 {
		errs = append(errs, "multisig.signers must be positive")
	}
	if r.Multisig.Required <= 0 || r.Multisig.Required > r.Multisig.Signers {
		errs = append(errs, fmt.Sprintf("multisig.required %d must be in (0, signers]", r.Multisig.Required))
	}

	if len(errs) > 0 {
		return fmt.Errorf("rules validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// CheckAutoEscalation reports whether the event crosses the risk or
// high-value threshold. Risk is checked first. Amounts are compared as-is,
// without currency conversion.
func (r Rules) CheckAutoEscalation(e *models.Event) bool {
	if e.RiskScore >= r.RiskThreshold {
		return true
	}
	return e.Amount() >= r.HighValueThreshold
}

// ShouldTriggerMultisig reports whether a freeze suggestion is risky enough
// to require multi-party authorization.
func (r Rules) ShouldTriggerMultisig(e *models.Event) bool {
	return e.ActionSuggested == models.SuggestedActionFreeze &&
		e.RiskScore >= r.MultisigRiskThreshold
}

// DetectDuplicateWallets emits one alert per wallet address shared by more
// than one event. Alerts follow the first appearance of each wallet and
// case ids follow event order. Events without a wallet are skipped.
func DetectDuplicateWallets(events []models.Event) []models.Alert {
	var order []string
	byWallet := make(map[string][]string)

	for i := range events {
		wallet := events[i].WalletAddress()
		if wallet == "" {
			continue
		}
		if _, seen := byWallet[wallet]; !seen {
			order = append(order, wallet)
		}
		byWallet[wallet] = append(byWallet[wallet], events[i].CaseID)
	}

	var alerts []models.Alert
	for _, wallet := range order {
		caseIDs := byWallet[wallet]
		if len(caseIDs) > 1 {
			alerts = append(alerts, models.NewDuplicateWalletAlert(wallet, caseIDs))
		}
	}
	return alerts
}

// BatchCheck inspects the full event set and returns zero or more alerts
type BatchCheck func(events []models.Event) []models.Alert

// DefaultBatchChecks returns the cross-case checks run on every ingestion
func DefaultBatchChecks() []BatchCheck {
	return []BatchCheck{DetectDuplicateWallets}
}

// GenerateCrossCaseAlerts runs every batch check over the event set and
// concatenates their alerts in check order. With no checks given the
// defaults are used.
func GenerateCrossCaseAlerts(events []models.Event, checks ...BatchCheck) []models.Alert {
	if len(checks) == 0 {
		checks = DefaultBatchChecks()
	}

	var alerts []models.Alert
	for _, check := range checks {
		alerts = append(alerts, check(events)...)
	}
	return alerts
}
