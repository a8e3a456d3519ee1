package reconciliation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/services"
)

// Item statuses
const (
	StatusVerified   = "verified"
	StatusUnverified = "unverified"
	StatusPending    = "pending"
)

// Overall case statuses
const (
	OverallOK       = "ok"
	OverallMismatch = "mismatch"
)

const detailNoHash = "No blockchain transaction hash provided"

// Verification is the verifier's answer for one transaction hash
type Verification struct {
	Verified bool
	Details  string
}

// Verifier checks an evidence anchor against an external ledger
type Verifier interface {
	Verify(ctx context.Context, txHash string) (Verification, error)
}

// HashPresenceVerifier accepts every non-empty hash without contacting a
// ledger. It is the default until a real chain client is configured.
type HashPresenceVerifier struct{}

// Verify implements Verifier
func (HashPresenceVerifier) Verify(_ context.Context, txHash string) (Verification, error) {
	if txHash == "" {
		return Verification{Verified: false, Details: detailNoHash}, nil
	}
	return Verification{
		Verified: true,
		Details:  "Evidence anchor matches blockchain transaction",
	}, nil
}

// Item is the reconciliation result for one event of a case
type Item struct {
	CoreEventID string  `json:"coreEventId"`
	EvidenceID  string  `json:"evidenceId"`
	TxHash      *string `json:"txHash"`
	Status      string  `json:"status"`
	Details     string  `json:"details"`
}

// CaseStatus summarizes the reconciliation of every event in a case
type CaseStatus struct {
	CaseID         string `json:"caseId"`
	Reconciliation []Item `json:"reconciliation"`
	OverallStatus  string `json:"overallStatus"`
}

// Service reconciles case events through a Verifier
type Service struct {
	verifier Verifier
	logger   *zap.Logger
}

// NewService creates a reconciliation service. A nil verifier selects
// HashPresenceVerifier.
func NewService(verifier Verifier, logger *zap.Logger) *Service {
	if verifier == nil {
		verifier = HashPresenceVerifier{}
	}
	return &Service{
		verifier: verifier,
		logger:   logger,
	}
}

// Reconcile verifies each event in order. Events without a hash are
// pending; verifier failures mark the item unverified. The case is ok only
// when every item is verified.
func (s *Service) Reconcile(ctx context.Context, caseID string, events []models.Event) CaseStatus {
	result := CaseStatus{
		CaseID:         caseID,
		Reconciliation: make([]Item, 0, len(events)),
		OverallStatus:  OverallOK,
	}

	for i := range events {
		ev := &events[i]
		item := Item{
			CoreEventID: ev.CoreEventID,
			EvidenceID:  ev.EvidenceID,
		}

		switch {
		case !ev.HasTxHash():
			item.Status = StatusPending
			item.Details = detailNoHash
		default:
			hash := *ev.TxHash
			item.TxHash = &hash

			v, err := s.verifier.Verify(ctx, hash)
			switch {
			case err != nil:
				err = fmt.Errorf("%w: %w", services.ErrVerifierUnavailable, err)
				s.logger.Warn("transaction verification failed",
					zap.String("case_id", caseID),
					zap.String("core_event_id", ev.CoreEventID),
					zap.Error(err),
				)
				item.Status = StatusUnverified
				item.Details = err.Error()
			case v.Verified:
				item.Status = StatusVerified
				item.Details = v.Details
			default:
				item.Status = StatusUnverified
				item.Details = v.Details
			}
		}

		if item.Status != StatusVerified {
			result.OverallStatus = OverallMismatch
		}
		result.Reconciliation = append(result.Reconciliation, item)
	}

	return result
}
