package rules

import (
	"sync/atomic"

	"github.com/upb/case-orchestrator/models"
)

// Engine holds the active Rules snapshot and the cross-case checks.
// Swap replaces the snapshot atomically, so a reload never splits an
// evaluation that already called Current.
type Engine struct {
	current atomic.Pointer[Rules]
	checks  []BatchCheck
}

// NewEngine creates an engine with the given rules and batch checks.
// Passing no checks selects DefaultBatchChecks.
func NewEngine(r Rules, checks ...BatchCheck) *Engine {
	if len(checks) == 0 {
		checks = DefaultBatchChecks()
	}
	e := &Engine{checks: checks}
	e.current.Store(&r)
	return e
}

// Current returns the active rules snapshot
func (e *Engine) Current() Rules {
	return *e.current.Load()
}

// Swap installs new rules after validating them
func (e *Engine) Swap(r Rules) error {
	if err := r.Validate(); err != nil {
		return err
	}
	e.current.Store(&r)
	return nil
}

// Evaluation is the outcome of running the rule set against one event
type Evaluation struct {
	AutoEscalation  bool
	MultisigTrigger bool
	CrossCaseAlerts []models.Alert
}

// Evaluate runs the single-event checks against event and the batch
// checks against all, using one rules snapshot throughout.
func (e *Engine) Evaluate(event *models.Event, all []models.Event) Evaluation {
	r := e.Current()
	return Evaluation{
		AutoEscalation:  r.CheckAutoEscalation(event),
		MultisigTrigger: r.ShouldTriggerMultisig(event),
		CrossCaseAlerts: GenerateCrossCaseAlerts(all, e.checks...),
	}
}
