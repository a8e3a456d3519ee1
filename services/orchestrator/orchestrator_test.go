package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/internal/rules"
	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/repositories/memory"
	"github.com/upb/case-orchestrator/services"
	"github.com/upb/case-orchestrator/services/reconciliation"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string {
		return fmt.Sprintf("id-%d", n.Add(1))
	}
}

func newTestOrchestrator(t *testing.T, opts ...Option) *Orchestrator {
	t.Helper()
	return newOrchestratorWith(t, rules.NewEngine(rules.Default()), reconciliation.NewService(nil, zap.NewNop()), opts...)
}

func newOrchestratorWith(t *testing.T, engine *rules.Engine, rec *reconciliation.Service, opts ...Option) *Orchestrator {
	t.Helper()
	base := []Option{
		WithClock(func() time.Time { return fixedNow }),
		WithIDGenerator(sequentialIDs()),
	}
	return New(
		memory.NewEventStore(),
		memory.NewWebhookLedger(),
		memory.NewMonitoringLog(),
		engine,
		rec,
		zap.NewNop(),
		append(base, opts...)...,
	)
}

func strPtr(s string) *string { return &s }

func hasAction(r ProcessResult, action models.ActionType) bool {
	for _, a := range r.ActionsTriggered {
		if a.Action == action {
			return true
		}
	}
	return false
}

func event(id, caseID string, risk float64, action models.SuggestedAction, amount float64, wallet string) models.Event {
	return models.Event{
		CoreEventID:     id,
		CaseID:          caseID,
		EvidenceID:      "ev-" + caseID,
		RiskScore:       risk,
		ActionSuggested: action,
		Metadata:        &models.EventMetadata{Amount: amount, WalletAddress: wallet},
	}
}

// recordingSink collects mirrored monitoring entries
type recordingSink struct {
	mu      sync.Mutex
	entries []models.MonitoringEntry
}

func (s *recordingSink) LogEvent(entry models.MonitoringEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// MockVerifier is a mock implementation of reconciliation.Verifier
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, txHash string) (reconciliation.Verification, error) {
	args := m.Called(ctx, txHash)
	return args.Get(0).(reconciliation.Verification), args.Error(1)
}

func TestProcessEvent_HighRiskEscalates(t *testing.T) {
	o := newTestOrchestrator(t)

	result := o.ProcessEvent(context.Background(), event("", "C1", 85, models.SuggestedActionEscalate, 100, ""))

	require.True(t, result.OK(), result.Error)
	assert.Equal(t, "id-1", result.CoreEventID)
	assert.True(t, hasAction(result, models.ActionAutoEscalation))
	assert.False(t, hasAction(result, models.ActionMultisigTrigger))
	assert.Empty(t, result.CrossCaseAlerts)
	assert.Equal(t, fixedNow, result.ProcessedAt)

	require.Len(t, result.ActionsTriggered, 1)
	assert.Equal(t, models.ReasonAutoEscalation, result.ActionsTriggered[0].Reason)
}

func TestProcessEvent_SecondFreezeTriggersMultisig(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	first := o.ProcessEvent(ctx, event("", "C2", 50, models.SuggestedActionFreeze, 100, ""))
	require.True(t, first.OK())
	assert.Empty(t, first.ActionsTriggered)

	second := o.ProcessEvent(ctx, event("", "C2", 75, models.SuggestedActionFreeze, 100, ""))
	require.True(t, second.OK())
	assert.True(t, hasAction(second, models.ActionMultisigTrigger))
	assert.False(t, hasAction(second, models.ActionAutoEscalation))
}

func TestProcessEvent_HighValueEscalates(t *testing.T) {
	o := newTestOrchestrator(t)

	result := o.ProcessEvent(context.Background(), event("", "C3", 10, models.SuggestedActionReview, 10000, ""))
	require.True(t, result.OK())
	assert.True(t, hasAction(result, models.ActionAutoEscalation))
}

func TestProcessEvent_DuplicateWalletAcrossCases(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	first := o.ProcessEvent(ctx, event("", "C1", 10, models.SuggestedActionApprove, 1, "0xabc"))
	require.True(t, first.OK())
	assert.Empty(t, first.CrossCaseAlerts)

	second := o.ProcessEvent(ctx, event("", "C2", 10, models.SuggestedActionApprove, 1, "0xabc"))
	require.True(t, second.OK())
	require.Len(t, second.CrossCaseAlerts, 1)

	alert := second.CrossCaseAlerts[0]
	assert.Equal(t, models.AlertTypeDuplicateWallet, alert.Type)
	assert.Equal(t, 2, alert.Count)
	assert.Equal(t, []string{"C1", "C2"}, alert.CaseIDs)
	assert.True(t, hasAction(second, models.ActionCrossCaseAlerts))
}

func TestProcessEvent_KeepsSuppliedID(t *testing.T) {
	o := newTestOrchestrator(t)

	result := o.ProcessEvent(context.Background(), event("core-42", "C1", 10, models.SuggestedActionApprove, 1, ""))
	require.True(t, result.OK())
	assert.Equal(t, "core-42", result.CoreEventID)
}

func TestProcessEvent_RecordsMonitoringEntry(t *testing.T) {
	sink := &recordingSink{}
	o := newTestOrchestrator(t, WithMonitoringSink(sink))

	o.ProcessEvent(context.Background(), event("e1", "C1", 85, models.SuggestedActionEscalate, 100, ""))

	entries := o.GetMonitoringEvents(context.Background(), models.MonitoringEventProcessed)
	require.Len(t, entries, 1)
	assert.Equal(t, models.MonitoringStatusSuccess, entries[0].Status)
	assert.Equal(t, "Processed event e1 with 1 actions triggered", entries[0].Details)
	assert.Len(t, sink.entries, 1)
}

func TestProcessEvent_DuplicateIDIsCaptured(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	require.True(t, o.ProcessEvent(ctx, event("e1", "C1", 10, models.SuggestedActionApprove, 1, "")).OK())

	result := o.ProcessEvent(ctx, event("e1", "C1", 90, models.SuggestedActionApprove, 1, ""))
	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, "e1", result.CoreEventID)
	assert.NotEmpty(t, result.Error)
	assert.Empty(t, result.ActionsTriggered)
	assert.NotNil(t, result.ActionsTriggered)

	errs := o.GetMonitoringEvents(ctx, models.MonitoringEventProcessingError)
	require.Len(t, errs, 1)
	assert.Equal(t, models.MonitoringStatusError, errs[0].Status)
	assert.Equal(t, 1, o.Stats().Events)
}

func TestProcessEvent_PanicIsCaptured(t *testing.T) {
	boom := func([]models.Event) []models.Alert { panic("check exploded") }
	engine := rules.NewEngine(rules.Default(), boom)
	o := newOrchestratorWith(t, engine, reconciliation.NewService(nil, zap.NewNop()))

	var result ProcessResult
	require.NotPanics(t, func() {
		result = o.ProcessEvent(context.Background(), event("e1", "C1", 10, models.SuggestedActionApprove, 1, ""))
	})

	assert.Equal(t, StatusError, result.Status)
	assert.Contains(t, result.Error, "check exploded")
	assert.Len(t, o.GetMonitoringEvents(context.Background(), models.MonitoringEventProcessingError), 1)
	assert.Equal(t, 0, o.Stats().Events)
}

func TestProcessEvent_FailedIngestionCanBeRetried(t *testing.T) {
	var calls atomic.Int64
	flaky := func(events []models.Event) []models.Alert {
		if calls.Add(1) == 1 {
			panic("store unavailable")
		}
		return rules.DetectDuplicateWallets(events)
	}
	engine := rules.NewEngine(rules.Default(), flaky)
	o := newOrchestratorWith(t, engine, reconciliation.NewService(nil, zap.NewNop()))
	ctx := context.Background()

	first := o.ProcessEvent(ctx, event("e1", "C1", 10, models.SuggestedActionApprove, 1, "0xabc"))
	require.Equal(t, StatusError, first.Status)
	assert.Equal(t, 0, o.Stats().Events)
	assert.Equal(t, StatusNotFound, o.GetEventStatus(ctx, "e1").Status)

	retry := o.ProcessEvent(ctx, event("e1", "C1", 10, models.SuggestedActionApprove, 1, "0xabc"))
	require.True(t, retry.OK(), retry.Error)
	assert.Equal(t, 1, o.Stats().Events)

	// The failed attempt must not count towards cross-case patterns.
	second := o.ProcessEvent(ctx, event("e2", "C2", 10, models.SuggestedActionApprove, 1, "0xabc"))
	require.True(t, second.OK(), second.Error)
	require.Len(t, second.CrossCaseAlerts, 1)
	assert.Equal(t, 2, second.CrossCaseAlerts[0].Count)
	assert.Equal(t, []string{"C1", "C2"}, second.CrossCaseAlerts[0].CaseIDs)
}

func TestProcessEvent_CrossCaseIncludesCurrentEvent(t *testing.T) {
	var seen []int
	counting := func(events []models.Event) []models.Alert {
		seen = append(seen, len(events))
		return nil
	}
	o := newOrchestratorWith(t, rules.NewEngine(rules.Default(), counting), reconciliation.NewService(nil, zap.NewNop()))
	ctx := context.Background()

	require.True(t, o.ProcessEvent(ctx, event("e1", "C1", 10, models.SuggestedActionApprove, 1, "")).OK())
	require.True(t, o.ProcessEvent(ctx, event("e2", "C2", 10, models.SuggestedActionApprove, 1, "")).OK())
	assert.Equal(t, []int{1, 2}, seen)
}

func TestHandleWebhookCallback(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	payload := json.RawMessage(`{"outcomeId":"o1","caseId":"C1"}`)

	result := o.HandleWebhookCallback(ctx, "escalation-result", payload)
	require.True(t, result.OK(), result.Error)
	assert.Equal(t, "id-1", result.MessageID)
	assert.Equal(t, fixedNow, result.ReceivedAt)

	entries := o.GetMonitoringEvents(ctx, "webhook_escalation-result")
	require.Len(t, entries, 1)
	assert.Equal(t, models.MonitoringStatusReceived, entries[0].Status)
	assert.Equal(t, "Webhook escalation-result received with message ID id-1", entries[0].Details)
	assert.Equal(t, 1, o.Stats().Callbacks)
}

func TestHandleWebhookCallback_FailureIsCaptured(t *testing.T) {
	o := newTestOrchestrator(t, WithIDGenerator(func() string { return "same" }))
	ctx := context.Background()
	payload := json.RawMessage(`{"outcomeId":"o1"}`)

	require.True(t, o.HandleWebhookCallback(ctx, "x", payload).OK())

	var result CallbackResult
	require.NotPanics(t, func() {
		result = o.HandleWebhookCallback(ctx, "x", payload)
	})
	assert.Equal(t, StatusError, result.Status)
	assert.Empty(t, result.MessageID)
	assert.Contains(t, result.Error, "already exists")

	errs := o.GetMonitoringEvents(ctx, "webhook_x_error")
	require.Len(t, errs, 1)
	assert.Equal(t, models.MonitoringStatusError, errs[0].Status)
	assert.Equal(t, result.Error, errs[0].Details)
	assert.Len(t, o.GetMonitoringEvents(ctx, "webhook_x"), 1)
	assert.Equal(t, 1, o.Stats().Callbacks)
}

func TestGetEventStatus(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	o.ProcessEvent(ctx, event("e1", "C1", 10, models.SuggestedActionApprove, 1, "0xabc"))

	first := o.GetEventStatus(ctx, "e1")
	require.True(t, first.Found())
	assert.Equal(t, StatusProcessed, first.Status)
	require.NotNil(t, first.EventData)
	assert.Equal(t, "0xabc", first.EventData.WalletAddress())

	// Mutating a returned copy must not leak into the store.
	first.EventData.Metadata.WalletAddress = "0xdef"
	first.EventData.RiskScore = 99

	second := o.GetEventStatus(ctx, "e1")
	assert.Equal(t, "0xabc", second.EventData.WalletAddress())
	assert.Equal(t, 10.0, second.EventData.RiskScore)
}

func TestGetEventStatus_NotFound(t *testing.T) {
	o := newTestOrchestrator(t)

	status := o.GetEventStatus(context.Background(), "missing")
	assert.False(t, status.Found())
	assert.Equal(t, StatusNotFound, status.Status)
	assert.Equal(t, "Event not found", status.Error)
	assert.Nil(t, status.EventData)
}

func TestGetCaseStatus(t *testing.T) {
	verifier := new(MockVerifier)
	verifier.On("Verify", mock.Anything, "0x1").
		Return(reconciliation.Verification{Verified: true, Details: "anchored"}, nil)
	verifier.On("Verify", mock.Anything, "0x2").
		Return(reconciliation.Verification{}, errors.New("rpc timeout"))

	o := newOrchestratorWith(t, rules.NewEngine(rules.Default()), reconciliation.NewService(verifier, zap.NewNop()))
	ctx := context.Background()

	e1 := event("e1", "C1", 10, models.SuggestedActionApprove, 1, "")
	e1.TxHash = strPtr("0x1")
	e2 := event("e2", "C1", 10, models.SuggestedActionApprove, 1, "")
	e2.TxHash = strPtr("0x2")
	e3 := event("e3", "C1", 10, models.SuggestedActionApprove, 1, "")
	other := event("e4", "C9", 10, models.SuggestedActionApprove, 1, "")

	for _, e := range []models.Event{e1, e2, e3, other} {
		require.True(t, o.ProcessEvent(ctx, e).OK())
	}

	status, err := o.GetCaseStatus(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "C1", status.CaseID)
	assert.Equal(t, reconciliation.OverallMismatch, status.OverallStatus)
	require.Len(t, status.Reconciliation, 3)
	assert.Equal(t, reconciliation.StatusVerified, status.Reconciliation[0].Status)
	assert.Equal(t, reconciliation.StatusUnverified, status.Reconciliation[1].Status)
	assert.Equal(t, "external: blockchain verifier unavailable: rpc timeout", status.Reconciliation[1].Details)
	assert.Equal(t, reconciliation.StatusPending, status.Reconciliation[2].Status)

	verifier.AssertExpectations(t)
}

func TestGetCaseStatus_AllVerified(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	e := event("e1", "C1", 10, models.SuggestedActionApprove, 1, "")
	e.TxHash = strPtr("0xfeed")
	require.True(t, o.ProcessEvent(ctx, e).OK())

	status, err := o.GetCaseStatus(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, reconciliation.OverallOK, status.OverallStatus)
}

func TestGetCaseStatus_UnknownCase(t *testing.T) {
	o := newTestOrchestrator(t)

	_, err := o.GetCaseStatus(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, services.IsNotFoundError(err))
	assert.ErrorIs(t, err, services.ErrCaseNotFound)
}

func TestGetMonitoringEvents_FilterAndOrder(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	o.ProcessEvent(ctx, event("e1", "C1", 10, models.SuggestedActionApprove, 1, ""))
	o.HandleWebhookCallback(ctx, "escalation-result", json.RawMessage(`{}`))
	o.ProcessEvent(ctx, event("e2", "C1", 10, models.SuggestedActionApprove, 1, ""))

	all := o.GetMonitoringEvents(ctx, "")
	require.Len(t, all, 3)
	assert.Equal(t, models.MonitoringEventProcessed, all[0].EventType)
	assert.Equal(t, "webhook_escalation-result", all[1].EventType)
	assert.Equal(t, models.MonitoringEventProcessed, all[2].EventType)

	assert.Len(t, o.GetMonitoringEvents(ctx, models.MonitoringEventProcessed), 2)
	assert.Empty(t, o.GetMonitoringEvents(ctx, "unknown"))
}

func TestLogMonitoringEntry(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	result, err := o.LogMonitoringEntry(ctx, models.MonitoringEntry{EventType: "manual_review", Status: "done"})
	require.NoError(t, err)
	assert.Equal(t, StatusLogged, result.Status)
	assert.Equal(t, "id-1", result.EventID)

	entries := o.GetMonitoringEvents(ctx, "manual_review")
	require.Len(t, entries, 1)
	assert.Equal(t, fixedNow, entries[0].Timestamp)

	_, err = o.LogMonitoringEntry(ctx, models.MonitoringEntry{EventType: "manual_review"})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
}

func TestReplayFailedEvent(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()

	cb := o.HandleWebhookCallback(ctx, "escalation-result", json.RawMessage(`{"a":1}`))
	require.True(t, cb.OK())

	result, err := o.ReplayFailedEvent(ctx, cb.MessageID)
	require.NoError(t, err)
	assert.Equal(t, StatusReplayInitiated, result.Status)
	assert.Equal(t, cb.MessageID, result.EventID)
	assert.NotEmpty(t, result.MonitoringEventID)
	require.NotNil(t, result.Callback)
	assert.Equal(t, "escalation-result", result.Callback.CallbackType)

	replays := o.GetMonitoringEvents(ctx, models.MonitoringReplay)
	require.Len(t, replays, 1)
	assert.Equal(t, result.MonitoringEventID, replays[0].ID)
	assert.Equal(t, models.MonitoringStatusInitiated, replays[0].Status)
	assert.Equal(t, "Replay initiated for event "+cb.MessageID, replays[0].Details)
}

func TestReplayFailedEvent_UnknownMessageLeavesLogUntouched(t *testing.T) {
	o := newTestOrchestrator(t)
	ctx := context.Background()
	before := o.Stats()

	result, err := o.ReplayFailedEvent(ctx, "missing")
	require.Error(t, err)
	assert.True(t, services.IsNotFoundError(err))
	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, "Event not found", result.Error)
	assert.Nil(t, result.Callback)

	assert.Equal(t, before, o.Stats())
	assert.Empty(t, o.GetMonitoringEvents(ctx, ""))
}

func TestConcurrentIngestion(t *testing.T) {
	o := New(
		memory.NewEventStore(),
		memory.NewWebhookLedger(),
		memory.NewMonitoringLog(),
		rules.NewEngine(rules.Default()),
		reconciliation.NewService(nil, zap.NewNop()),
		zap.NewNop(),
	)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				o.ProcessEvent(ctx, event("", fmt.Sprintf("C%d", i), 10, models.SuggestedActionApprove, 1, ""))
				o.HandleWebhookCallback(ctx, "escalation-result", json.RawMessage(`{}`))
				o.GetMonitoringEvents(ctx, "")
			}
		}(i)
	}
	wg.Wait()

	stats := o.Stats()
	assert.Equal(t, 200, stats.Events)
	assert.Equal(t, 200, stats.Callbacks)
	assert.Equal(t, 400, stats.MonitoringEntries)
}
