package memory

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/services"
)

func TestEventStore_PutGet(t *testing.T) {
	store := NewEventStore()

	hash := "0xabc"
	id, err := store.Put(models.Event{CoreEventID: "evt-1", CaseID: "C1", TxHash: &hash})
	require.NoError(t, err)
	assert.Equal(t, "evt-1", id)

	got, err := store.Get("evt-1")
	require.NoError(t, err)
	assert.Equal(t, "C1", got.CaseID)

	*got.TxHash = "mutated"
	again, err := store.Get("evt-1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", *again.TxHash)
	assert.Equal(t, 1, store.Count())
}

func TestEventStore_Errors(t *testing.T) {
	store := NewEventStore()

	t.Run("missing id", func(t *testing.T) {
		_, err := store.Put(models.Event{CaseID: "C1"})
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		_, err := store.Put(models.Event{CoreEventID: "evt-1", CaseID: "C1"})
		require.NoError(t, err)

		_, err = store.Put(models.Event{CoreEventID: "evt-1", CaseID: "C2"})
		assert.True(t, services.IsConflictError(err))

		got, err := store.Get("evt-1")
		require.NoError(t, err)
		assert.Equal(t, "C1", got.CaseID)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := store.Get("nope")
		assert.ErrorIs(t, err, services.ErrEventNotFound)
	})
}

func TestEventStore_AllAndFindByCase(t *testing.T) {
	store := NewEventStore()
	for i, c := range []string{"C1", "C2", "C1", "C3", "C1"} {
		_, err := store.Put(models.Event{CoreEventID: fmt.Sprintf("evt-%d", i), CaseID: c})
		require.NoError(t, err)
	}

	all := store.All()
	require.Len(t, all, 5)
	for i, e := range all {
		assert.Equal(t, fmt.Sprintf("evt-%d", i), e.CoreEventID)
	}

	c1 := store.FindByCase("C1")
	require.Len(t, c1, 3)
	assert.Equal(t, "evt-0", c1[0].CoreEventID)
	assert.Equal(t, "evt-2", c1[1].CoreEventID)
	assert.Equal(t, "evt-4", c1[2].CoreEventID)

	assert.Empty(t, store.FindByCase("C9"))
}

func TestEventStore_ConcurrentPut(t *testing.T) {
	store := NewEventStore()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Put(models.Event{CoreEventID: fmt.Sprintf("evt-%d", i), CaseID: "C"})
			assert.NoError(t, err)
			_ = store.All()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, store.Count())
	assert.Len(t, store.FindByCase("C"), 100)
}

func TestWebhookLedger(t *testing.T) {
	ledger := NewWebhookLedger()

	payload := json.RawMessage(`{"outcomeId":"o1"}`)
	id, err := ledger.Append(models.WebhookCallback{MessageID: "m1", CallbackType: "escalation-result", Payload: payload})
	require.NoError(t, err)
	assert.Equal(t, "m1", id)

	payload[2] = 'X'
	got, err := ledger.Find("m1")
	require.NoError(t, err)
	assert.Equal(t, `{"outcomeId":"o1"}`, string(got.Payload))
	assert.Equal(t, "escalation-result", got.CallbackType)

	_, err = ledger.Append(models.WebhookCallback{MessageID: "m1"})
	assert.True(t, services.IsConflictError(err))

	_, err = ledger.Append(models.WebhookCallback{})
	assert.True(t, services.IsValidationError(err))

	_, err = ledger.Find("missing")
	assert.True(t, services.IsNotFoundError(err))

	assert.Equal(t, 1, ledger.Count())
}

func TestMonitoringLog(t *testing.T) {
	log := NewMonitoringLog()

	types := []string{"event_processed", "webhook_x", "event_processed", "event_processed_error", "replay"}
	for i, et := range types {
		require.NoError(t, log.Append(models.MonitoringEntry{ID: fmt.Sprintf("m%d", i), EventType: et, Status: "success"}))
	}

	all := log.List("")
	require.Len(t, all, 5)
	for i, e := range all {
		assert.Equal(t, fmt.Sprintf("m%d", i), e.ID)
	}

	processed := log.List("event_processed")
	require.Len(t, processed, 2)
	assert.Equal(t, "m0", processed[0].ID)
	assert.Equal(t, "m2", processed[1].ID)

	assert.Empty(t, log.List("event"))
	assert.Equal(t, 5, log.Count())
}
