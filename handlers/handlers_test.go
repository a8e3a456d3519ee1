package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/internal/rules"
	"github.com/upb/case-orchestrator/middleware"
	"github.com/upb/case-orchestrator/repositories/memory"
	"github.com/upb/case-orchestrator/services/orchestrator"
	"github.com/upb/case-orchestrator/services/reconciliation"
	"github.com/upb/case-orchestrator/services/replay"
)

type testServer struct {
	router http.Handler
	orch   *orchestrator.Orchestrator
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()

	orch := orchestrator.New(
		memory.NewEventStore(),
		memory.NewWebhookLedger(),
		memory.NewMonitoringLog(),
		rules.NewEngine(rules.Default()),
		reconciliation.NewService(nil, logger),
		logger,
	)
	dispatcher := replay.NewDispatcher(orch, nil, nil, logger)

	events := NewEventsHandler(orch, logger)
	callbacks := NewCallbacksHandler(orch, logger)
	monitoring := NewMonitoringHandler(orch, dispatcher, logger)

	r := chi.NewRouter()
	r.Post("/core/events", events.HandleCreate)
	r.Get("/core/events/{coreEventId}", events.HandleGet)
	r.Get("/core/case/{caseId}/status", events.HandleCaseStatus)
	r.With(middleware.ValidateCallbackType(logger)).Post("/callbacks/{callbackType}", callbacks.HandleCallback)
	r.Get("/monitoring/events", monitoring.HandleList)
	r.Post("/monitoring/events", monitoring.HandleLog)
	r.Post("/monitoring/replay/{messageId}", monitoring.HandleReplay)

	return &testServer{router: r, orch: orch}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(dst))
}
