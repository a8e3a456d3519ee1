package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/utils"
)

// LogMonitoringEntryRequest is the body of POST /monitoring/events
type LogMonitoringEntryRequest struct {
	EventID   string     `json:"eventId,omitempty" validate:"max=128"`
	EventType string     `json:"eventType" validate:"required,max=128"`
	Status    string     `json:"status" validate:"required,max=64"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Details   string     `json:"details,omitempty"`
}

// ToEntry converts the request into a monitoring entry
func (r LogMonitoringEntryRequest) ToEntry() models.MonitoringEntry {
	entry := models.MonitoringEntry{
		ID:        r.EventID,
		EventType: r.EventType,
		Status:    r.Status,
		Details:   r.Details,
	}
	if r.Timestamp != nil {
		entry.Timestamp = r.Timestamp.UTC()
	}
	return entry
}

// MonitoringHandler handles the /monitoring routes
type MonitoringHandler struct {
	svc    MonitoringService
	replay ReplayService
	logger *zap.Logger
}

// NewMonitoringHandler creates a new MonitoringHandler
func NewMonitoringHandler(svc MonitoringService, replay ReplayService, logger *zap.Logger) *MonitoringHandler {
	return &MonitoringHandler{svc: svc, replay: replay, logger: logger}
}

// HandleList handles GET /monitoring/events
func (h *MonitoringHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	entries := h.svc.GetMonitoringEvents(r.Context(), r.URL.Query().Get("event_type"))
	if entries == nil {
		entries = []models.MonitoringEntry{}
	}
	if err := utils.WriteOK(w, entries); err != nil {
		h.logger.Error("failed to write monitoring events", zap.Error(err))
	}
}

// HandleLog handles POST /monitoring/events
func (h *MonitoringHandler) HandleLog(w http.ResponseWriter, r *http.Request) {
	var req LogMonitoringEntryRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.svc.LogMonitoringEntry(r.Context(), req.ToEntry())
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write log result", zap.Error(err))
	}
}

// HandleReplay handles POST /monitoring/replay/{messageId}
func (h *MonitoringHandler) HandleReplay(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageId")

	result, err := h.replay.Replay(r.Context(), messageID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if err := utils.WriteOK(w, result); err != nil {
		h.logger.Error("failed to write replay result", zap.Error(err))
	}
}
