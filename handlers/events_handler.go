package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/utils"
)

// CreateEventRequest is the body of POST /core/events
type CreateEventRequest struct {
	CoreEventID     string                `json:"coreEventId,omitempty" validate:"max=128"`
	CaseID          string                `json:"caseId" validate:"required,max=128"`
	EvidenceID      string                `json:"evidenceId" validate:"required,max=128"`
	RiskScore       *float64              `json:"riskScore" validate:"required,gte=0,lte=100"`
	ActionSuggested string                `json:"actionSuggested" validate:"required,suggested_action"`
	TxHash          *string               `json:"txHash,omitempty" validate:"omitempty,max=256"`
	Source          string                `json:"source,omitempty" validate:"max=128"`
	Metadata        *models.EventMetadata `json:"metadata,omitempty"`
}

// ToEvent converts the request into a core event
func (r CreateEventRequest) ToEvent() models.Event {
	return models.Event{
		CoreEventID:     r.CoreEventID,
		CaseID:          r.CaseID,
		EvidenceID:      r.EvidenceID,
		RiskScore:       *r.RiskScore,
		ActionSuggested: models.SuggestedAction(r.ActionSuggested),
		TxHash:          r.TxHash,
		Source:          r.Source,
		Metadata:        r.Metadata,
	}
}

// EventsHandler handles the /core routes
type EventsHandler struct {
	svc    EventService
	logger *zap.Logger
}

// NewEventsHandler creates a new EventsHandler
func NewEventsHandler(svc EventService, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{svc: svc, logger: logger}
}

// HandleCreate handles POST /core/events
func (h *EventsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result := h.svc.ProcessEvent(r.Context(), req.ToEvent())

	status := http.StatusAccepted
	if !result.OK() {
		status = http.StatusInternalServerError
	}
	if err := utils.WriteJSON(w, status, result); err != nil {
		h.logger.Error("failed to write process result", zap.Error(err))
	}
}

// HandleGet handles GET /core/events/{coreEventId}
func (h *EventsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "coreEventId")

	status := h.svc.GetEventStatus(r.Context(), id)
	if !status.Found() {
		_ = utils.WriteJSON(w, http.StatusNotFound, status)
		return
	}
	if err := utils.WriteOK(w, status); err != nil {
		h.logger.Error("failed to write event status", zap.Error(err))
	}
}

// HandleCaseStatus handles GET /core/case/{caseId}/status
func (h *EventsHandler) HandleCaseStatus(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseId")

	status, err := h.svc.GetCaseStatus(r.Context(), caseID)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}
	if err := utils.WriteOK(w, status); err != nil {
		h.logger.Error("failed to write case status", zap.Error(err))
	}
}
