package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/middleware"
	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/utils"
)

// CallbacksHandler handles the /callbacks routes
type CallbacksHandler struct {
	svc    CallbackService
	logger *zap.Logger
}

// NewCallbacksHandler creates a new CallbacksHandler
func NewCallbacksHandler(svc CallbackService, logger *zap.Logger) *CallbacksHandler {
	return &CallbacksHandler{svc: svc, logger: logger}
}

// HandleCallback handles POST /callbacks/{callbackType}. The payload shape
// is checked here and then stored byte for byte.
func (h *CallbacksHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	callbackType := middleware.GetCallbackTypeFromContext(r.Context())
	if callbackType == "" {
		_ = utils.WriteBadRequest(w, "callback type is required", nil)
		return
	}

	body, err := utils.ReadBody(w, r)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	var payload models.CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}
	if err := utils.ValidateStruct(payload); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result := h.svc.HandleWebhookCallback(r.Context(), callbackType, json.RawMessage(body))

	status := http.StatusOK
	if !result.OK() {
		status = http.StatusInternalServerError
	}
	if err := utils.WriteJSON(w, status, result); err != nil {
		h.logger.Error("failed to write callback result", zap.Error(err))
	}
}
