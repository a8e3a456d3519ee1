package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/utils"
)

const (
	defaultArchiveLimit = 100
	maxArchiveLimit     = 1000
)

// ArchiveHandler serves reads from the PostgreSQL monitoring archive
type ArchiveHandler struct {
	archive ArchiveReader
	logger  *zap.Logger
}

// NewArchiveHandler creates a new ArchiveHandler. archive may be nil when
// no archive is configured.
func NewArchiveHandler(archive ArchiveReader, logger *zap.Logger) *ArchiveHandler {
	return &ArchiveHandler{archive: archive, logger: logger}
}

// HandleList handles GET /monitoring/archive
func (h *ArchiveHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		_ = utils.WriteError(w, http.StatusServiceUnavailable, "monitoring archive not configured", nil)
		return
	}

	query := r.URL.Query()
	limit, err := queryInt(query.Get("limit"), defaultArchiveLimit)
	if err != nil || limit < 1 || limit > maxArchiveLimit {
		_ = utils.WriteBadRequest(w, "Validation failed", map[string]interface{}{
			"limit": "limit must be between 1 and " + strconv.Itoa(maxArchiveLimit),
		})
		return
	}
	offset, err := queryInt(query.Get("offset"), 0)
	if err != nil || offset < 0 {
		_ = utils.WriteBadRequest(w, "Validation failed", map[string]interface{}{
			"offset": "offset must be a non-negative integer",
		})
		return
	}

	entries, err := h.archive.ListByEventType(r.Context(), query.Get("event_type"), limit, offset)
	if err != nil {
		h.logger.Error("failed to read monitoring archive", zap.Error(err))
		_ = utils.WriteInternalServerError(w, "failed to read monitoring archive")
		return
	}
	if entries == nil {
		entries = []*models.MonitoringEntry{}
	}
	if err := utils.WriteOK(w, entries); err != nil {
		h.logger.Error("failed to write archived entries", zap.Error(err))
	}
}

func queryInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
