package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/services/audit"
	"github.com/upb/case-orchestrator/services/orchestrator"
	"github.com/upb/case-orchestrator/utils"
)

// Component check values
const (
	checkHealthy       = "healthy"
	checkUnhealthy     = "unhealthy"
	checkNotConfigured = "not_configured"
	checkStopped       = "stopped"
)

// StatsProvider reports store sizes
type StatsProvider interface {
	Stats() orchestrator.Stats
}

// HealthChecker probes an external dependency
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ArchiverStats reports archive worker state
type ArchiverStats interface {
	GetStats() audit.Stats
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	orchestrator.Stats
	Archive *audit.Stats `json:"archive,omitempty"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	stats    StatsProvider
	db       HealthChecker
	archiver ArchiverStats
	version  string
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. db and archiver may be nil
// when the archive is not configured.
func NewHealthHandler(stats StatsProvider, db HealthChecker, archiver ArchiverStats, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		stats:    stats,
		db:       db,
		archiver: archiver,
		version:  version,
		logger:   logger,
	}
}

// HandleHealth handles GET /healthz
// Liveness only: returns 200 whenever the process is serving.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:    checkHealthy,
		Service:   "case-orchestrator",
		Version:   h.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Stats:     h.stats.Stats(),
	}

	_ = utils.WriteOK(w, response)
}

// HandleReadiness handles GET /readyz
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"stores": checkHealthy}
	allHealthy := true

	switch {
	case h.db == nil:
		checks["archive_database"] = checkNotConfigured
	default:
		if err := h.db.HealthCheck(ctx); err != nil {
			h.logger.Warn("archive database health check failed", zap.Error(err))
			checks["archive_database"] = checkUnhealthy
			allHealthy = false
		} else {
			checks["archive_database"] = checkHealthy
		}
	}

	var archive *audit.Stats
	if h.archiver != nil {
		s := h.archiver.GetStats()
		archive = &s
		if s.Started {
			checks["archiver"] = checkHealthy
		} else {
			checks["archiver"] = checkStopped
			allHealthy = false
		}
	}

	status := checkHealthy
	httpStatus := http.StatusOK
	if !allHealthy {
		status = checkUnhealthy
		httpStatus = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:    status,
		Service:   "case-orchestrator",
		Version:   h.version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Stats:     h.stats.Stats(),
		Archive:   archive,
	}

	if err := utils.WriteJSON(w, httpStatus, response); err != nil {
		h.logger.Error("failed to write readiness response", zap.Error(err))
	}
}
