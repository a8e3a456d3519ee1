package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/upb/case-orchestrator/app"
	"github.com/upb/case-orchestrator/handlers"
	"github.com/upb/case-orchestrator/middleware"
	"github.com/upb/case-orchestrator/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies, version string) http.Handler {
	r := chi.NewRouter()

	requestTimeout := deps.Config.Server.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	// Core middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Config.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	var archiver handlers.ArchiverStats
	if deps.Archiver != nil {
		archiver = deps.Archiver
	}
	var archive handlers.ArchiveReader
	if deps.Archive != nil {
		archive = deps.Archive
	}
	health := handlers.NewHealthHandler(deps.Orchestrator, deps.HealthChecker(), archiver, version, deps.Logger)
	events := handlers.NewEventsHandler(deps.Orchestrator, deps.Logger)
	callbacks := handlers.NewCallbacksHandler(deps.Orchestrator, deps.Logger)
	monitoring := handlers.NewMonitoringHandler(deps.Orchestrator, deps.Replay, deps.Logger)
	archived := handlers.NewArchiveHandler(archive, deps.Logger)

	// Health check endpoints
	r.Get("/healthz", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	if deps.Config.Observability.MetricsEnabled {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	// Core event ingestion and status
	r.Route("/core", func(r chi.Router) {
		r.Post("/events", events.HandleCreate)
		r.Get("/events/{coreEventId}", events.HandleGet)
		r.Get("/case/{caseId}/status", events.HandleCaseStatus)
	})

	// Downstream outcome callbacks
	r.Route("/callbacks", func(r chi.Router) {
		r.With(middleware.ValidateCallbackType(deps.Logger)).
			Post("/{"+middleware.CallbackTypeParam+"}", callbacks.HandleCallback)
	})

	// Monitoring log and replay
	r.Route("/monitoring", func(r chi.Router) {
		r.Get("/events", monitoring.HandleList)
		r.Post("/events", monitoring.HandleLog)
		r.Post("/replay/{messageId}", monitoring.HandleReplay)
		r.Get("/archive", archived.HandleList)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}
