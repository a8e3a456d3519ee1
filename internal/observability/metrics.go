package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects orchestration metrics
type Metrics interface {
	RecordEvent(status string, duration time.Duration)
	RecordAction(action string)
	RecordAlert(alertType string)
	RecordCallback(callbackType, status string)
	RecordReplay(outcome string)
	RecordMonitoringEntry()
	RecordArchiveDropped()
	RecordReplayPublish(status string)
}

// PrometheusMetrics implements Metrics with Prometheus collectors
type PrometheusMetrics struct {
	eventsProcessed    *prometheus.CounterVec
	processingDuration prometheus.Histogram
	actionsTriggered   *prometheus.CounterVec
	crossCaseAlerts    *prometheus.CounterVec
	callbacksReceived  *prometheus.CounterVec
	replays            *prometheus.CounterVec
	monitoringEntries  prometheus.Counter
	archiveDropped     prometheus.Counter
	replayPublish      *prometheus.CounterVec
}

// NewPrometheusMetrics registers the collectors on reg
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	f := promauto.With(reg)
	return &PrometheusMetrics{
		eventsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caseorch_events_processed_total",
			Help: "Total number of case events processed, labelled by result status.",
		}, []string{"status"}),
		processingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "caseorch_event_processing_duration_seconds",
			Help:    "Event ingestion latency from store to monitoring entry.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		actionsTriggered: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caseorch_actions_triggered_total",
			Help: "Total number of orchestration actions triggered, labelled by action.",
		}, []string{"action"}),
		crossCaseAlerts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caseorch_cross_case_alerts_total",
			Help: "Total number of cross-case alerts emitted, labelled by alert type.",
		}, []string{"type"}),
		callbacksReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caseorch_callbacks_received_total",
			Help: "Total number of webhook callbacks handled, labelled by type and status.",
		}, []string{"callback_type", "status"}),
		replays: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caseorch_replays_total",
			Help: "Total number of replay requests, labelled by outcome.",
		}, []string{"outcome"}),
		monitoringEntries: f.NewCounter(prometheus.CounterOpts{
			Name: "caseorch_monitoring_entries_total",
			Help: "Total number of monitoring entries appended.",
		}),
		archiveDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "caseorch_archive_dropped_total",
			Help: "Monitoring entries not archived because the archive buffer was full.",
		}),
		replayPublish: f.NewCounterVec(prometheus.CounterOpts{
			Name: "caseorch_replay_publish_total",
			Help: "Replay dispatch attempts to the outbound queue, labelled by status.",
		}, []string{"status"}),
	}
}

func (m *PrometheusMetrics) RecordEvent(status string, duration time.Duration) {
	m.eventsProcessed.WithLabelValues(status).Inc()
	m.processingDuration.Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordAction(action string) {
	m.actionsTriggered.WithLabelValues(action).Inc()
}

func (m *PrometheusMetrics) RecordAlert(alertType string) {
	m.crossCaseAlerts.WithLabelValues(alertType).Inc()
}

func (m *PrometheusMetrics) RecordCallback(callbackType, status string) {
	m.callbacksReceived.WithLabelValues(callbackType, status).Inc()
}

func (m *PrometheusMetrics) RecordReplay(outcome string) {
	m.replays.WithLabelValues(outcome).Inc()
}

func (m *PrometheusMetrics) RecordMonitoringEntry() {
	m.monitoringEntries.Inc()
}

func (m *PrometheusMetrics) RecordArchiveDropped() {
	m.archiveDropped.Inc()
}

func (m *PrometheusMetrics) RecordReplayPublish(status string) {
	m.replayPublish.WithLabelValues(status).Inc()
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) RecordEvent(string, time.Duration) {}
func (NopMetrics) RecordAction(string)               {}
func (NopMetrics) RecordAlert(string)                {}
func (NopMetrics) RecordCallback(string, string)     {}
func (NopMetrics) RecordReplay(string)               {}
func (NopMetrics) RecordMonitoringEntry()            {}
func (NopMetrics) RecordArchiveDropped()             {}
func (NopMetrics) RecordReplayPublish(string)        {}
