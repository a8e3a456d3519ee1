// Package observability provides structured logging and metrics for the
// case orchestrator.
//
// This package implements:
//   - zap logger construction per environment
//   - Prometheus collectors for ingestion, callbacks and replays
package observability
