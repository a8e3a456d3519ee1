// Package audit ships monitoring entries to the durable archive in the
// background so ingestion never waits on the database.
package audit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/internal/observability"
	"github.com/upb/case-orchestrator/models"
	"github.com/upb/case-orchestrator/repositories"
)

// ErrBufferFull is returned by LogEvent when the queue cannot take more entries
var ErrBufferFull = fmt.Errorf("audit buffer full")

// AuditService archives monitoring entries asynchronously
type AuditService struct {
	archive     repositories.MonitoringArchive
	logger      *zap.Logger
	metrics     observability.Metrics
	entries     chan models.MonitoringEntry
	workerCount int
	bufferSize  int
	timeout     time.Duration
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc

	// mu guards started/stopped and the channel close; senders hold RLock.
	mu      sync.RWMutex
	started bool
	stopped bool

	archived atomic.Int64
	dropped  atomic.Int64
	failed   atomic.Int64
}

// Config holds configuration for the AuditService
type Config struct {
	BufferSize   int           // Size of the entry buffer channel
	WorkerCount  int           // Number of concurrent workers
	WriteTimeout time.Duration // Per-insert deadline
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:   1000,
		WorkerCount:  2,
		WriteTimeout: 5 * time.Second,
	}
}

// NewAuditService creates a new AuditService instance
func NewAuditService(archive repositories.MonitoringArchive, logger *zap.Logger, metrics observability.Metrics, config Config) *AuditService {
	ctx, cancel := context.WithCancel(context.Background())
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultConfig().WriteTimeout
	}

	return &AuditService{
		archive:     archive,
		logger:      logger,
		metrics:     metrics,
		entries:     make(chan models.MonitoringEntry, config.BufferSize),
		workerCount: config.WorkerCount,
		bufferSize:  config.BufferSize,
		timeout:     config.WriteTimeout,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the background workers
func (s *AuditService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return fmt.Errorf("audit service already started")
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.started = true
	s.logger.Info("started audit service",
		zap.Int("worker_count", s.workerCount),
		zap.Int("buffer_size", s.bufferSize))

	return nil
}

// Stop stops accepting entries and waits for queued ones to be archived
func (s *AuditService) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.started || s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("audit service not running")
	}
	s.stopped = true
	pending := len(s.entries)
	close(s.entries)
	s.mu.Unlock()

	s.logger.Info("stopping audit service", zap.Int("pending_entries", pending))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("audit service stopped gracefully")
		s.cancel()
		return nil
	case <-time.After(timeout):
		s.cancel()
		return fmt.Errorf("audit service stop timeout after %v", timeout)
	}
}

// LogEvent queues an entry without blocking. A full buffer drops the entry
func (s *AuditService) LogEvent(entry models.MonitoringEntry) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.started || s.stopped {
		return fmt.Errorf("audit service not running")
	}

	select {
	case s.entries <- entry:
		return nil
	default:
		s.dropped.Add(1)
		s.metrics.RecordArchiveDropped()
		s.logger.Warn("audit buffer full, dropping monitoring entry",
			zap.String("id", entry.ID),
			zap.String("event_type", entry.EventType))
		return ErrBufferFull
	}
}

func (s *AuditService) worker(id int) {
	defer s.wg.Done()

	s.logger.Debug("audit worker started", zap.Int("worker_id", id))

	for entry := range s.entries {
		if err := s.archiveEntry(entry); err != nil {
			s.failed.Add(1)
			s.logger.Error("failed to archive monitoring entry",
				zap.Int("worker_id", id),
				zap.Error(err),
				zap.String("id", entry.ID),
				zap.String("event_type", entry.EventType))
			continue
		}
		s.archived.Add(1)
	}

	s.logger.Debug("audit worker stopped", zap.Int("worker_id", id))
}

func (s *AuditService) archiveEntry(entry models.MonitoringEntry) error {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	if err := s.archive.Insert(ctx, &entry); err != nil {
		return fmt.Errorf("failed to archive monitoring entry: %w", err)
	}
	return nil
}

// GetStats returns statistics about the audit service
func (s *AuditService) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		BufferSize:     s.bufferSize,
		PendingEntries: len(s.entries),
		WorkerCount:    s.workerCount,
		Started:        s.started && !s.stopped,
		Archived:       s.archived.Load(),
		Dropped:        s.dropped.Load(),
		Failed:         s.failed.Load(),
	}
}

// Stats represents audit service statistics
type Stats struct {
	BufferSize     int   `json:"bufferSize"`
	PendingEntries int   `json:"pendingEntries"`
	WorkerCount    int   `json:"workerCount"`
	Started        bool  `json:"started"`
	Archived       int64 `json:"archived"`
	Dropped        int64 `json:"dropped"`
	Failed         int64 `json:"failed"`
}
