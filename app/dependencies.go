package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/upb/case-orchestrator/config"
	"github.com/upb/case-orchestrator/internal/observability"
	"github.com/upb/case-orchestrator/internal/queue/sqs"
	"github.com/upb/case-orchestrator/internal/rules"
	"github.com/upb/case-orchestrator/repositories"
	"github.com/upb/case-orchestrator/repositories/memory"
	"github.com/upb/case-orchestrator/repositories/postgres"
	"github.com/upb/case-orchestrator/services/audit"
	"github.com/upb/case-orchestrator/services/orchestrator"
	"github.com/upb/case-orchestrator/services/reconciliation"
	"github.com/upb/case-orchestrator/services/replay"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config   *config.Config
	Logger   *zap.Logger
	Registry *prometheus.Registry
	Metrics  observability.Metrics

	// Rules
	RulesEngine *rules.Engine
	RulesLoader *rules.Loader

	// In-memory system of record
	Events     repositories.EventStore
	Ledger     repositories.WebhookLedger
	Monitoring repositories.MonitoringLog

	// Optional archive
	DB       *postgres.DB
	Archive  repositories.MonitoringArchive
	Archiver *audit.AuditService

	// Optional replay dispatch
	ReplayPublisher *sqs.Client

	// Services
	Reconciler   *reconciliation.Service
	Orchestrator *orchestrator.Orchestrator
	Replay       *replay.Dispatcher

	stopRulesWatch func()
}

// Option customizes dependency construction
type Option func(*options)

type options struct {
	verifier  reconciliation.Verifier
	publisher replay.Publisher
}

// WithVerifier overrides the blockchain verifier used for case reconciliation
func WithVerifier(v reconciliation.Verifier) Option {
	return func(o *options) { o.verifier = v }
}

// WithPublisher overrides the replay publisher built from configuration
func WithPublisher(p replay.Publisher) Option {
	return func(o *options) { o.publisher = p }
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Dependencies, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initMetrics(cfg)

	if err := deps.initRules(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize rules: %w", err)
	}

	deps.initStores()

	if err := deps.initArchive(ctx, cfg); err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to initialize archive: %w", err)
	}

	if err := deps.initReplayQueue(ctx, cfg, o.publisher); err != nil {
		deps.cleanup()
		return nil, fmt.Errorf("failed to initialize replay queue: %w", err)
	}

	deps.initServices(o)

	logger.Info("all dependencies initialized successfully",
		zap.Bool("archive_enabled", deps.Archiver != nil),
		zap.Bool("replay_dispatch_enabled", deps.Replay.Publishing()),
		zap.Bool("rules_watch", deps.stopRulesWatch != nil))
	return deps, nil
}

// initMetrics creates an isolated registry so tests can build several
// dependency graphs in one process.
func (d *Dependencies) initMetrics(cfg *config.Config) {
	d.Registry = prometheus.NewRegistry()
	if !cfg.Observability.MetricsEnabled {
		d.Metrics = observability.NopMetrics{}
		return
	}
	d.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	d.Metrics = observability.NewPrometheusMetrics(d.Registry)
}

// initRules loads thresholds from the configured file, or uses defaults
func (d *Dependencies) initRules(cfg *config.Config) error {
	if cfg.Rules.File == "" {
		d.RulesEngine = rules.NewEngine(rules.Default())
		d.Logger.Info("using default rules")
		return nil
	}

	loader, err := rules.NewLoader(cfg.Rules.File, d.Logger)
	if err != nil {
		return err
	}
	d.RulesLoader = loader
	d.RulesEngine = rules.NewEngine(loader.Rules())

	loader.OnChange(func(r rules.Rules) {
		if err := d.RulesEngine.Swap(r); err != nil {
			d.Logger.Warn("rules swap rejected", zap.Error(err))
		}
	})

	if cfg.Rules.Watch {
		stop, err := loader.Watch()
		if err != nil {
			return err
		}
		d.stopRulesWatch = stop
	}

	d.Logger.Info("rules loaded from file",
		zap.String("path", cfg.Rules.File),
		zap.Bool("watch", cfg.Rules.Watch))
	return nil
}

// initStores creates the process-lifetime stores
func (d *Dependencies) initStores() {
	d.Events = memory.NewEventStore()
	d.Ledger = memory.NewWebhookLedger()
	d.Monitoring = memory.NewMonitoringLog()
}

// initArchive connects the optional PostgreSQL archive and starts the archiver
func (d *Dependencies) initArchive(ctx context.Context, cfg *config.Config) error {
	if cfg.Archive == nil {
		d.Logger.Info("monitoring archive not configured, keeping entries in memory only")
		return nil
	}

	db, err := postgres.NewDB(*cfg.Archive, d.Logger)
	if err != nil {
		return err
	}
	d.DB = db

	if err := db.HealthCheck(ctx); err != nil {
		return err
	}
	if err := db.InitSchema(ctx); err != nil {
		return err
	}

	d.Archive = postgres.NewMonitoringArchiveRepository(db, d.Logger)
	d.Archiver = audit.NewAuditService(d.Archive, d.Logger, d.Metrics, audit.Config{
		BufferSize:  cfg.Archive.BufferSize,
		WorkerCount: cfg.Archive.WorkerCount,
	})
	if err := d.Archiver.Start(); err != nil {
		return err
	}

	d.Logger.Info("monitoring archive connected",
		zap.String("connection", cfg.Archive.LogString()))
	return nil
}

// initReplayQueue builds the SQS publisher when a queue is configured
func (d *Dependencies) initReplayQueue(ctx context.Context, cfg *config.Config, override replay.Publisher) error {
	if override != nil || cfg.ReplayQueue == nil {
		return nil
	}

	client, err := sqs.NewClient(ctx, *cfg.ReplayQueue, d.Logger)
	if err != nil {
		return err
	}
	d.ReplayPublisher = client
	return nil
}

// initServices wires the orchestrator and its collaborators
func (d *Dependencies) initServices(o options) {
	d.Reconciler = reconciliation.NewService(o.verifier, d.Logger)

	orchOpts := []orchestrator.Option{orchestrator.WithMetrics(d.Metrics)}
	if d.Archiver != nil {
		orchOpts = append(orchOpts, orchestrator.WithMonitoringSink(d.Archiver))
	}
	d.Orchestrator = orchestrator.New(
		d.Events,
		d.Ledger,
		d.Monitoring,
		d.RulesEngine,
		d.Reconciler,
		d.Logger,
		orchOpts...,
	)

	var publisher replay.Publisher
	switch {
	case o.publisher != nil:
		publisher = o.publisher
	case d.ReplayPublisher != nil:
		publisher = d.ReplayPublisher
	}
	d.Replay = replay.NewDispatcher(d.Orchestrator, publisher, d.Metrics, d.Logger)
}

// HealthChecker returns the archive database checker, or nil when the
// archive is disabled.
func (d *Dependencies) HealthChecker() interface {
	HealthCheck(ctx context.Context) error
} {
	if d.DB == nil {
		return nil
	}
	return d.DB
}

// cleanup releases resources acquired by a partially completed init
func (d *Dependencies) cleanup() {
	if d.stopRulesWatch != nil {
		d.stopRulesWatch()
	}
	if d.Archiver != nil {
		_ = d.Archiver.Stop(time.Second)
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopRulesWatch != nil {
		d.stopRulesWatch()
	}

	// Drain the archiver before closing the database it writes to.
	if d.Archiver != nil {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Archiver.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop archiver: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}

	return nil
}
