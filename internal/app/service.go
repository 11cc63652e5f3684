// Package app wires configuration into a running engine with its stores,
// event sinks and journal.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/curve"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/export"
	"github.com/rovshanmuradov/launchpad/internal/journal"
	"github.com/rovshanmuradov/launchpad/internal/launchpad"
	"github.com/rovshanmuradov/launchpad/internal/metrics"
	"github.com/rovshanmuradov/launchpad/internal/monitor"
	"github.com/rovshanmuradov/launchpad/internal/pool"
	"github.com/rovshanmuradov/launchpad/internal/report"
	"github.com/rovshanmuradov/launchpad/internal/sale"
	"github.com/rovshanmuradov/launchpad/internal/scenario"
	"github.com/rovshanmuradov/launchpad/internal/storage"
	"github.com/rovshanmuradov/launchpad/internal/storage/memory"
	"github.com/rovshanmuradov/launchpad/internal/storage/postgres"
)

// Service holds the wired components.
type Service struct {
	Config  *config.Config
	Engine  *launchpad.Engine
	Bus     *events.Bus
	Journal *journal.Journal
	// Alerts is nil when the monitor is disabled.
	Alerts *monitor.AlertManager
	// Metrics is nil when disabled.
	Metrics *metrics.Collector
	Store   storage.Storage

	logger   *zap.Logger
	shutdown *ShutdownHandler
}

// NewService builds everything cfg describes. On error, whatever was
// already opened is closed.
func NewService(ctx context.Context, cfg *config.Config, logger *zap.Logger) (_ *Service, err error) {
	logger = logger.Named("app")
	svc := &Service{Config: cfg, logger: logger, shutdown: NewShutdownHandler(logger)}
	defer func() {
		if err != nil {
			_ = svc.shutdown.Shutdown(context.Background())
		}
	}()

	cc, err := cfg.CurveConfig()
	if err != nil {
		return nil, err
	}
	c, err := curve.New(cc)
	if err != nil {
		return nil, fmt.Errorf("curve: %w", err)
	}
	sc, err := cfg.SaleConfig()
	if err != nil {
		return nil, err
	}
	book, err := sale.NewBook(sc, c)
	if err != nil {
		return nil, fmt.Errorf("sale: %w", err)
	}
	pools, err := pool.NewManager(cfg.PoolConfig())
	if err != nil {
		return nil, fmt.Errorf("pool: %w", err)
	}

	if svc.Store, err = svc.openStore(ctx); err != nil {
		return nil, err
	}

	svc.Journal, err = journal.New(cfg.Journal.Size, cfg.Journal.CSVPath, cfg.Journal.FlushInterval, logger)
	if err != nil {
		return nil, fmt.Errorf("journal: %w", err)
	}
	svc.shutdown.AddCloser("journal", svc.Journal.Close)

	var pub *events.RedisPublisher
	if cfg.Redis.Enabled {
		if pub, err = events.NewRedisPublisher(ctx, cfg.RedisConfig(), logger); err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		svc.shutdown.AddCloser("redis", pub.Close)
	}

	// registered last so it drains into the sinks before they close
	svc.Bus = events.NewBus(logger, cfg.Events.BufferSize)
	svc.shutdown.Add("event_bus", svc.Bus.Shutdown)
	svc.Bus.Subscribe(events.All, svc.Journal)
	if cfg.Monitor.Enabled {
		ac, err := cfg.AlertConfig()
		if err != nil {
			return nil, err
		}
		svc.Alerts = monitor.NewAlertManager(ac, cfg.Monitor.MaxAlerts, logger)
		svc.Bus.Subscribe(events.All, svc.Alerts)
	}
	if cfg.Metrics.Enabled {
		svc.Metrics = metrics.NewCollector(logger)
		svc.Bus.Subscribe(events.All, svc.Metrics)
		if cfg.Metrics.Addr != "" {
			svc.shutdown.Add("metrics_http", svc.Metrics.Serve(cfg.Metrics.Addr))
		}
	}
	if pub != nil {
		svc.Bus.Subscribe(events.All, pub)
	}

	svc.Engine = launchpad.New(svc.Store, book, pools, svc.Bus, logger, cfg.EngineOptions())

	logger.Info("Service initialized",
		zap.String("storage", cfg.Storage.Driver),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.String("journal_csv", cfg.Journal.CSVPath))
	return svc, nil
}

func (s *Service) openStore(ctx context.Context) (storage.Storage, error) {
	switch s.Config.Storage.Driver {
	case "postgres":
		pgPool, err := postgres.Connect(ctx, s.Config.PostgresConfig(), s.logger)
		if err != nil {
			return nil, err
		}
		s.shutdown.AddCloser("postgres", func() error { pgPool.Close(); return nil })
		if err := postgres.RunMigrations(ctx, pgPool, s.logger); err != nil {
			return nil, err
		}
		return postgres.NewStorage(pgPool, s.logger), nil
	default:
		return memory.New(), nil
	}
}

// RunScenario loads path and runs it with the configured worker limit.
func (s *Service) RunScenario(ctx context.Context, path string) (*scenario.Result, error) {
	sc, err := scenario.NewLoader(s.logger).LoadFile(path)
	if err != nil {
		return nil, err
	}
	return scenario.NewRunner(s.Engine, s.Config.Scenario.Workers, s.logger).Run(ctx, sc)
}

const snapshotAlerts = 5

// Snapshot collects the current state for reports and the dashboard.
func (s *Service) Snapshot(ctx context.Context) (*report.Snapshot, error) {
	snap, err := report.Collect(ctx, s.Engine, s.Journal)
	if err != nil {
		return nil, err
	}
	if s.Alerts != nil {
		snap.Alerts = s.Alerts.Recent(snapshotAlerts)
	}
	return snap, nil
}

// Export writes the journal and the per-listing breakdown into dir and
// returns both paths.
func (s *Service) Export(dir string) ([]string, error) {
	entries := s.Journal.Recent(0)
	ex := export.NewExporter(s.logger)
	eventsPath, err := ex.Export(entries, export.Options{
		Format:    export.Format(s.Config.Export.Format),
		OutputDir: dir,
	})
	if err != nil {
		return nil, err
	}
	listings, err := ex.ExportListingReport(entries, dir)
	if err != nil {
		return []string{eventsPath}, err
	}
	return []string{eventsPath, listings}, nil
}

// Shutdown drains the bus and closes sinks and stores.
func (s *Service) Shutdown(ctx context.Context) error {
	return s.shutdown.Shutdown(ctx)
}
