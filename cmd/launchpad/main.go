package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/app"
	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/logger"
	"github.com/rovshanmuradov/launchpad/internal/report"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML)")
	scenarioPath := flag.String("scenario", "", "Scenario file, overrides scenario.path")
	exportDir := flag.String("export-dir", "", "Export the event journal into this directory")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *scenarioPath != "" {
		cfg.Scenario.Path = *scenarioPath
	}
	if *exportDir != "" {
		cfg.Export.Dir = *exportDir
	}
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = *metricsAddr
	}
	if cfg.Scenario.Path == "" {
		log.Fatal("No scenario given: pass -scenario or set scenario.path")
	}

	appLogger, syncLogs, err := logger.New(cfg.LoggerConfig())
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = syncLogs() }()

	if err := run(cfg, appLogger); err != nil {
		appLogger.Error("Run failed", zap.Error(err))
		_ = syncLogs()
		os.Exit(1)
	}
}

func run(cfg *config.Config, appLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.NewService(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	shutdown := func() error {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return svc.Shutdown(sctx)
	}

	result, runErr := svc.RunScenario(ctx, cfg.Scenario.Path)
	if result != nil {
		appLogger.Info("Scenario finished",
			zap.String("scenario", result.Scenario),
			zap.Int("listings", len(result.Outcomes)),
			zap.Duration("elapsed", result.Duration))
	}

	// the journal is fed asynchronously; drain before reading it
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := svc.Bus.Shutdown(drainCtx); err != nil {
		appLogger.Warn("Event bus did not drain", zap.Error(err))
	}

	if snap, err := svc.Snapshot(drainCtx); err != nil {
		appLogger.Error("Failed to collect report", zap.Error(err))
	} else {
		fmt.Println(report.Render(snap))
	}

	if cfg.Export.Dir != "" {
		paths, err := svc.Export(cfg.Export.Dir)
		if err != nil {
			appLogger.Error("Export failed", zap.Error(err))
		}
		for _, p := range paths {
			fmt.Println("exported", p)
		}
	}

	if err := shutdown(); err != nil {
		appLogger.Warn("Shutdown finished with errors", zap.Error(err))
	}
	return runErr
}
