package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad/internal/app"
	"github.com/rovshanmuradov/launchpad/internal/config"
	"github.com/rovshanmuradov/launchpad/internal/events"
	"github.com/rovshanmuradov/launchpad/internal/logger"
	"github.com/rovshanmuradov/launchpad/internal/scenario"
	"github.com/rovshanmuradov/launchpad/internal/ui"
	"github.com/rovshanmuradov/launchpad/internal/ui/component"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (YAML)")
	scenarioPath := flag.String("scenario", "", "Scenario file, overrides scenario.path")
	stepDelay := flag.Duration("step-delay", 300*time.Millisecond, "Pause between scenario steps")
	refresh := flag.Duration("refresh", 500*time.Millisecond, "Dashboard refresh interval")
	flag.Parse()

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *scenarioPath != "" {
		cfg.Scenario.Path = *scenarioPath
	}

	// stdout belongs to bubbletea; logs go to the ring buffer and the file
	logBuf, err := logger.NewLogBuffer(cfg.Journal.Size, "", zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to init log buffer: %v", err)
	}
	appLogger, syncLogs, err := logger.NewForTUI(cfg.LoggerConfig(), logBuf)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = syncLogs() }()

	svc, err := app.NewService(rootCtx, cfg, appLogger)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := svc.Shutdown(ctx); err != nil {
			appLogger.Warn("Shutdown finished with errors", zap.Error(err))
		}
	}()

	forwarder := ui.NewEventForwarder(256, appLogger)
	svc.Bus.Subscribe(events.All, forwarder)

	dashboard := ui.NewDashboard(rootCtx, svc.Snapshot, forwarder, component.NewLogPane(logBuf), *refresh)
	program := tea.NewProgram(ui.NewSafeModel(dashboard, appLogger), tea.WithAltScreen(), tea.WithContext(rootCtx))

	if cfg.Scenario.Path != "" {
		go func() {
			started := time.Now()
			err := runScenario(rootCtx, svc, cfg, *stepDelay, appLogger)
			program.Send(ui.ScenarioDoneMsg{Err: err, Duration: time.Since(started)})
		}()
	}

	appLogger.Info("Dashboard started", zap.String("scenario", cfg.Scenario.Path))
	if _, err := program.Run(); err != nil && rootCtx.Err() == nil {
		appLogger.Error("TUI application failed", zap.Error(err))
	}
}

func runScenario(ctx context.Context, svc *app.Service, cfg *config.Config, delay time.Duration, appLogger *zap.Logger) error {
	sc, err := scenario.NewLoader(appLogger).LoadFile(cfg.Scenario.Path)
	if err != nil {
		return err
	}
	_, err = scenario.NewRunner(svc.Engine, cfg.Scenario.Workers, appLogger).
		WithStepDelay(delay).
		Run(ctx, sc)
	return err
}
