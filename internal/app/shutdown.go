package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// CloseFunc is one shutdown step. It should honor ctx where it can.
type CloseFunc func(ctx context.Context) error

type namedCloser struct {
	name  string
	close CloseFunc
}

// ShutdownHandler closes registered services in reverse order. Order
// matters here: the bus must drain into the journal before the journal
// file closes.
type ShutdownHandler struct {
	mu       sync.Mutex
	services []namedCloser
	logger   *zap.Logger
	done     bool
}

func NewShutdownHandler(logger *zap.Logger) *ShutdownHandler {
	return &ShutdownHandler{logger: logger}
}

// Add registers a service for shutdown.
func (sh *ShutdownHandler) Add(name string, fn CloseFunc) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.services = append(sh.services, namedCloser{name: name, close: fn})
	sh.logger.Debug("Registered service for shutdown", zap.String("service", name))
}

// AddCloser registers a plain Close method.
func (sh *ShutdownHandler) AddCloser(name string, fn func() error) {
	sh.Add(name, func(context.Context) error { return fn() })
}

// Shutdown runs every step once, LIFO, and joins their errors. A step that
// outlives ctx is abandoned and reported as a timeout.
func (sh *ShutdownHandler) Shutdown(ctx context.Context) error {
	sh.mu.Lock()
	if sh.done {
		sh.mu.Unlock()
		return nil
	}
	sh.done = true
	services := make([]namedCloser, len(sh.services))
	copy(services, sh.services)
	sh.mu.Unlock()

	sh.logger.Info("Starting graceful shutdown", zap.Int("services", len(services)))

	var errs []error
	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		done := make(chan error, 1)
		go func() { done <- svc.close(ctx) }()

		select {
		case err := <-done:
			if err != nil {
				sh.logger.Error("Failed to shutdown service", zap.String("service", svc.name), zap.Error(err))
				errs = append(errs, fmt.Errorf("%s: %w", svc.name, err))
				continue
			}
			sh.logger.Debug("Service shutdown complete", zap.String("service", svc.name))
		case <-ctx.Done():
			sh.logger.Error("Shutdown timeout for service", zap.String("service", svc.name))
			errs = append(errs, fmt.Errorf("%s: shutdown timeout", svc.name))
		}
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	sh.logger.Info("Graceful shutdown completed successfully")
	return nil
}
