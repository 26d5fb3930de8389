// Package server provides application lifecycle management including
// graceful startup and shutdown with signal handling.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultShutdownTimeout bounds how long a single service may take to stop.
const DefaultShutdownTimeout = 10 * time.Second

// Service represents a long-running component that can be started and stopped.
type Service interface {
	// Start begins the service. It should block until the service is stopped
	// or an error occurs.
	Start() error
	// Stop gracefully stops the service.
	Stop()
}

// Option configures a Lifecycle.
type Option func(*Lifecycle)

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(l *Lifecycle) { l.shutdownTimeout = d }
}

// withSignals overrides the signals that trigger shutdown. Passing none
// disables signal handling.
func withSignals(sigs ...os.Signal) Option {
	return func(l *Lifecycle) { l.signals = sigs }
}

// Lifecycle manages the startup and shutdown of multiple services.
// Services are started concurrently and stopped in reverse registration
// order; cleanups run after every service has stopped.
type Lifecycle struct {
	logger          *zap.Logger
	shutdownTimeout time.Duration
	signals         []os.Signal

	mu       sync.Mutex
	services []namedService
	cleanups []namedCleanup
}

type namedService struct {
	name    string
	service Service
}

type namedCleanup struct {
	name string
	fn   func()
}

// NewLifecycle creates a new Lifecycle manager that shuts down on SIGINT or SIGTERM.
//
// Precondition: logger must be non-nil.
func NewLifecycle(logger *zap.Logger, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		logger:          logger,
		shutdownTimeout: DefaultShutdownTimeout,
		signals:         []os.Signal{syscall.SIGINT, syscall.SIGTERM},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Add registers a named service for lifecycle management.
//
// Precondition: name must be non-empty; svc must be non-nil.
func (l *Lifecycle) Add(name string, svc Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.services = append(l.services, namedService{name: name, service: svc})
}

// AddCleanup registers fn to run once all services have stopped. Cleanups
// run in reverse registration order.
func (l *Lifecycle) AddCleanup(name string, fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cleanups = append(l.cleanups, namedCleanup{name: name, fn: fn})
}

// Run starts all services and blocks until a termination signal, a service
// failure, or ctx cancellation. Services that return nil from Start on their
// own do not trigger shutdown.
//
// Postcondition: All services are stopped and cleanups have run when this
// method returns. The error combines every service failure observed.
func (l *Lifecycle) Run(ctx context.Context) error {
	start := time.Now()

	l.mu.Lock()
	services := append([]namedService(nil), l.services...)
	cleanups := append([]namedCleanup(nil), l.cleanups...)
	l.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(services))
	for _, ns := range services {
		go func() {
			l.logger.Info("starting service", zap.String("service", ns.name))
			svcStart := time.Now()
			if err := ns.service.Start(); err != nil {
				l.logger.Error("service failed",
					zap.String("service", ns.name),
					zap.Error(err),
					zap.Duration("uptime", time.Since(svcStart)),
				)
				errCh <- fmt.Errorf("service %s: %w", ns.name, err)
				cancel()
			}
		}()
	}

	l.logger.Info("all services started",
		zap.Int("count", len(services)),
		zap.Duration("startup", time.Since(start)),
	)

	sigCh := make(chan os.Signal, 1)
	if len(l.signals) > 0 {
		signal.Notify(sigCh, l.signals...)
		defer signal.Stop(sigCh)
	}

	select {
	case sig := <-sigCh:
		l.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		l.logger.Info("context cancelled, shutting down")
	}

	l.shutdown(services, cleanups)

	var errs error
drain:
	for {
		select {
		case err := <-errCh:
			errs = multierr.Append(errs, err)
		default:
			break drain
		}
	}

	l.logger.Info("shutdown complete", zap.Duration("total_uptime", time.Since(start)))
	return errs
}

func (l *Lifecycle) shutdown(services []namedService, cleanups []namedCleanup) {
	shutdownStart := time.Now()
	for i := len(services) - 1; i >= 0; i-- {
		l.stopService(services[i])
	}
	for i := len(cleanups) - 1; i >= 0; i-- {
		c := cleanups[i]
		c.fn()
		l.logger.Debug("cleanup complete", zap.String("cleanup", c.name))
	}
	l.logger.Info("all services stopped",
		zap.Duration("shutdown_elapsed", time.Since(shutdownStart)),
	)
}

// stopService calls Stop and waits at most shutdownTimeout for it to return.
func (l *Lifecycle) stopService(ns namedService) {
	svcStart := time.Now()
	l.logger.Info("stopping service", zap.String("service", ns.name))

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ns.service.Stop()
	}()

	select {
	case <-stopped:
		l.logger.Info("service stopped",
			zap.String("service", ns.name),
			zap.Duration("elapsed", time.Since(svcStart)),
		)
	case <-time.After(l.shutdownTimeout):
		l.logger.Warn("service did not stop in time",
			zap.String("service", ns.name),
			zap.Duration("timeout", l.shutdownTimeout),
		)
	}
}
