// Package health exposes the standard gRPC health service, driven by periodic
// pings of the statistics store.
package health

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/cory-johannsen/dicebot/internal/config"
)

// StatsService is the health service name reported for the statistics store.
// The empty service name mirrors it.
const StatsService = "dicebot.stats"

// Pinger is anything that can report its own reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves grpc.health.v1.Health and keeps its status in step with a Pinger.
type Server struct {
	cfg    config.HealthConfig
	pinger Pinger
	logger *zap.Logger

	grpc   *grpc.Server
	health *grpchealth.Server

	mu      sync.Mutex
	serving bool

	done    chan struct{}
	once    sync.Once
	pollers sync.WaitGroup
}

// NewServer creates a health Server. Both services start as NOT_SERVING
// until the first ping completes.
//
// Precondition: cfg.Interval must be positive; pinger and logger must be non-nil.
func NewServer(cfg config.HealthConfig, pinger Pinger, logger *zap.Logger) *Server {
	hs := grpchealth.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(StatsService, healthpb.HealthCheckResponse_NOT_SERVING)

	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		cfg:    cfg,
		pinger: pinger,
		logger: logger,
		grpc:   gs,
		health: hs,
		done:   make(chan struct{}),
	}
}

// Check pings the store once and updates the serving status.
//
// Postcondition: Returns the ping error; the status reflects it either way.
func (s *Server) Check(ctx context.Context) error {
	timeout := s.cfg.Interval
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.pinger.Ping(ctx)
	s.setServing(err == nil, err)
	return err
}

func (s *Server) setServing(ok bool, cause error) {
	s.mu.Lock()
	changed := s.serving != ok
	s.serving = ok
	s.mu.Unlock()

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(StatsService, status)

	switch {
	case changed && ok:
		s.logger.Info("statistics store healthy")
	case !ok:
		s.logger.Warn("statistics store health check failed", zap.Error(cause))
	}
}

// Serve pings the store every cfg.Interval and serves health RPCs on lis
// until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.pollers.Add(1)
	go func() {
		defer s.pollers.Done()
		s.poll()
	}()
	s.logger.Info("health server listening", zap.String("addr", lis.Addr().String()))
	return s.grpc.Serve(lis)
}

func (s *Server) poll() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-s.done
		cancel()
	}()

	_ = s.Check(ctx)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			_ = s.Check(ctx)
		}
	}
}

// Start listens on cfg.Addr() and serves until Stop is called.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Addr(), err)
	}
	return s.Serve(lis)
}

// Stop marks every service NOT_SERVING, stops probing, and drains in-flight RPCs.
func (s *Server) Stop() {
	s.once.Do(func() {
		close(s.done)
		s.pollers.Wait()
		s.health.Shutdown()
		s.grpc.GracefulStop()
	})
}
