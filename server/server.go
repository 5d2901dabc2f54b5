// Package server exposes model and record store health over gRPC.
package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/agmgroups/fluffy-space-garbanzo-sub000/llm"
	"github.com/agmgroups/fluffy-space-garbanzo-sub000/resilience"
)

// Health service names.
const (
	ServiceOverall = ""
	ServiceLLM     = "llm"
	ServiceStore   = "store"
)

// StoreChecker reports record store health. Implemented by *resilience.Manager.
type StoreChecker interface {
	HealthCheck(ctx context.Context) resilience.ConnectionHealth
}

// Snapshot is the most recent health refresh.
type Snapshot struct {
	LLM       llm.GatewayHealth           `json:"llm"`
	Store     resilience.ConnectionHealth `json:"store"`
	CheckedAt time.Time                   `json:"checked_at"`
}

// Server is the gRPC server for agentd.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	prober     llm.HealthProber
	store      StoreChecker
	logger     zerolog.Logger

	mu       sync.RWMutex
	snapshot Snapshot
}

// Config holds server configuration options.
type Config struct {
	Logger zerolog.Logger
}

// New creates a new gRPC server. Every service reports NOT_SERVING until the
// first Refresh.
func New(cfg Config, prober llm.HealthProber, store StoreChecker) *Server {
	s := &Server{
		health: health.NewServer(),
		prober: prober,
		store:  store,
		logger: cfg.Logger.With().Str("component", "grpc-server").Logger(),
	}

	s.grpcServer = grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.loggingInterceptor),
	)
	healthpb.RegisterHealthServer(s.grpcServer, s.health)

	// Enable reflection for debugging tools like grpcurl
	reflection.Register(s.grpcServer)

	for _, svc := range []string{ServiceOverall, ServiceLLM, ServiceStore} {
		s.health.SetServingStatus(svc, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return s
}

// Refresh probes the inference gateway and the record store and publishes
// the result to the health service. The overall service is SERVING only
// when both are healthy.
func (s *Server) Refresh(ctx context.Context) error {
	snap := Snapshot{
		LLM:       s.prober.Status(ctx),
		Store:     s.store.HealthCheck(ctx),
		CheckedAt: time.Now(),
	}

	llmUp := snap.LLM.Online && snap.LLM.OnlineCount > 0
	storeUp := snap.Store.Status == resilience.StatusConnected

	s.health.SetServingStatus(ServiceLLM, servingStatus(llmUp))
	s.health.SetServingStatus(ServiceStore, servingStatus(storeUp))
	s.health.SetServingStatus(ServiceOverall, servingStatus(llmUp && storeUp))

	s.mu.Lock()
	s.snapshot = snap
	s.mu.Unlock()

	s.logger.Debug().
		Bool("llm", llmUp).
		Int("modelsOnline", snap.LLM.OnlineCount).
		Int("modelsTotal", snap.LLM.Total).
		Str("store", string(snap.Store.Status)).
		Msg("Health refreshed")
	return ctx.Err()
}

// Snapshot returns the result of the last Refresh.
func (s *Server) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Health returns the underlying health service.
func (s *Server) Health() healthpb.HealthServer {
	return s.health
}

func servingStatus(up bool) healthpb.HealthCheckResponse_ServingStatus {
	if up {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}

// Serve starts the gRPC server on the given listener.
func (s *Server) Serve(listener net.Listener) error {
	s.logger.Info().Str("address", listener.Addr().String()).Msg("Starting gRPC server")
	return s.grpcServer.Serve(listener)
}

// ServeTCP starts the server on a TCP address.
func (s *Server) ServeTCP(address string) error {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// GracefulStop marks every service NOT_SERVING and stops the server.
func (s *Server) GracefulStop() {
	s.logger.Info().Msg("Gracefully stopping gRPC server")
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}

// loggingInterceptor logs unary RPC calls.
func (s *Server) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	duration := time.Since(start)

	if err != nil {
		s.logger.Error().
			Str("method", info.FullMethod).
			Dur("duration", duration).
			Err(err).
			Msg("RPC failed")
	} else {
		s.logger.Debug().
			Str("method", info.FullMethod).
			Dur("duration", duration).
			Msg("RPC completed")
	}

	return resp, err
}
