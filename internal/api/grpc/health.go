package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"teamnet-backend/internal/api/grpc/interceptor"
	"teamnet-backend/internal/logger"
)

// ServiceName is the health-checked service. The empty name reports the
// server as a whole.
const ServiceName = "teamnet.Backend"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	db       Pinger
	interval time.Duration
	log      logger.Logger
}

// NewHealthServer builds a gRPC server exposing grpc.health.v1 and reflection.
// Serving status follows the database ping.
func NewHealthServer(db Pinger, interval time.Duration, log logger.Logger) *HealthServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	log = logger.Module(log, "grpc")
	logging := interceptor.NewLoggingInterceptor(log)
	s := grpc.NewServer(
		grpc.UnaryInterceptor(logging.Unary()),
		grpc.StreamInterceptor(logging.Stream()),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	// Register reflection service for grpcurl
	reflection.Register(s)

	return &HealthServer{server: s, health: hs, db: db, interval: interval, log: log}
}

func (h *HealthServer) Server() *grpc.Server {
	return h.server
}

// Check pings the database once and publishes the result.
func (h *HealthServer) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	st := healthpb.HealthCheckResponse_SERVING
	if h.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(pingCtx); err != nil {
			h.log.Warn("database ping failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	h.health.SetServingStatus("", st)
	h.health.SetServingStatus(ServiceName, st)
	return st
}

// Watch re-checks on every interval until ctx is done, then marks the
// server as shutting down.
func (h *HealthServer) Watch(ctx context.Context) {
	h.Check(ctx)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.health.Shutdown()
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}
