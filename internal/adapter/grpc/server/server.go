package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/seu-repo/voz-visible/internal/adapter/grpc/interceptors"
)

// PredictionServiceName is the health service name that mirrors
// orchestrator readiness. The empty name reports the same status.
const PredictionServiceName = "vozvisible.Prediction"

// Readiness is the orchestrator view mirrored into grpc health.
type Readiness interface {
	IsReady() bool
}

type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	ready  Readiness
	log    *zap.Logger
}

func NewGRPCServer(ready Readiness, log *zap.Logger) *GRPCServer {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptors.UnaryLoggingInterceptor(log),
			interceptors.UnaryMetricsInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			interceptors.StreamLoggingInterceptor(log),
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	// Enable reflection for debugging (e.g. grpcurl)
	reflection.Register(s)

	g := &GRPCServer{
		server: s,
		health: hs,
		ready:  ready,
		log:    log,
	}
	g.sync()
	return g
}

// Watch mirrors readiness into the health server every interval until ctx
// is done.
func (s *GRPCServer) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sync()
		}
	}
}

func (s *GRPCServer) sync() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.ready.IsReady() {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(PredictionServiceName, status)
}

func (s *GRPCServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
