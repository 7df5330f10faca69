package server

import (
	"context"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func newTestLogger() *zap.Logger {
	logger, _ := zap.NewDevelopment()
	return logger
}

type flag struct{ v atomic.Bool }

func (f *flag) IsReady() bool { return f.v.Load() }

func TestHealth_MirrorsReadiness(t *testing.T) {
	// Arrange
	ready := &flag{}
	srv := NewGRPCServer(ready, newTestLogger())
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Watch(ctx, 10*time.Millisecond)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	client := healthpb.NewHealthClient(conn)

	check := func() healthpb.HealthCheckResponse_ServingStatus {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: PredictionServiceName})
		if err != nil {
			t.Fatalf("health check failed: %v", err)
		}
		return resp.Status
	}

	// Act / Assert
	if got := check(); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING before init, got %s", got)
	}

	ready.v.Store(true)
	deadline := time.Now().Add(2 * time.Second)
	for check() != healthpb.HealthCheckResponse_SERVING {
		if time.Now().After(deadline) {
			t.Fatal("expected SERVING after readiness flipped")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHealth_WatchStreamsReadinessChanges(t *testing.T) {
	ready := &flag{}
	srv := NewGRPCServer(ready, newTestLogger())
	lis := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go srv.Watch(ctx, 10*time.Millisecond)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	stream, err := healthpb.NewHealthClient(conn).Watch(ctx, &healthpb.HealthCheckRequest{Service: PredictionServiceName})
	if err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	first, err := stream.Recv()
	if err != nil {
		t.Fatalf("recv failed: %v", err)
	}
	if first.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING first, got %s", first.Status)
	}

	ready.v.Store(true)
	for {
		resp, err := stream.Recv()
		if err != nil {
			t.Fatalf("expected a SERVING update, got %v", err)
		}
		if resp.Status == healthpb.HealthCheckResponse_SERVING {
			break
		}
	}
}
