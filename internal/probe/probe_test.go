package probe

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type flagChecker struct {
	down atomic.Bool
}

func (c *flagChecker) Check(context.Context) error {
	if c.down.Load() {
		return errors.New("database unreachable")
	}
	return nil
}

func startServer(t *testing.T, checker Checker) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	srv := NewServer(checker, 10*time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve returned %v", err)
		}
	})

	client, err := Dial(context.Background(), "passthrough:///bufnet", 5*time.Second,
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func waitForStatus(t *testing.T, c *Client, service string, want healthpb.HealthCheckResponse_ServingStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := c.Check(context.Background(), service)
		if err == nil && got == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %s for %q, last got %s (%v)", want, service, got, err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHealthFollowsChecker(t *testing.T) {
	t.Parallel()
	checker := &flagChecker{}
	client := startServer(t, checker)

	waitForStatus(t, client, "", healthpb.HealthCheckResponse_SERVING)
	waitForStatus(t, client, ChatService, healthpb.HealthCheckResponse_SERVING)

	checker.down.Store(true)
	waitForStatus(t, client, ChatService, healthpb.HealthCheckResponse_NOT_SERVING)

	checker.down.Store(false)
	waitForStatus(t, client, ChatService, healthpb.HealthCheckResponse_SERVING)
}

func TestUnknownServiceIsNotFound(t *testing.T) {
	t.Parallel()
	client := startServer(t, &flagChecker{})

	if _, err := client.Check(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unregistered service")
	}
}
