package grpc_test

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"

	api "bookshare-backend/internal/api/grpc"
)

type fakeStore struct {
	mu  sync.Mutex
	err error
}

func (s *fakeStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeStore) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func startHealthServer(t *testing.T, store api.Pinger) (*api.HealthServer, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	hs := api.NewHealthServer(store, 10*time.Millisecond)
	go func() {
		_ = hs.Server().Serve(lis)
	}()
	t.Cleanup(hs.Shutdown)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return hs, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-request-id", "health-check")
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

// pollStatus is check for polling loops; a failed call reports UNKNOWN.
func pollStatus(client healthpb.HealthClient) healthpb.HealthCheckResponse_ServingStatus {
	resp, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: api.ServiceName})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN
	}
	return resp.Status
}

func TestHealthServer_StartsNotServing(t *testing.T) {
	_, client := startHealthServer(t, &fakeStore{})

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, api.ServiceName))
}

func TestHealthServer_FollowsStore(t *testing.T) {
	store := &fakeStore{}
	hs, client := startHealthServer(t, store)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, hs.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, api.ServiceName))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))

	store.fail(errors.New("connection refused"))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, hs.Check(context.Background()))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, api.ServiceName))
}

func TestHealthServer_Watch(t *testing.T) {
	store := &fakeStore{}
	hs, client := startHealthServer(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hs.Watch(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return pollStatus(client) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	store.fail(errors.New("down"))
	assert.Eventually(t, func() bool {
		return pollStatus(client) == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestHealthServer_UnknownService(t *testing.T) {
	_, client := startHealthServer(t, &fakeStore{})

	_, err := client.Check(context.Background(), &healthpb.HealthCheckRequest{Service: "nope"})
	assert.Error(t, err)
}

func TestHealthServer_NonPositiveIntervalFallsBack(t *testing.T) {
	hs := api.NewHealthServer(&fakeStore{}, -5*time.Second)
	t.Cleanup(hs.Shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hs.Watch(ctx)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
