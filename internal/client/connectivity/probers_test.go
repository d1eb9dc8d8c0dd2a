package connectivity

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/lifekeeper/internal/client/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func TestHTTPProber(t *testing.T) {
	var down atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/health/" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	c, err := client.NewHTTPClient(client.Options{BaseURL: srv.URL + "/api", Timeout: time.Second})
	require.NoError(t, err)

	p := NewHTTPProber(c)
	require.NoError(t, p.Probe(context.Background()))

	down.Store(true)
	err = p.Probe(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrUnavailable)
}

func startHealthServer(t *testing.T) (*bufconn.Listener, *health.Server) {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	hs := health.NewServer()

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(lis)
	}()
	t.Cleanup(func() {
		srv.Stop()
		_ = lis.Close()
		<-serveErr
	})

	return lis, hs
}

func TestGRPCProber(t *testing.T) {
	lis, hs := startHealthServer(t)

	p, err := NewGRPCProber("passthrough:///bufnet", "lifekeeper",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	hs.SetServingStatus("lifekeeper", healthpb.HealthCheckResponse_SERVING)
	require.NoError(t, p.Probe(ctx))

	hs.SetServingStatus("lifekeeper", healthpb.HealthCheckResponse_NOT_SERVING)
	err = p.Probe(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, client.ErrUnavailable)
}

func TestGRPCProber_UnknownService(t *testing.T) {
	lis, _ := startHealthServer(t)

	p, err := NewGRPCProber("passthrough:///bufnet", "missing",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	assert.ErrorIs(t, p.Probe(ctx), client.ErrUnavailable)
}
