package connectivity

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/lifekeeper/internal/client/client"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HTTPProber probes the REST health endpoint.
type HTTPProber struct {
	client client.Client
}

func NewHTTPProber(c client.Client) *HTTPProber {
	return &HTTPProber{client: c}
}

func (p *HTTPProber) Probe(ctx context.Context) error {
	return p.client.Ping(ctx)
}

// GRPCProber probes a grpc.health.v1 endpoint.
type GRPCProber struct {
	conn    *grpc.ClientConn
	health  healthpb.HealthClient
	service string
}

// NewGRPCProber connects lazily to target. Without options the connection
// is plaintext.
func NewGRPCProber(target, service string, opts ...grpc.DialOption) (*GRPCProber, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc health client: %w", err)
	}
	return &GRPCProber{conn: conn, health: healthpb.NewHealthClient(conn), service: service}, nil
}

func (p *GRPCProber) Probe(ctx context.Context) error {
	resp, err := p.health.Check(ctx, &healthpb.HealthCheckRequest{Service: p.service})
	if err != nil {
		return fmt.Errorf("%w: %v", client.ErrUnavailable, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("%w: health status %s", client.ErrUnavailable, resp.GetStatus())
	}
	return nil
}

func (p *GRPCProber) Close() error {
	return p.conn.Close()
}
