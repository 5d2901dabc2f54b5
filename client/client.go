// Package client queries a running agentd over gRPC.
package client

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DefaultAddress is where agentd listens unless configured otherwise.
const DefaultAddress = "localhost:50051"

// Client wraps a connection to agentd.
type Client struct {
	conn   *grpc.ClientConn
	Health healthpb.HealthClient
}

// Connect connects to agentd.
// The address can be:
//   - A TCP address (e.g., "localhost:50051")
//   - A Unix socket path (e.g., "/tmp/agentd.sock" or "unix:///tmp/agentd.sock")
func Connect(address string) (*Client, error) {
	var target string

	switch {
	case strings.HasPrefix(address, "unix://"):
		target = address
	case strings.Contains(address, ":") && !strings.HasPrefix(address, "/"):
		target = address
	default:
		target = "unix://" + address
	}

	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon at %s: %w", address, err)
	}

	return &Client{
		conn:   conn,
		Health: healthpb.NewHealthClient(conn),
	}, nil
}

// Check returns the serving status of one health service, e.g. "", "llm" or "store".
func (c *Client) Check(ctx context.Context, service string) (string, error) {
	resp, err := c.Health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return "", fmt.Errorf("health check %q: %w", service, err)
	}
	return resp.GetStatus().String(), nil
}

// CheckAll queries every service and returns their statuses keyed by name.
// The overall service is reported as "overall".
func (c *Client) CheckAll(ctx context.Context, services ...string) (map[string]string, error) {
	out := make(map[string]string, len(services))
	for _, svc := range services {
		status, err := c.Check(ctx, svc)
		if err != nil {
			return nil, err
		}
		name := svc
		if name == "" {
			name = "overall"
		}
		out[name] = status
	}
	return out, nil
}

// Close closes the connection to the daemon.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
