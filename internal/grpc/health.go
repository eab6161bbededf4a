// Package grpc exposes the standard gRPC health service, fed by periodic
// pings of the stores the HTTP API depends on.
package grpc

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// PingFunc reports whether a dependency is reachable.
type PingFunc func(ctx context.Context) error

// NewServer returns a gRPC server carrying only health and reflection.
func NewServer(hs *health.Server) *grpc.Server {
	s := grpc.NewServer()
	healthpb.RegisterHealthServer(s, hs)

	// Enable reflection for grpcurl/grpcui
	reflection.Register(s)
	return s
}

type Checker struct {
	health  *health.Server
	checks  map[string]PingFunc
	names   []string
	timeout time.Duration
	logger  zerolog.Logger
}

func NewChecker(hs *health.Server, checks map[string]PingFunc, timeout time.Duration, logger zerolog.Logger) *Checker {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return &Checker{
		health:  hs,
		checks:  checks,
		names:   names,
		timeout: timeout,
		logger:  logger,
	}
}

// CheckOnce pings every dependency and publishes per-service statuses. The
// overall ("") status is SERVING only when all of them answer.
func (c *Checker) CheckOnce(ctx context.Context) bool {
	healthy := true
	for _, name := range c.names {
		pingCtx, cancel := context.WithTimeout(ctx, c.timeout)
		err := c.checks[name](pingCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			healthy = false
			status = healthpb.HealthCheckResponse_NOT_SERVING
			c.logger.Warn().Err(err).Str("dependency", name).Msg("health check failed")
		}
		c.health.SetServingStatus(name, status)
	}

	overall := healthpb.HealthCheckResponse_SERVING
	if !healthy {
		overall = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.health.SetServingStatus("", overall)
	return healthy
}

// Run checks every interval until ctx is done, then marks everything
// NOT_SERVING.
func (c *Checker) Run(ctx context.Context, interval time.Duration) {
	c.CheckOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.health.Shutdown()
			return
		case <-ticker.C:
			c.CheckOnce(ctx)
		}
	}
}
