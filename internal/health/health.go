// Package health reports service liveness over HTTP and the gRPC health
// protocol.
package health

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/ashureev/horizon-coach/internal/api"
)

// ServiceName is the gRPC health service name for the coach.
const ServiceName = "horizon.coach.v1.Coach"

const pingTimeout = 2 * time.Second

// Pinger checks a dependency, typically the session store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker tracks liveness from store pings.
type Checker struct {
	pinger Pinger
	grpc   *health.Server
	logger *slog.Logger

	mu      sync.RWMutex
	lastErr error
}

// NewChecker returns a Checker that starts out serving.
func NewChecker(p Pinger, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Checker{pinger: p, grpc: health.NewServer(), logger: logger}
	c.setStatus(nil)
	return c
}

// Check pings the store once and updates the reported status.
func (c *Checker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	err := c.pinger.Ping(ctx)
	c.setStatus(err)
	return err
}

func (c *Checker) setStatus(err error) {
	c.mu.Lock()
	changed := (c.lastErr == nil) != (err == nil)
	c.lastErr = err
	c.mu.Unlock()

	status := healthpb.HealthCheckResponse_SERVING
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	c.grpc.SetServingStatus("", status)
	c.grpc.SetServingStatus(ServiceName, status)
	if changed {
		c.logger.Warn("health status changed", "status", status.String(), "error", err)
	}
}

// Watch pings at interval until ctx is done. The returned channel closes
// when the goroutine exits.
func (c *Checker) Watch(ctx context.Context, interval time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = c.Check(ctx)
			}
		}
	}()
	return done
}

// Shutdown reports NOT_SERVING to every watcher.
func (c *Checker) Shutdown() {
	c.grpc.Shutdown()
}

// ServeHTTP answers GET /health.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := c.Check(r.Context()); err != nil {
		api.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
		return
	}
	api.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewGRPCServer returns a gRPC server exposing the health service.
func NewGRPCServer(c *Checker) *grpc.Server {
	srv := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    2 * time.Minute,
			Timeout: 10 * time.Second,
		}),
	)
	healthpb.RegisterHealthServer(srv, c.grpc)
	return srv
}
