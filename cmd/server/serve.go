package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/horizon-coach/internal/api"
	"github.com/ashureev/horizon-coach/internal/coach"
	"github.com/ashureev/horizon-coach/internal/health"
	"github.com/ashureev/horizon-coach/internal/identity"
	"github.com/ashureev/horizon-coach/internal/middleware"
)

const (
	shutdownTimeout     = 10 * time.Second
	healthCheckInterval = 15 * time.Second
)

func (a *app) serve(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger
	logger.Info("Starting server", "port", cfg.Port, "grpc_port", cfg.GRPCPort, "provider", cfg.LLM.Provider)

	repo, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Error("Failed to close repository", "error", closeErr)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rec, err := newTelemetry(cfg, reg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rec.Close(); closeErr != nil {
			logger.Error("Failed to close telemetry", "error", closeErr)
		}
	}()

	model := newProvider(cfg, logger)
	svc := newService(cfg, coach.Deps{
		Repo:       repo,
		Model:      model,
		Classifier: newClassifier(cfg, model, logger),
		Telemetry:  rec,
		Logger:     logger,
	})

	checker := health.NewChecker(repo, logger)
	handler := api.NewHandler(svc, api.Config{
		MaxBodyBytes:      cfg.SSE.MaxBodyBytes,
		KeepAlive:         cfg.SSE.KeepAlive,
		RateLimitRequests: cfg.RateLimit.Requests,
		RateLimitWindow:   cfg.RateLimit.Window,
		OriginPatterns:    originPatterns(cfg.CORSOrigins),
	}, logger)
	defer handler.Close()

	// Setup router.
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSOrigins))
	r.Use(identity.Middleware)

	r.Method(http.MethodGet, "/health", checker)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	handler.RegisterRoutes(r)

	// SSE connections require long timeouts, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	var grpcLis net.Listener
	if cfg.GRPCPort != "" {
		grpcLis, err = net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	sweeperDone := svc.StartSweeper(gctx, coach.SweeperConfig{
		Interval:    cfg.Session.SweepInterval,
		ResidentTTL: cfg.Session.ResidentTTL,
		Retention:   cfg.Session.Retention,
	})
	healthDone := checker.Watch(gctx, healthCheckInterval)

	g.Go(func() error {
		logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if grpcLis != nil {
		grpcSrv := health.NewGRPCServer(checker)
		g.Go(func() error {
			logger.Info("gRPC health listening", "addr", grpcLis.Addr().String())
			if err := grpcSrv.Serve(grpcLis); err != nil {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			checker.Shutdown()
			grpcSrv.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	<-sweeperDone
	<-healthDone
	if err != nil {
		return err
	}
	logger.Info("Server stopped successfully")
	return nil
}

// originPatterns converts CORS origins to WebSocket host patterns.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			out = append(out, o)
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			slog.Warn("Ignoring invalid CORS origin for websocket", "origin", o)
			continue
		}
		out = append(out, u.Host)
	}
	return out
}
