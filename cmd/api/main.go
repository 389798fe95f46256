package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-mcp-gateway/cmd/mainconfig"
	"github.com/wolfman30/clinic-mcp-gateway/internal/api/router"
	"github.com/wolfman30/clinic-mcp-gateway/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-mcp-gateway/internal/config"
	"github.com/wolfman30/clinic-mcp-gateway/internal/observability/metrics"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

func main() {
	// A local .env is optional.
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-mcp-gateway API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"tenant_directory", cfg.TenantDirectoryBackend,
	)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; management API will reject every request")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backends, cleanup, err := connectBackends(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to connect tenant directory backend", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	store, err := bootstrap.BuildTenantStore(cfg, backends, logger)
	if err != nil {
		logger.Error("failed to build tenant store", "error", err)
		os.Exit(1)
	}

	metricsHandler, gatewayMetrics := setupMetrics()
	gateway, err := bootstrap.BuildGateway(cfg, store, gatewayMetrics, logger)
	if err != nil {
		logger.Error("failed to build gateway", "error", err)
		os.Exit(1)
	}
	defer gateway.Close()

	r := router.New(gateway.RouterConfig(cfg, metricsHandler, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.UpstreamTimeout*2 + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers gateway metrics on a private registry and returns
// the /metrics handler for it.
func setupMetrics() (http.Handler, *metrics.GatewayMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	gm := metrics.NewGatewayMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), gm
}

// connectBackends builds only the client the configured directory backend
// needs. The returned cleanup closes it.
func connectBackends(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (bootstrap.StoreBackends, func(), error) {
	var backends bootstrap.StoreBackends
	noop := func() {}

	switch cfg.TenantDirectoryBackend {
	case appconfig.BackendPostgres:
		pool, err := bootstrap.BuildPostgresPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return backends, noop, err
		}
		backends.Postgres = pool
		return backends, func() {
			if pool != nil {
				pool.Close()
			}
		}, nil
	case appconfig.BackendRedis:
		client := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
		if client == nil {
			return backends, noop, fmt.Errorf("redis at %s is not reachable", cfg.RedisAddr)
		}
		backends.Redis = client
		return backends, func() { _ = client.Close() }, nil
	case appconfig.BackendDynamoDB:
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return backends, noop, fmt.Errorf("load aws config: %w", err)
		}
		backends.DynamoDB = mainconfig.NewDynamoDBClient(awsCfg, cfg)
		return backends, noop, nil
	case appconfig.BackendMemory:
		return backends, noop, nil
	default:
		return backends, noop, fmt.Errorf("unknown tenant directory backend %q", cfg.TenantDirectoryBackend)
	}
}
