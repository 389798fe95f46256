package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"

	appconfig "github.com/wolfman30/clinic-mcp-gateway/internal/config"
	"github.com/wolfman30/clinic-mcp-gateway/internal/observability/metrics"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

func TestSetupMetricsExposesGatewayMetrics(t *testing.T) {
	handler, gm := setupMetrics()
	if handler == nil || gm == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	gm.ObserveUpstream(metrics.CollaboratorDecision, "process", 200, 0)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "clinicmcp_upstream_requests_total") {
		t.Fatalf("expected upstream counter to be exported")
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected go runtime collector to be registered")
	}
}

func TestConnectBackendsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{TenantDirectoryBackend: appconfig.BackendRedis, RedisAddr: mr.Addr()}

	backends, cleanup, err := connectBackends(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()
	if backends.Redis == nil {
		t.Fatalf("expected redis client")
	}
	if backends.Postgres != nil || backends.DynamoDB != nil {
		t.Fatalf("expected only the redis backend to be built")
	}
}

func TestConnectBackendsRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	cfg := &appconfig.Config{TenantDirectoryBackend: appconfig.BackendRedis, RedisAddr: addr}

	if _, _, err := connectBackends(context.Background(), cfg, logging.New("error")); err == nil {
		t.Fatalf("expected error for unreachable redis")
	}
}

func TestConnectBackendsDynamoDB(t *testing.T) {
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")
	cfg := &appconfig.Config{
		TenantDirectoryBackend: appconfig.BackendDynamoDB,
		AWSRegion:              "us-east-1",
		AWSAccessKeyID:         "test",
		AWSSecretAccessKey:     "test",
		AWSEndpointOverride:    "http://localhost:4566",
	}
	backends, cleanup, err := connectBackends(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()
	if backends.DynamoDB == nil {
		t.Fatalf("expected dynamodb client")
	}
}

func TestConnectBackendsMemoryNeedsNoClient(t *testing.T) {
	cfg := &appconfig.Config{TenantDirectoryBackend: appconfig.BackendMemory}
	backends, cleanup, err := connectBackends(context.Background(), cfg, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()
	if backends.Postgres != nil || backends.Redis != nil || backends.DynamoDB != nil {
		t.Fatalf("expected no backend clients for the memory directory")
	}
}

func TestConnectBackendsUnknown(t *testing.T) {
	cfg := &appconfig.Config{TenantDirectoryBackend: "sqlite"}
	if _, _, err := connectBackends(context.Background(), cfg, logging.New("error")); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
