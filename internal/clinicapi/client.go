// Package clinicapi is a tenant-scoped client for the Clínica nas Nuvens
// REST API. Every operation maps to exactly one upstream call and returns
// the upstream body unchanged. Nothing is cached and nothing is retried.
package clinicapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
	"github.com/wolfman30/clinic-mcp-gateway/internal/credential"
	"github.com/wolfman30/clinic-mcp-gateway/internal/observability/metrics"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

const (
	DefaultBaseURL = "https://api.clinicanasnuvens.com.br"
	defaultTimeout = 30 * time.Second
	maxLoggedBody  = 300
)

var tracer = otel.Tracer("clinicmcp.internal.clinicapi")

// Config holds process-wide settings shared by every tenant's client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.GatewayMetrics
}

// Defaults are tenant-level ids applied to create payloads that omit them.
type Defaults struct {
	LabelID         *int64
	LocationID      *int64
	PatientOriginID *int64
}

// Scope identifies the tenant a client acts for.
type Scope struct {
	TenantID    string
	Credentials credential.Headers
	Defaults    Defaults
}

// Client is bound to one tenant. Build a new one per operation; never
// share a client across tenants.
type Client struct {
	baseURL string
	http    *http.Client
	scope   Scope
	logger  *logging.Logger
	metrics *metrics.GatewayMetrics
}

// New creates a client for scope.
func New(cfg Config, scope Scope) (*Client, error) {
	if scope.Credentials.Authorization == "" {
		return nil, apperr.New(apperr.KindInvalidTenantCredential, "clinicapi.new", "tenant credentials are required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		scope:   scope,
		logger:  logger.With("tenant_id", scope.TenantID),
		metrics: cfg.Metrics,
	}, nil
}

// TenantID reports the tenant the client is bound to.
func (c *Client) TenantID() string { return c.scope.TenantID }

func (c *Client) get(ctx context.Context, op, path string, query url.Values) (json.RawMessage, error) {
	return c.do(ctx, op, http.MethodGet, path, query, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body any) (json.RawMessage, error) {
	ctx, span := tracer.Start(ctx, "clinicapi."+op, trace.WithAttributes(
		attribute.String("tenant_id", c.scope.TenantID),
		attribute.String("operation", op),
		attribute.String("http.method", method),
	))
	defer span.End()

	qualified := "clinicapi." + op
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", qualified, err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", qualified, err)
	}
	c.scope.Credentials.Apply(req.Header)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(metrics.CollaboratorClinicAPI, op, 0, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport error")
		c.logger.Error("clinic api unreachable", "operation", op, "path", path, "error", err)
		return nil, apperr.Unavailable(qualified, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	c.metrics.ObserveUpstream(metrics.CollaboratorClinicAPI, op, resp.StatusCode, time.Since(start))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if err != nil {
		span.RecordError(err)
		return nil, apperr.Unavailable(qualified, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		span.SetStatus(codes.Error, resp.Status)
		c.logger.Warn("clinic api non-2xx response",
			"operation", op,
			"status", resp.StatusCode,
			"path", path,
			"body", logging.Truncate(string(respBody), maxLoggedBody),
		)
		return nil, apperr.UpstreamClinic(qualified, resp.StatusCode, string(respBody))
	}
	return json.RawMessage(respBody), nil
}
