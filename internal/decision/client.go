// Package decision talks to the external decision (MCP) service that turns
// an inbound message plus conversation context into a directive.
package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
	"github.com/wolfman30/clinic-mcp-gateway/internal/conversation"
	"github.com/wolfman30/clinic-mcp-gateway/internal/observability/metrics"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

// Config describes how to reach the decision service.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.GatewayMetrics
}

// Client calls the decision service. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *logging.Logger
	metrics *metrics.GatewayMetrics
}

// NewClient validates the configuration and returns a ready-to-use client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("decision: base URL required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

type processRequest struct {
	Message string                `json:"message"`
	Context *conversation.Context `json:"context"`
	Tools   []string              `json:"tools"`
}

// Process asks the service what to do with message. Any failure is
// reported as UpstreamUnavailable.
func (c *Client) Process(ctx context.Context, message string, convCtx *conversation.Context, tools []string) (*Directive, error) {
	if tools == nil {
		tools = []string{}
	}
	data, err := c.doRequest(ctx, "process", http.MethodPost, "/process", processRequest{Message: message, Context: convCtx, Tools: tools})
	if err != nil {
		return nil, err
	}
	var d Directive
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, apperr.Unavailable("decision.process", fmt.Errorf("decode directive: %w", err))
	}
	return &d, nil
}

// ListTools returns the tools the service exposes, verbatim.
func (c *Client) ListTools(ctx context.Context) (json.RawMessage, error) {
	data, err := c.doRequest(ctx, "list_tools", http.MethodGet, "/tools", nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

type executeRequest struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Context    any            `json:"context"`
}

// ExecuteTool invokes a tool directly, outside a conversational turn.
// convCtx may be nil.
func (c *Client) ExecuteTool(ctx context.Context, tool string, params map[string]any, convCtx any) (json.RawMessage, error) {
	if strings.TrimSpace(tool) == "" {
		return nil, apperr.Validation("decision.execute", "tool name required")
	}
	if params == nil {
		params = map[string]any{}
	}
	if convCtx == nil {
		convCtx = map[string]any{}
	}
	data, err := c.doRequest(ctx, "execute", http.MethodPost, "/execute", executeRequest{Tool: tool, Parameters: params, Context: convCtx})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// UpdateContext pushes a conversation snapshot to the service.
func (c *Client) UpdateContext(ctx context.Context, convCtx *conversation.Context) (json.RawMessage, error) {
	if convCtx == nil {
		return nil, apperr.Validation("decision.update_context", "context required")
	}
	data, err := c.doRequest(ctx, "update_context", http.MethodPost, "/context", convCtx)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func (c *Client) doRequest(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	qualified := "decision." + op
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to encode payload: %w", qualified, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("%s: request build failed: %w", qualified, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(c.apiKey) != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveUpstream(metrics.CollaboratorDecision, op, 0, time.Since(start))
		return nil, apperr.Unavailable(qualified, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveUpstream(metrics.CollaboratorDecision, op, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Unavailable(qualified, fmt.Errorf("read response failed: %w", err))
	}
	if resp.StatusCode >= 400 {
		c.logger.Warn("decision service error response", "operation", op, "status", resp.StatusCode, "body", logging.Truncate(string(data), 300))
		return nil, apperr.Unavailable(qualified, fmt.Errorf("%s: %s", resp.Status, logging.Truncate(string(data), 300)))
	}
	return data, nil
}
