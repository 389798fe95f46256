// Package evolution is a thin client for the Evolution API WhatsApp gateway.
package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/clinic-mcp-gateway/internal/apperr"
	"github.com/wolfman30/clinic-mcp-gateway/internal/messaging"
	"github.com/wolfman30/clinic-mcp-gateway/internal/observability/metrics"
	"github.com/wolfman30/clinic-mcp-gateway/pkg/logging"
)

const (
	defaultTimeout      = 10 * time.Second
	defaultHistoryLimit = 50
)

// Config controls how the Evolution client behaves. MaxRetries only
// applies to reads; sends are never repeated.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	Backoff    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.GatewayMetrics
}

// Client wraps the Evolution endpoints the gateway needs.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
	backoff    time.Duration
	logger     *logging.Logger
	metrics    *metrics.GatewayMetrics
}

var _ messaging.Sender = (*Client)(nil)

// New creates a configured Client.
func New(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("evolution: base URL is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
		metrics:    cfg.Metrics,
	}, nil
}

type sendRequest struct {
	Number  string `json:"number"`
	Text    string `json:"text,omitempty"`
	File    string `json:"file,omitempty"`
	Caption string `json:"caption,omitempty"`
}

// SendText delivers a text message to number.
func (c *Client) SendText(ctx context.Context, number, text string) (*messaging.SendResult, error) {
	number = messaging.NormalizePhone(number)
	if number == "" {
		return nil, apperr.Validation("evolution.send_text", "recipient number required")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Validation("evolution.send_text", "message text required")
	}
	data, err := c.invoke(ctx, "send_text", http.MethodPost, "/message/send", nil, sendRequest{Number: number, Text: text})
	if err != nil {
		return nil, err
	}
	return decodeSendResult(data), nil
}

// SendFile delivers a file by URL with an optional caption.
func (c *Client) SendFile(ctx context.Context, number, fileURL, caption string) (*messaging.SendResult, error) {
	number = messaging.NormalizePhone(number)
	if number == "" {
		return nil, apperr.Validation("evolution.send_file", "recipient number required")
	}
	if strings.TrimSpace(fileURL) == "" {
		return nil, apperr.Validation("evolution.send_file", "file url required")
	}
	data, err := c.invoke(ctx, "send_file", http.MethodPost, "/message/send", nil, sendRequest{Number: number, File: fileURL, Caption: caption})
	if err != nil {
		return nil, err
	}
	return decodeSendResult(data), nil
}

// GetStatus returns the delivery status of a previously sent message, verbatim.
func (c *Client) GetStatus(ctx context.Context, messageID string) (json.RawMessage, error) {
	messageID = strings.TrimSpace(messageID)
	if messageID == "" {
		return nil, apperr.Validation("evolution.message_status", "message id required")
	}
	data, err := c.invoke(ctx, "message_status", http.MethodGet, "/message/status/"+url.PathEscape(messageID), nil, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// ChatHistory returns up to limit recent messages exchanged with number.
// A non-positive limit falls back to 50.
func (c *Client) ChatHistory(ctx context.Context, number string, limit int) (json.RawMessage, error) {
	number = messaging.NormalizePhone(number)
	if number == "" {
		return nil, apperr.Validation("evolution.chat_history", "number required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	q := url.Values{}
	q.Set("number", number)
	q.Set("limit", strconv.Itoa(limit))
	data, err := c.invoke(ctx, "chat_history", http.MethodGet, "/chat/history", q, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func decodeSendResult(data []byte) *messaging.SendResult {
	result := &messaging.SendResult{Raw: json.RawMessage(data)}
	var parsed struct {
		ID  string `json:"id"`
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil {
		result.MessageID = parsed.ID
		if result.MessageID == "" {
			result.MessageID = parsed.Key.ID
		}
	}
	return result
}

func (c *Client) invoke(ctx context.Context, op, method, path string, query url.Values, payload any) ([]byte, error) {
	qualified := "evolution." + op
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal body: %w", qualified, err)
		}
	}
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	retries := 0
	if method == http.MethodGet {
		retries = c.maxRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		var bodyReader io.Reader
		if body != nil {
			bodyReader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("%s: build request: %w", qualified, err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("apikey", c.apiKey)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.metrics.ObserveUpstream(metrics.CollaboratorMessaging, op, 0, time.Since(start))
			if ctx.Err() != nil {
				return nil, apperr.Unavailable(qualified, ctx.Err())
			}
			lastErr = apperr.Unavailable(qualified, err)
			if attempt == retries || !shouldRetry(0, err) {
				return nil, lastErr
			}
			c.logRetry(op, attempt, 0, err)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, apperr.Unavailable(qualified, sleepErr)
			}
			continue
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.metrics.ObserveUpstream(metrics.CollaboratorMessaging, op, resp.StatusCode, time.Since(start))
		if readErr != nil {
			return nil, apperr.Unavailable(qualified, fmt.Errorf("read response: %w", readErr))
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return data, nil
		}
		apiErr := decodeAPIError(resp.StatusCode, data)
		if resp.StatusCode == http.StatusNotFound {
			nf := apperr.NotFound(qualified, "not found at messaging gateway")
			nf.Err = apiErr
			return nil, nf
		}
		lastErr = apperr.Unavailable(qualified, apiErr)
		if attempt < retries && shouldRetry(resp.StatusCode, nil) {
			c.logRetry(op, attempt, resp.StatusCode, apiErr)
			if sleepErr := c.sleep(ctx, attempt); sleepErr != nil {
				return nil, apperr.Unavailable(qualified, sleepErr)
			}
			continue
		}
		c.logger.Warn("evolution error response", "operation", op, "status", resp.StatusCode, "body", logging.Truncate(string(data), 300))
		return nil, lastErr
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, apperr.Unavailable(qualified, errors.New("request failed without response"))
}

func (c *Client) sleep(ctx context.Context, attempt int) error {
	delay := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) logRetry(op string, attempt int, status int, err error) {
	c.logger.Warn("evolution retry",
		"operation", op,
		"attempt", attempt+1,
		"status", status,
		"error", err,
	)
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return true
		}
		return !errors.Is(err, context.Canceled)
	}
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

type apiError struct {
	StatusCode int    `json:"-"`
	Message    any    `json:"message,omitempty"`
	ErrorText  string `json:"error,omitempty"`
	Detail     string `json:"-"`
}

func (e *apiError) Error() string {
	if e.ErrorText != "" {
		return fmt.Sprintf("evolution: %s (status=%d)", e.ErrorText, e.StatusCode)
	}
	if e.Detail != "" {
		return fmt.Sprintf("evolution: %s (status=%d)", e.Detail, e.StatusCode)
	}
	return fmt.Sprintf("evolution: http status %d", e.StatusCode)
}

func decodeAPIError(status int, body []byte) error {
	var parsed apiError
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &apiError{StatusCode: status, Detail: logging.Truncate(string(body), 300)}
	}
	parsed.StatusCode = status
	return &parsed
}
