// Package ozon adapts the Ozon seller API endpoints used by the support
// pipeline. Every call resolves credentials per token and waits on a shared
// rate limiter.
package ozon

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

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sellerdesk/ozon-support/internal/config"
)

const (
	headerClientID = "Client-Id"
	headerAPIKey   = "Api-Key"

	maxResponseBytes = 16 << 20
	maxPageLimit     = 1000

	defaultTimeout = 30 * time.Second
)

// Credentials authenticate a seller account.
type Credentials struct {
	ClientID string
	APIKey   string
}

// CredentialsProvider resolves a stored token id into API credentials.
type CredentialsProvider interface {
	Credentials(ctx context.Context, tokenID string) (Credentials, error)
}

// Client calls the seller API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	creds      CredentialsProvider
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient builds a client from configuration.
func NewClient(cfg config.OzonConfig, creds CredentialsProvider, logger *zap.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		creds:      creds,
		logger:     logger.Named("ozon"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type callOptions struct {
	planCodes []int
}

type callOption func(*callOptions)

// withPlanCodes marks error codes that mean the plan is insufficient.
func withPlanCodes(codes ...int) callOption {
	return func(o *callOptions) {
		o.planCodes = append(o.planCodes, codes...)
	}
}

// failure is the error envelope returned by the API.
type failure struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) post(ctx context.Context, token, endpoint string, payload, out any, opts ...callOption) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", endpoint, err)
	}
	resp, err := c.send(ctx, http.MethodPost, token, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return c.transient(token, endpoint, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: err.Error()})
	}
	if err := c.classify(token, endpoint, resp.StatusCode, raw, opts...); err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return c.transient(token, endpoint, &APIError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: "malformed response: " + err.Error()})
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, token, endpoint string, body io.Reader) (*http.Response, error) {
	if token == "" {
		return nil, invalidArgument("token is required for %s", endpoint)
	}
	creds, err := c.creds.Credentials(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("credentials for token %s: %w", token, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", endpoint, err)
	}
	req.Header.Set(headerClientID, creds.ClientID)
	req.Header.Set(headerAPIKey, creds.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transient(token, endpoint, &APIError{Endpoint: endpoint, Message: err.Error()})
	}
	return resp, nil
}

// classify turns an HTTP response into nil, ErrPlanRestricted or *APIError.
func (c *Client) classify(token, endpoint string, status int, raw []byte, opts ...callOption) error {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	var f failure
	_ = json.Unmarshal(raw, &f)

	if status == http.StatusOK && f.Code == 0 {
		return nil
	}
	if isPlanRestricted(f, o.planCodes) {
		c.logger.Debug("plan restricted", zap.String("endpoint", endpoint), zap.String("token", token), zap.Int("code", f.Code))
		return ErrPlanRestricted
	}
	if f.Message == "" && status != http.StatusOK {
		f.Message = strings.TrimSpace(string(raw))
	}
	return c.transient(token, endpoint, &APIError{Endpoint: endpoint, StatusCode: status, Code: f.Code, Message: f.Message})
}

func (c *Client) transient(token, endpoint string, apiErr *APIError) error {
	c.logger.Error("ozon request failed",
		zap.Bool("critical", true),
		zap.String("endpoint", endpoint),
		zap.String("token", token),
		zap.Int("status", apiErr.StatusCode),
		zap.Int("code", apiErr.Code),
		zap.String("message", apiErr.Message),
	)
	return apiErr
}

func isPlanRestricted(f failure, planCodes []int) bool {
	for _, code := range planCodes {
		if f.Code == code {
			return true
		}
	}
	msg := strings.ToLower(f.Message)
	return strings.Contains(msg, "premium")
}

// clampLimit applies the endpoint default and the documented ceiling.
func clampLimit(limit, fallback, ceiling int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > ceiling {
		return ceiling
	}
	return limit
}

func swallowPlan(err error) error {
	if errors.Is(err, ErrPlanRestricted) {
		return nil
	}
	return err
}
