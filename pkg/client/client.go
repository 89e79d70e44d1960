// Package client talks to a running claudewrap daemon over HTTP.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultHealthPath is the daemon's health endpoint.
const DefaultHealthPath = "/health"

// ErrUnhealthy is returned by Health when the daemon answered but did not
// report itself healthy.
var ErrUnhealthy = errors.New("daemon reported unhealthy")

// Client provides HTTP client functionality to communicate with the daemon
type Client struct {
	baseURL    string
	healthPath string
	http       *resty.Client
	logger     *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL    string
	HealthPath string
	APIKey     string
	Timeout    time.Duration
	Logger     *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:    "http://127.0.0.1:8080",
		HealthPath: DefaultHealthPath,
		Timeout:    2 * time.Second,
	}
}

// ForPort returns a configuration for a daemon listening on the loopback
// interface.
func ForPort(port int) Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "http://127.0.0.1:" + strconv.Itoa(port)
	return cfg
}

// New creates a new daemon API client
func New(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.HealthPath == "" {
		config.HealthPath = def.HealthPath
	}
	if config.Timeout <= 0 {
		config.Timeout = def.Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	rc := resty.New().
		SetBaseURL(config.BaseURL).
		SetTimeout(config.Timeout).
		SetHeader("User-Agent", "claudewrap-client")
	if config.APIKey != "" {
		rc.SetAuthToken(config.APIKey)
	}

	return &Client{
		baseURL:    config.BaseURL,
		healthPath: config.HealthPath,
		http:       rc,
		logger:     config.Logger,
	}
}

// BaseURL returns the daemon address this client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Health probes the health endpoint. A transport failure is returned as is;
// a response that is not 200 with status "healthy" yields ErrUnhealthy
// together with whatever body could be decoded.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(c.healthPath)
	if err != nil {
		c.logger.Debug("Daemon unreachable", "url", c.baseURL, "error", err)
		return HealthResponse{}, fmt.Errorf("health request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK || out.Status != "healthy" {
		c.logger.Debug("Daemon health check failed", "status", resp.StatusCode(), "body_status", out.Status)
		return out, fmt.Errorf("%w: HTTP %d, status %q", ErrUnhealthy, resp.StatusCode(), out.Status)
	}
	return out, nil
}

// IsReachable reports whether anything answers on the daemon address.
func (c *Client) IsReachable(ctx context.Context) bool {
	_, err := c.Health(ctx)
	return err == nil || errors.Is(err, ErrUnhealthy)
}

// Sessions lists the daemon's live sessions.
func (c *Client) Sessions(ctx context.Context) ([]Session, error) {
	var (
		out     SessionList
		errBody ErrorResponse
	)
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&errBody).
		Get("/v1/sessions")
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp.StatusCode(), errBody)
	}
	return out.Data, nil
}

// DeleteSession removes one session by id.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	var errBody ErrorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&errBody).
		SetPathParam("id", id).
		Delete("/v1/sessions/{id}")
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if resp.IsError() {
		return apiError(resp.StatusCode(), errBody)
	}
	return nil
}

func apiError(status int, body ErrorResponse) error {
	if body.Error == "" {
		return fmt.Errorf("HTTP %d", status)
	}
	return fmt.Errorf("API error: %s", body.Error)
}
