// Package community implements the client for the community platform that
// hosts collaboration spaces for accepted mentor-mentee pairs.
package community

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/alem-hub/mentorship-engine/pkg/circuitbreaker"
	"github.com/alem-hub/mentorship-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the community API client.
type ClientConfig struct {
	// BaseURL is the community API base URL.
	BaseURL string

	// Token is sent as a bearer token.
	Token string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(baseURL string) ClientConfig {
	return ClientConfig{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// ErrEmptySpaceID is returned when the API answers without a space id.
var ErrEmptySpaceID = errors.New("community: empty collaboration space id")

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("community api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("community api: status %d: %s", e.StatusCode, e.Message)
}

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client implements mentorship.CollaborationSpaces.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	logger     *slog.Logger
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
}

// NewClient creates a new community API client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	logger := config.Logger.With("component", "community_client")

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		logger:     logger,
		retrier: retry.CommunityAPIRetrier(retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Warn("retrying community api call", "attempt", attempt, "delay", delay, "error", err)
		})),
		breaker: circuitbreaker.CommunityAPIBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}),
	}
}

// CreateCollaborationSpace creates the space for an accepted match.
// The match id doubles as the idempotency key, so retries never create twins.
func (c *Client) CreateCollaborationSpace(ctx context.Context, matchID string) (string, error) {
	req := CreateSpaceRequestDTO{MatchID: matchID, Kind: "mentorship"}

	var res SpaceDTO
	err := c.retrier.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			return c.do(ctx, http.MethodPost, "/api/v1/collaboration-spaces", matchID, req, &res)
		})
	})
	if err != nil {
		return "", fmt.Errorf("create collaboration space: %w", err)
	}
	if res.ID == "" {
		return "", ErrEmptySpaceID
	}

	c.logger.Debug("collaboration space created", "match_id", matchID, "space_id", res.ID)
	return res.ID, nil
}

// Ping checks that the API answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", "", nil, nil)
}

// do performs one request and classifies failures for the retrier.
func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("marshal body: %w", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retry.Permanent(ctx.Err())
		}
		return retry.Retryable(err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return retry.Retryable(fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e ErrorDTO
		if json.Unmarshal(payload, &e) == nil {
			apiErr.Message = e.Message()
		}
		if retry.RetryableStatus(resp.StatusCode) {
			return retry.Retryable(apiErr)
		}
		return retry.Permanent(apiErr)
	}

	if result == nil || len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, result); err != nil {
		return retry.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return nil
}
