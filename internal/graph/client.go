package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"todohub/internal/msauth"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 500 * time.Millisecond
)

// TokenProvider supplies a fresh access token before each request. Forcing
// bypasses the expiry check, which is how a 401 response triggers an
// immediate refresh.
type TokenProvider interface {
	EnsureFresh(ctx context.Context, force bool) (*msauth.Record, error)
}

// Config contains Graph client configuration.
type Config struct {
	BaseURL     string        // API base URL, DefaultBaseURL when empty
	Timeout     time.Duration // per-request HTTP timeout
	MaxAttempts int           // attempts per request for transient failures
	BackoffBase time.Duration // first retry delay, doubled per attempt
}

// Client talks to the Microsoft To Do endpoints of the Graph API. Every
// request goes through do, which injects the bearer token, retries once
// after a forced refresh on 401, and backs off on 429 and 5xx responses.
type Client struct {
	config     Config
	auth       TokenProvider
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Graph client over the given token provider.
func NewClient(config Config, auth TokenProvider, logger *slog.Logger) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxAttempts == 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.BackoffBase == 0 {
		config.BackoffBase = defaultBackoffBase
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		config: config,
		auth:   auth,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		logger: logger,
	}
}

// do performs one Graph request against a path relative to the base URL.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	full := c.config.BaseURL + path
	if len(query) > 0 {
		full += "?" + query.Encode()
	}
	return c.doURL(ctx, method, full, body, out)
}

// doURL performs one Graph request against an absolute URL. Pagination
// links come back absolute, so the pager calls this directly.
func (c *Client) doURL(ctx context.Context, method, fullURL string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	var (
		lastErr      error
		forceRefresh bool
		refreshed    bool
	)

	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		record, err := c.auth.EnsureFresh(ctx, forceRefresh)
		forceRefresh = false
		if err != nil {
			if errors.Is(err, msauth.ErrReauthorizationRequired) || errors.Is(err, msauth.ErrMissingScopes) {
				return fmt.Errorf("%w: %v", ErrAuthorizationExpired, err)
			}
			// Transient refresh failure spends a retry attempt like any
			// other transient error.
			lastErr = err
			if err := c.backoff(ctx, attempt, 0); err != nil {
				return err
			}
			continue
		}

		req, err := c.newRequest(ctx, method, fullURL, payload, record.AccessToken)
		if err != nil {
			return err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("Graph request failed", "method", method, "url", fullURL, "error", err)
			if err := c.backoff(ctx, attempt, 0); err != nil {
				return err
			}
			continue
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			if err := c.backoff(ctx, attempt, 0); err != nil {
				return err
			}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return fmt.Errorf("failed to decode response: %w", err)
			}
			return nil

		case resp.StatusCode == http.StatusUnauthorized:
			if refreshed {
				return fmt.Errorf("%w: token rejected after refresh", ErrAuthorizationExpired)
			}
			// The stored token may have been revoked server-side before its
			// expiry. Force one refresh and retry once, without spending
			// a transient-retry attempt.
			refreshed = true
			forceRefresh = true
			attempt--
			continue

		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %s %s", ErrTaskNotFound, method, fullURL)

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = fmt.Errorf("graph returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
			c.logger.Warn("Graph request throttled or failed upstream",
				"status", resp.StatusCode, "attempt", attempt)
			if err := c.backoff(ctx, attempt, retryAfter(resp)); err != nil {
				return err
			}
			continue

		default:
			return fmt.Errorf("graph request %s %s failed with status %d: %s",
				method, fullURL, resp.StatusCode, strings.TrimSpace(string(respBody)))
		}
	}

	return fmt.Errorf("%w: %v", ErrRemoteUnavailable, lastErr)
}

// newRequest builds a request with standard headers and the bearer token.
func (c *Client) newRequest(ctx context.Context, method, fullURL string, payload []byte, accessToken string) (*http.Request, error) {
	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// backoff sleeps before the next attempt, doubling the base delay per
// attempt. Retry-After from the server takes precedence when longer. The
// last attempt never sleeps.
func (c *Client) backoff(ctx context.Context, attempt int, serverDelay time.Duration) error {
	if attempt >= c.config.MaxAttempts {
		return nil
	}

	delay := c.config.BackoffBase << (attempt - 1)
	if serverDelay > delay {
		delay = serverDelay
	}

	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryAfter extracts the server-requested delay from a 429/503 response.
func retryAfter(resp *http.Response) time.Duration {
	header := resp.Header.Get("Retry-After")
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
