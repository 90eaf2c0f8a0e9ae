// Package graph is a thin client for the Microsoft Graph REST API, covering
// the message and drive operations the pipeline's built-ins wrap. The
// pipeline core never sees these request/response shapes, only the record
// lists the ops layer derives from them.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the production Graph endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// Client is a high-level client for the Graph API.
type Client struct {
	baseURL    string
	principal  string
	tokens     oauth2.TokenSource
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures the Client during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	principal  string
	tokens     oauth2.TokenSource
	httpClient *http.Client
	logger     *slog.Logger
	timeout    time.Duration
}

// New creates a Client for the Graph instance at baseURL (DefaultBaseURL for
// production). Requests address /me unless WithUser sets an app-only user
// object id.
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	cfg := &clientConfig{principal: "me"}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if cfg.timeout > 0 {
		// Copy before setting the timeout; the caller's client must not
		// change under them.
		clone := *httpClient
		clone.Timeout = cfg.timeout
		httpClient = &clone
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Client{
		baseURL:    baseURL,
		principal:  cfg.principal,
		tokens:     cfg.tokens,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// WithUser addresses requests to /users/{objectID} instead of /me. App-only
// (client credentials) tokens have no signed-in user, so /me does not
// resolve for them.
func WithUser(objectID string) Option {
	return func(cfg *clientConfig) error {
		if objectID != "" {
			cfg.principal = "users/" + objectID
		}
		return nil
	}
}

// WithTokenSource supplies bearer tokens for every request.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(cfg *clientConfig) error {
		cfg.tokens = ts
		return nil
	}
}

// WithStaticToken uses a fixed bearer token. Mostly for tests.
func WithStaticToken(token string) Option {
	return WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		cfg.timeout = d
		return nil
	}
}

// url builds a principal-scoped URL: c.url("messages") is
// {base}/me/messages or {base}/users/{id}/messages.
func (c *Client) url(parts ...string) string {
	return c.baseURL + "/" + c.principal + "/" + strings.Join(parts, "/")
}

func (c *Client) authorize(req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}
	tok.SetAuthHeader(req)
	return nil
}

// doJSON executes a request with a JSON body and decodes the JSON response
// into dst (nil dst discards the body). Error statuses become *APIError.
func (c *Client) doJSON(ctx context.Context, method, url, operation string, body any, dst any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", operation, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(req, operation)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}
	return nil
}

// doRaw executes a request and returns the raw response body, for content
// endpoints ($value, /content).
func (c *Client) doRaw(ctx context.Context, method, url, operation string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.do(req, operation)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", operation, err)
	}
	return data, nil
}

func (c *Client) do(req *http.Request, operation string) (*http.Response, error) {
	if err := c.authorize(req); err != nil {
		return nil, fmt.Errorf("%s: %w", operation, err)
	}

	c.logger.InfoContext(req.Context(), "graph request", "operation", operation, "method", req.Method, "url", req.URL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: do request: %w", operation, err)
	}

	c.logger.DebugContext(req.Context(), "graph response", "operation", operation, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)
		var errRS errorResponse
		if json.Unmarshal(respBody, &errRS) == nil && errRS.Error.Message != "" {
			return nil, newAPIError(operation, resp.StatusCode, errRS.Error.Code, errRS.Error.Message)
		}
		msg := string(respBody)
		if msg == "" {
			msg = resp.Status
		}
		return nil, newAPIError(operation, resp.StatusCode, "", msg)
	}
	return resp, nil
}
