package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Session carries the per-browser-session metadata the platform attaches to
// every call for analytics correlation. The flow engine itself never reads
// these; they live entirely in the transport.
type Session struct {
	FingerprintID string
	SessionID     string
	AccessToken   string
}

// NewSession mints fresh fingerprint and session identifiers.
func NewSession(accessToken string) Session {
	return Session{
		FingerprintID: uuid.NewString(),
		SessionID:     uuid.NewString(),
		AccessToken:   accessToken,
	}
}

type Config struct {
	BaseURL     string
	AccessToken string
	// HTTPClient overrides the default client (30s timeout).
	HTTPClient *http.Client
	Logger     *slog.Logger
	// RequestsPerSecond enables client-side rate limiting when > 0.
	RequestsPerSecond float64
}

// Client is a thin JSON-over-HTTPS wrapper: it attaches session metadata to
// every request, tracks in-flight requests so they can be aborted, and
// decodes the service's structured error envelope.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	session    Session
	limiter    *rate.Limiter
	logger     *slog.Logger

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
}

func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		session:    NewSession(cfg.AccessToken),
		limiter:    limiter,
		logger:     logger,
		inflight:   map[string]context.CancelFunc{},
	}, nil
}

// Session returns the metadata attached to outgoing requests.
func (c *Client) Session() Session {
	return c.session
}

// InFlight returns the number of outstanding requests.
func (c *Client) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

// Abort cancels the in-flight request with the given id, if any.
func (c *Client) Abort(requestID string) {
	c.mu.Lock()
	cancel, ok := c.inflight[requestID]
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// AbortAll cancels every outstanding request. Aborted requests fail with a
// cancellation error, never a user-visible failure.
func (c *Client) AbortAll() {
	c.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(c.inflight))
	for _, cancel := range c.inflight {
		cancels = append(cancels, cancel)
	}
	c.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

func (c *Client) track(requestID string, cancel context.CancelFunc) {
	c.mu.Lock()
	c.inflight[requestID] = cancel
	c.mu.Unlock()
}

func (c *Client) untrack(requestID string) {
	c.mu.Lock()
	cancel, ok := c.inflight[requestID]
	delete(c.inflight, requestID)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Post issues a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	requestID := uuid.NewString()
	ctx, cancel := context.WithCancel(ctx)
	c.track(requestID, cancel)
	defer c.untrack(requestID)

	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := sonic.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Cobalt-Fingerprint-Id", c.session.FingerprintID)
	req.Header.Set("X-Cobalt-Session-Tracking-Id", c.session.SessionID)
	req.Header.Set("X-Cobalt-Request-Id", requestID)
	if c.session.AccessToken != "" {
		req.Header.Set("X-Cobalt-Access-Token", c.session.AccessToken)
	}

	c.logger.Debug("api request", "method", method, "path", path, "requestId", requestID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.decodeError(resp.StatusCode, resp.Status, raw)
	}
	if out == nil {
		return nil
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

func (c *Client) decodeError(statusCode int, status string, raw []byte) error {
	var envelope errorEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil || (envelope.Code == "" && envelope.Message == "" && envelope.ScreeningConfirmationPrompt == nil) {
		return &APIError{StatusCode: statusCode, Message: status}
	}
	if envelope.ScreeningConfirmationPrompt != nil {
		return &ConfirmationRequiredError{Prompt: *envelope.ScreeningConfirmationPrompt}
	}
	return &APIError{StatusCode: statusCode, Code: envelope.Code, Message: envelope.Message}
}
