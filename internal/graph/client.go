package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/calstats/internal/identity"
	"github.com/teemow/calstats/internal/instrumentation"
	"github.com/teemow/calstats/internal/logging"
)

const (
	// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	// DefaultTimeout bounds every Graph request.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResponseBytes caps the size of a response body.
	DefaultMaxResponseBytes = 32 << 20
)

// Config holds optional settings for a Client. Zero values select the
// defaults; a zero RateLimit disables client-side pacing.
type Config struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64
	RateBurst int

	// MaxResponseBytes caps a response body; larger bodies fail with
	// ErrResponseTooLarge. Defaults to DefaultMaxResponseBytes.
	MaxResponseBytes int64

	// Transport is the base round tripper, wrapped with otelhttp.
	// Defaults to http.DefaultTransport.
	Transport http.RoundTripper

	Logger  logging.Logger
	Metrics *instrumentation.Metrics
}

// invalidator is implemented by token providers that cache.
type invalidator interface {
	Invalidate()
}

// Client issues authenticated GET requests against Microsoft Graph.
// It never retries; every failure is returned to the caller.
type Client struct {
	baseURL    *url.URL
	tokens     identity.TokenProvider
	httpClient *http.Client
	limiter    *RateLimiter
	maxBody    int64
	logger     logging.Logger
	metrics    *instrumentation.Metrics
}

// NewClient returns a Client that authenticates with tokens.
func NewClient(tokens identity.TokenProvider, cfg Config) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("graph: token provider is required")
	}

	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("graph: invalid base URL %q: %w", raw, err)
	}
	if (base.Scheme != "https" && base.Scheme != "http") || base.Host == "" {
		return nil, fmt.Errorf("graph: invalid base URL %q: must be an absolute http(s) URL", raw)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	maxBody := cfg.MaxResponseBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBytes
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return &Client{
		baseURL: base,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
		},
		limiter: NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		maxBody: maxBody,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// BaseURL returns the Graph endpoint the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Get fetches baseURL+path with the given query parameters and returns the
// response body unchanged. Token failures are returned as they come from the
// token provider.
func (c *Client) Get(ctx context.Context, path string, query map[string]string) (json.RawMessage, error) {
	u, err := c.resolve(path, query)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, operationFor(u.Path), u)
}

// GetJSON is Get followed by decoding the body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query map[string]string, out any) error {
	raw, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	return decode(operationFor(path), raw, out)
}

// GetLink fetches an absolute URL returned by Graph, such as an
// @odata.nextLink. The link must point at the configured Graph host so the
// bearer token is never sent elsewhere.
func (c *Client) GetLink(ctx context.Context, link string) (json.RawMessage, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("graph: invalid link %q: %w", link, err)
	}
	if u.Scheme != c.baseURL.Scheme || u.Host != c.baseURL.Host {
		return nil, fmt.Errorf("graph: refusing to follow link to foreign host %q", u.Host)
	}
	return c.do(ctx, operationFor(u.Path), u)
}

// GetLinkJSON is GetLink followed by decoding the body into out.
func (c *Client) GetLinkJSON(ctx context.Context, link string, out any) error {
	raw, err := c.GetLink(ctx, link)
	if err != nil {
		return err
	}
	return decode("link", raw, out)
}

func (c *Client) resolve(path string, query map[string]string) (*url.URL, error) {
	u, err := url.Parse(c.baseURL.String() + "/" + strings.TrimLeft(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("graph: invalid path %q: %w", path, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, v := range query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func (c *Client) do(ctx context.Context, op string, u *url.URL) (json.RawMessage, error) {
	ctx, span := instrumentation.StartGraphSpan(ctx, op)
	defer span.End()

	token, err := c.tokens.GetToken(ctx)
	if err != nil {
		instrumentation.SetSpanError(span, err)
		return nil, err
	}

	start := time.Now()
	target := u.Redacted()

	fail := func(err error) (json.RawMessage, error) {
		terr := &TransportError{Op: op, URL: target, Err: err}
		instrumentation.SetSpanError(span, terr)
		c.metrics.RecordGraphRequest(ctx, op, instrumentation.GraphStatus(0), time.Since(start))
		c.logger.Warn("graph request failed",
			logging.Operation(op),
			"timeout", terr.Timeout(),
			logging.Err(err))
		return nil, terr
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("graph %s: building request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if id := ClientRequestID(ctx); id != "" {
		req.Header.Set("client-request-id", id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return fail(err)
	}
	if int64(len(body)) > c.maxBody {
		return fail(fmt.Errorf("%w: status %d, more than %d bytes", ErrResponseTooLarge, resp.StatusCode, c.maxBody))
	}

	duration := time.Since(start)
	span.SetAttributes(attribute.Int(instrumentation.SpanAttrStatusCode, resp.StatusCode))
	c.metrics.RecordGraphRequest(ctx, op, instrumentation.GraphStatus(resp.StatusCode), duration)

	if resp.StatusCode >= http.StatusBadRequest {
		uerr := newUpstreamError(op, resp, body, time.Now())
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			// Graph rejected a token we considered valid.
			if inv, ok := c.tokens.(invalidator); ok {
				inv.Invalidate()
			}
		case http.StatusTooManyRequests:
			c.limiter.RecordThrottle(uerr.RetryAfter)
		}

		instrumentation.SetSpanError(span, uerr)
		c.logger.Warn("graph returned an error",
			logging.Operation(op),
			"status_code", resp.StatusCode,
			"graph_error", uerr.Code,
			"duration", duration)
		return nil, uerr
	}

	instrumentation.SetSpanSuccess(span)
	c.logger.Debug("graph request completed",
		logging.Operation(op),
		"status_code", resp.StatusCode,
		"bytes", len(body),
		"duration", duration)

	return json.RawMessage(body), nil
}

func decode(op string, raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("graph %s: decoding response: %w", op, err)
	}
	return nil
}

// operationFor names a request after the last segment of its path, in
// snake case: /users/x/calendarView becomes "calendar_view".
func operationFor(path string) string {
	path = strings.TrimRight(path, "/")
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.IndexAny(path, "?("); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "root"
	}

	var b strings.Builder
	for i, r := range path {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}
