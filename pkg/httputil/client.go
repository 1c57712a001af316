package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/matzehuels/shotframe/pkg/buildinfo"
	"github.com/matzehuels/shotframe/pkg/errors"
	"github.com/matzehuels/shotframe/pkg/observability"
)

const (
	defaultTimeout  = 20 * time.Second
	defaultMaxBytes = 10 << 20
)

// Response is a fetched body and its media type.
type Response struct {
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// Client performs GET requests with retries and optional caching.
type Client struct {
	http     *http.Client
	cache    *Cache
	attempts int
	delay    time.Duration
	maxBytes int64
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithCache stores successful responses in cache.
func WithCache(cache *Cache) ClientOption {
	return func(c *Client) { c.cache = cache }
}

// WithRetry sets the attempt count and the initial backoff delay.
func WithRetry(attempts int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.attempts = attempts
		c.delay = delay
	}
}

// WithMaxBytes limits how much of a body is read.
func WithMaxBytes(n int64) ClientOption {
	return func(c *Client) { c.maxBytes = n }
}

// NewClient returns a client with a 20s timeout, 3 attempts from one second
// backoff, a 10 MiB body limit and no cache.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		http:     &http.Client{Timeout: defaultTimeout},
		attempts: 3,
		delay:    time.Second,
		maxBytes: defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches rawURL. Cached responses are returned without a request.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	if err := errors.ValidateURL(rawURL); err != nil {
		return nil, err
	}
	if c.cache != nil {
		if resp, err := c.cache.Get(rawURL); err == nil && resp != nil {
			observability.Cache().OnCacheHit(ctx, "http")
			return resp, nil
		}
		observability.Cache().OnCacheMiss(ctx, "http")
	}

	var resp *Response
	err := Retry(ctx, c.attempts, c.delay, func() error {
		r, err := c.do(ctx, rawURL)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		if errors.GetCode(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "get %s", rawURL)
	}

	if c.cache != nil {
		if err := c.cache.Set(rawURL, resp); err == nil {
			observability.Cache().OnCacheSet(ctx, "http", len(resp.Body))
		}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, rawURL string) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse %s", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "build request")
	}
	hooks := observability.HTTP()
	req.Header.Set("User-Agent", buildinfo.UserAgent())

	hooks.OnRequest(ctx, req.Method, u.Host, u.Path)
	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, u.Host, u.Path, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, Retryable(err)
	}
	defer res.Body.Close()
	hooks.OnResponse(ctx, req.Method, u.Host, u.Path, res.StatusCode, time.Since(start))

	switch {
	case res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500:
		return nil, Retryable(fmt.Errorf("%s: %s", rawURL, res.Status))
	case res.StatusCode >= 400:
		return nil, errors.New(errors.ErrCodeNetwork, "%s: %s", rawURL, res.Status)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, c.maxBytes))
	if err != nil {
		return nil, Retryable(err)
	}
	return &Response{
		URL:         rawURL,
		ContentType: res.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}
