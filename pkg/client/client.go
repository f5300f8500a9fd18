// Package client is the hub transport: paginated, tile and bbox feature
// reads, batched uploads and deletes, with request pacing, quota tracking,
// response caching and token refresh.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/space-sync/pkg/cache"
	"github.com/Sternrassler/space-sync/pkg/ratelimit"
	"github.com/klauspost/compress/gzip"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Defaults for Config.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultRatePerSecond   = 10
	DefaultMaxPayloadBytes = 5 * 1024 * 1024
	DefaultMaxURLLength    = 2000
	DefaultUserAgent       = "space-sync/1.0"
)

// Client talks to the hub.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	quota      *ratelimit.Tracker
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is the hub root, e.g. "https://hub.example.com".
	BaseURL string

	// Tokens supplies the bearer token. Nil sends no Authorization header.
	Tokens TokenSource

	UserAgent string

	// Timeout applies to each request.
	Timeout time.Duration

	// RatePerSecond paces requests; <= 0 disables pacing.
	RatePerSecond float64
	Burst         int

	// MaxReauth bounds refresh-and-retry cycles on rejected tokens.
	MaxReauth int

	// Retry selects backoff per error class; nil uses RetryConfigForErrorClass.
	Retry RetryPolicy

	MaxPayloadBytes int
	MaxURLLength    int

	// Redis enables the response cache and shared quota state. Optional.
	Redis    *redis.Client
	CacheTTL time.Duration
}

// DefaultConfig returns a configuration with safe defaults.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:         baseURL,
		UserAgent:       DefaultUserAgent,
		Timeout:         DefaultTimeout,
		RatePerSecond:   DefaultRatePerSecond,
		Burst:           1,
		MaxReauth:       DefaultMaxReauth,
		MaxPayloadBytes: DefaultMaxPayloadBytes,
		MaxURLLength:    DefaultMaxURLLength,
		CacheTTL:        cache.DefaultTTL,
	}
}

// New creates a hub client.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxReauth < 0 {
		return nil, fmt.Errorf("max_reauth must be >= 0 (got %d)", cfg.MaxReauth)
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = DefaultMaxPayloadBytes
	}
	if cfg.MaxURLLength <= 0 {
		cfg.MaxURLLength = DefaultMaxURLLength
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}

	logger := log.With().Str("component", "hub-client").Logger()

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, cfg.Burst),
		quota:      ratelimit.NewTracker(cfg.Redis, logger),
		config:     cfg,
		logger:     logger,
	}

	if cfg.Redis != nil {
		c.cache, err = cache.NewManager(cfg.Redis, cfg.CacheTTL)
		if err != nil {
			return nil, fmt.Errorf("create cache: %w", err)
		}
	}

	return c, nil
}

// request describes one hub call below /hub/spaces/{space}/.
type request struct {
	method    string
	space     string
	endpoint  string
	tag       string
	query     url.Values
	body      []byte
	cacheable bool
}

func (r request) url(base string) string {
	u := fmt.Sprintf("%s/hub/spaces/%s/%s", base, url.PathEscape(r.space), r.endpoint)
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	return u
}

// execute performs a request, refreshing the token when the hub rejects it.
func (c *Client) execute(ctx context.Context, r request) ([]byte, error) {
	for reauths := 0; ; reauths++ {
		data, err := c.send(ctx, r)
		if !errors.Is(err, ErrAuthExpired) {
			return data, err
		}

		if c.config.Tokens == nil || reauths >= c.config.MaxReauth {
			reauthTotal.WithLabelValues("exhausted").Inc()
			return nil, &AuthenticationError{Attempts: reauths, Err: err}
		}

		c.logger.Warn().
			Str("tag", r.tag).
			Int("attempt", reauths+1).
			Msg("Token rejected, refreshing")

		if _, rerr := c.config.Tokens.Refresh(ctx); rerr != nil {
			reauthTotal.WithLabelValues("failed").Inc()
			return nil, &AuthenticationError{Attempts: reauths + 1, Err: fmt.Errorf("refresh token: %w", rerr)}
		}
		reauthTotal.WithLabelValues("refreshed").Inc()
	}
}

// send runs one authenticated request with pacing, quota gating, caching and
// backoff for rate-limit and transport errors.
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	target := r.url(c.config.BaseURL)

	start := time.Now()
	defer func() {
		requestDuration.WithLabelValues(r.tag).Observe(time.Since(start).Seconds())
	}()

	key := cache.Key{Space: r.space, Endpoint: r.endpoint, Query: r.query}
	var cached *cache.Entry
	if r.cacheable && c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		if err != nil && !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("tag", r.tag).Msg("Cache get error")
		}
		cached = entry
	}

	var data []byte
	err := retryWithBackoff(ctx, c.config.Retry, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}
		if err := c.quota.Wait(ctx); err != nil {
			return fmt.Errorf("quota: %w", err)
		}

		req, err := c.newRequest(ctx, r, target)
		if err != nil {
			return err
		}
		if cache.ShouldMakeConditionalRequest(cached) {
			cache.AddConditionalHeaders(req, cached)
		}

		c.logger.Debug().
			Str("tag", r.tag).
			Str("method", r.method).
			Str("url", target).
			Msg("Executing hub request")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			requestsTotal.WithLabelValues(r.tag, "network_error").Inc()
			ne := &NetworkError{URL: target, Tag: r.tag, Timeout: isTimeout(err), Err: err}
			errorsTotal.WithLabelValues(string(ne.Class())).Inc()
			return ne
		}
		defer resp.Body.Close()

		if err := c.quota.UpdateFromHeaders(ctx, resp.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update quota from headers")
		}
		requestsTotal.WithLabelValues(r.tag, strconv.Itoa(resp.StatusCode)).Inc()

		switch {
		case resp.StatusCode == http.StatusNotModified && cached != nil:
			data = cached.Data
			c.refreshCached(ctx, key, resp.Header)
			return nil
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: status %d", ErrAuthExpired, resp.StatusCode)
		case resp.StatusCode == http.StatusNoContent || resp.StatusCode >= 400:
			ne := &NetworkError{Status: resp.StatusCode, URL: target, Tag: r.tag, Err: errorBody(resp)}
			errorsTotal.WithLabelValues(string(ne.Class())).Inc()
			c.logger.Warn().
				Str("tag", r.tag).
				Int("status", resp.StatusCode).
				Str("error_class", string(ne.Class())).
				Msg("Hub request error")
			return ne
		}

		if err := decodeBody(resp); err != nil {
			return &NetworkError{Status: resp.StatusCode, URL: target, Tag: r.tag, Err: err}
		}

		if !r.cacheable || c.cache == nil {
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return &NetworkError{Status: resp.StatusCode, URL: target, Tag: r.tag, Timeout: isTimeout(err), Err: err}
			}
			data = body
			return nil
		}

		entry, err := cache.ResponseToEntry(resp, c.cache.DefaultTTL())
		if err != nil {
			return &NetworkError{Status: resp.StatusCode, URL: target, Tag: r.tag, Timeout: isTimeout(err), Err: err}
		}
		data = entry.Data
		if err := c.cache.Set(ctx, key, entry); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
		return nil
	}, classify)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (c *Client) newRequest(ctx context.Context, r request, target string) (*http.Request, error) {
	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/geo+json, application/json")
	req.Header.Set("Accept-Encoding", "gzip")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/geo+json")
	}

	if c.config.Tokens != nil {
		token, err := c.config.Tokens.Token(ctx)
		if err != nil {
			return nil, &AuthenticationError{Err: fmt.Errorf("get token: %w", err)}
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// refreshCached extends a cached entry after a 304.
func (c *Client) refreshCached(ctx context.Context, key cache.Key, header http.Header) {
	cache.NotModified.Inc()
	c.logger.Debug().Str("key", key.String()).Msg("304 Not Modified, using cache")

	expires := time.Now().Add(c.cache.DefaultTTL())
	if v := header.Get("Expires"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			expires = t
		}
	}
	if err := c.cache.UpdateTTL(ctx, key, expires); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
	}
}

// decodeBody swaps a gzip-encoded body for its decoded stream.
func decodeBody(resp *http.Response) error {
	if !strings.EqualFold(resp.Header.Get("Content-Encoding"), "gzip") {
		return nil
	}
	zr, err := gzip.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("gzip: %w", err)
	}
	resp.Body = struct {
		io.Reader
		io.Closer
	}{zr, resp.Body}
	resp.Header.Del("Content-Encoding")
	return nil
}

// errorBody returns a short error built from the response body.
func errorBody(resp *http.Response) error {
	if err := decodeBody(resp); err != nil {
		return errors.New(resp.Status)
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		return errors.New(resp.Status)
	}
	return fmt.Errorf("%s: %s", resp.Status, msg)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Cache returns the response cache, nil when redis is not configured.
func (c *Client) Cache() *cache.Manager {
	return c.cache
}
