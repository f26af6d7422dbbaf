// Package discogs provides a rate-limited client for the Discogs REST API.
package discogs

import (
	"net/http"
	"strings"
	"time"

	"github.com/lepinkainen/crate/internal/cache"
	"github.com/lepinkainen/crate/internal/metrics"
	"github.com/lepinkainen/crate/internal/ratelimit"
)

const (
	defaultBaseURL           = "https://api.discogs.com"
	defaultUserAgent         = "crate/1.0 +https://github.com/lepinkainen/crate"
	defaultMaxRetries        = 3
	defaultRequestTimeout    = 30 * time.Second
	defaultRequestsPerMinute = 60
	defaultRateLimitWait     = 60 * time.Second
	maxRetryAfter            = 24 * time.Hour
	maxArtworkCandidates     = 5
)

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is a Discogs API client. Every request passes through the shared Gate.
type Client struct {
	baseURL        string
	userAgent      string
	httpClient     HTTPDoer
	gate           *ratelimit.Gate
	session        *Session
	maxRetries     int
	requestTimeout time.Duration
	cache          *cache.CacheDB
	metrics        *metrics.Metrics
}

// NewClient creates a client that authenticates with whatever credential the
// session currently holds.
func NewClient(session *Session, opts ...Option) *Client {
	if session == nil {
		session = NewSession("")
	}
	client := &Client{
		baseURL:        defaultBaseURL,
		userAgent:      defaultUserAgent,
		httpClient:     &http.Client{},
		gate:           ratelimit.NewGate(defaultRequestsPerMinute),
		session:        session,
		maxRetries:     defaultMaxRetries,
		requestTimeout: defaultRequestTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithBaseURL sets a custom base URL for the Discogs API.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithGate shares an existing admission gate.
func WithGate(gate *ratelimit.Gate) Option {
	return func(client *Client) {
		if gate != nil {
			client.gate = gate
		}
	}
}

// WithMaxRetries sets how many times a 429 response is retried.
func WithMaxRetries(n int) Option {
	return func(client *Client) {
		if n >= 0 {
			client.maxRetries = n
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(client *Client) {
		if ua != "" {
			client.userAgent = ua
		}
	}
}

// WithRequestTimeout bounds each individual attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(client *Client) {
		if d > 0 {
			client.requestTimeout = d
		}
	}
}

// WithCache serves release and search lookups through the response cache.
func WithCache(c *cache.CacheDB) Option {
	return func(client *Client) {
		client.cache = c
	}
}

// WithMetrics records request outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(client *Client) {
		client.metrics = m
	}
}

// Enabled reports whether any credential is available.
func (c *Client) Enabled() bool {
	return c.session.Current() != nil
}

// Session returns the credential session the client signs requests with.
func (c *Client) Session() *Session {
	return c.session
}

// Gate returns the admission gate.
func (c *Client) Gate() *ratelimit.Gate {
	return c.gate
}
