// Package httpclient provides the HTTP transport shared by the provider
// adapters: user agent, per-provider request rate limiting, status code
// mapping onto search connection errors and request metrics.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/Sternrassler/search-client/pkg/search"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Prometheus metrics for provider HTTP requests.
var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "search_http_requests_total",
		Help: "Total provider HTTP requests by source and status",
	}, []string{"source", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "search_http_request_duration_seconds",
		Help:    "Provider HTTP request duration in seconds by source",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"source"})
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "search-client/1.0 (+https://github.com/Sternrassler/search-client)"

// networkErrorMessage is the connection error text for failed round trips.
const networkErrorMessage = "Unable to send request, check connectivity"

// Config holds the transport configuration of one provider.
type Config struct {
	// Source names the provider in errors and metrics, e.g. "Bing".
	Source string

	// UserAgent header (default: DefaultUserAgent).
	UserAgent string

	// RateLimit is the request rate in requests per second; 0 disables it.
	RateLimit float64

	// Timeout bounds one round trip (default: 30s).
	Timeout time.Duration
}

// DefaultConfig returns a configuration with the default user agent and
// no rate limit.
func DefaultConfig(source string) Config {
	return Config{
		Source:    source,
		UserAgent: DefaultUserAgent,
		Timeout:   30 * time.Second,
	}
}

// ConfigFromParams reads the user_agent and rate_limit params over the
// defaults for source.
func ConfigFromParams(source string, params search.Params) Config {
	cfg := DefaultConfig(source)
	if ua := params.String("user_agent"); ua != "" {
		cfg.UserAgent = ua
	}
	cfg.RateLimit = params.Float("rate_limit", 0)
	if secs := params.Float("timeout", 0); secs > 0 {
		cfg.Timeout = time.Duration(secs * float64(time.Second))
	}
	return cfg
}

// Client performs provider requests.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	config     Config
	logger     zerolog.Logger
}

// New creates a client for one provider.
func New(cfg Config) (*Client, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("source is required")
	}
	if cfg.RateLimit < 0 {
		return nil, fmt.Errorf("rate_limit must be >= 0 (got %v)", cfg.RateLimit)
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		config:     cfg,
		logger:     log.With().Str("component", "http-client").Str("source", cfg.Source).Logger(),
	}, nil
}

// Source returns the provider name used in errors.
func (c *Client) Source() string {
	return c.config.Source
}

// Do sends req after waiting for the rate limiter. Round trip failures and
// any status other than 200 are returned as search connection errors; on
// success the caller owns the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	source := c.config.Source

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%s rate limit wait: %w", source, err)
	}

	startTime := time.Now()
	defer func() {
		httpRequestDuration.WithLabelValues(source).Observe(time.Since(startTime).Seconds())
	}()

	req.Header.Set("User-Agent", c.config.UserAgent)

	c.logger.Debug().
		Str("method", req.Method).
		Str("url", req.URL.Redacted()).
		Msg("Executing provider request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		httpRequestsTotal.WithLabelValues(source, "network_error").Inc()
		c.logger.Error().Err(err).Msg("Provider request failed")
		return nil, search.NewConnectionError(source, 0, networkErrorMessage, err)
	}

	httpRequestsTotal.WithLabelValues(source, strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Msg("Provider request error")
		return nil, search.NewConnectionError(source, resp.StatusCode, resp.Status, nil)
	}

	return resp, nil
}

// Get performs a GET request to rawURL with params merged into its query.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values, headers map[string]string) (*http.Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, search.NewParamError(c.config.Source, "invalid endpoint %q: %v", rawURL, err)
	}
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.Do(req)
}

// GetJSON performs a GET request and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, headers map[string]string, v any) error {
	if headers == nil {
		headers = map[string]string{}
	}
	if _, ok := headers["Accept"]; !ok {
		headers["Accept"] = "application/json"
	}

	resp, err := c.Get(ctx, rawURL, params, headers)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return search.NewConnectionError(c.config.Source, 0, "Unable to decode engine response", err)
	}
	return nil
}

// GetDocument performs a GET request and parses the HTML body.
func (c *Client) GetDocument(ctx context.Context, rawURL string, params url.Values, headers map[string]string) (*goquery.Document, error) {
	resp, err := c.Get(ctx, rawURL, params, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, search.NewConnectionError(c.config.Source, 0, "Unable to parse engine response", err)
	}
	return doc, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
