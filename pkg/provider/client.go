// Package provider implements the resilient client for the upstream market
// data provider: bounded retry with exponential backoff, outbound pacing,
// and a closed error taxonomy.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for provider requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_requests_total",
		Help: "Total provider requests by status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "provider_request_duration_seconds",
		Help:    "Provider fetch duration in seconds, including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "provider_errors_total",
		Help: "Total provider errors by kind",
	}, []string{"kind"})
)

const infoEndpoint = "/cryptocurrency/info"

// Config holds the provider client configuration.
type Config struct {
	// BaseURL is the provider API root, e.g. "https://pro-api.coinmarketcap.com/v2".
	BaseURL string

	// APIKey is sent in the X-CMC_PRO_API_KEY header.
	APIKey string

	// Timeout bounds each individual attempt.
	Timeout time.Duration

	// MaxAttempts is the total attempt budget for retryable failures.
	MaxAttempts int

	// InitialBackoff overrides the backoff before the second attempt.
	// Zero keeps the default.
	InitialBackoff time.Duration

	// RequestsPerSecond paces outbound calls so retries cannot hammer the
	// provider. Zero or negative disables pacing.
	RequestsPerSecond float64
}

// DefaultConfig returns a safe default configuration for the given base URL.
func DefaultConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:           baseURL,
		APIKey:            apiKey,
		Timeout:           10 * time.Second,
		MaxAttempts:       3,
		RequestsPerSecond: 10,
	}
}

// Client fetches normalized insights from the upstream provider.
type Client struct {
	httpClient *http.Client
	config     Config
	retry      RetryConfig
	pacer      *rate.Limiter
	logger     zerolog.Logger
}

// New creates a provider client.
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("provider base URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	retryCfg := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retryCfg.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoff > 0 {
		retryCfg.InitialBackoff = cfg.InitialBackoff
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		retry:      retryCfg,
		pacer:      rate.NewLimiter(limit, 1),
		logger:     logger,
	}, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Fetch retrieves the insight for a symbol. Connection/timeout failures and
// 5xx responses are retried with exponential backoff up to the attempt
// budget; 4xx responses are definitive and returned immediately. Every
// failure is a classified *Error.
func (c *Client) Fetch(ctx context.Context, symbol string) (*Insight, error) {
	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	fetchURL := fmt.Sprintf("%s%s?slug=%s",
		strings.TrimSuffix(c.config.BaseURL, "/"), infoEndpoint, url.QueryEscape(symbol))

	var body []byte
	var lastErr *Error

	retryErr := retryWithBackoff(ctx, c.retry, c.logger, func() error {
		if err := c.pacer.Wait(ctx); err != nil {
			lastErr = &Error{Kind: KindTimeout, Message: "outbound pacing interrupted", Err: err}
			return lastErr
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
		if err != nil {
			lastErr = &Error{Kind: KindInvalid, Message: "build request", Err: err}
			return lastErr
		}
		req.Header.Set("X-CMC_PRO_API_KEY", c.config.APIKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			requestsTotal.WithLabelValues("network_error").Inc()
			c.logger.Warn().Err(err).Str("symbol", symbol).Msg("Provider request failed")
			lastErr = &Error{Kind: KindTimeout, Message: "connection or timeout failure", Err: err}
			return lastErr
		}
		defer resp.Body.Close()

		requestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			kind := classifyStatus(resp.StatusCode)
			c.logger.Warn().
				Str("symbol", symbol).
				Int("status", resp.StatusCode).
				Str("kind", string(kind)).
				Msg("Provider request error")
			lastErr = &Error{Kind: kind, StatusCode: resp.StatusCode, Message: resp.Status}
			return lastErr
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			lastErr = &Error{Kind: KindTimeout, Message: "read response body", Err: err}
			return lastErr
		}
		return nil
	}, func() Kind {
		if lastErr == nil {
			return ""
		}
		return lastErr.Kind
	})

	if retryErr != nil {
		errorsTotal.WithLabelValues(string(lastErr.Kind)).Inc()
		return nil, lastErr
	}

	insight, err := parseInsight(body, symbol)
	if err != nil {
		errorsTotal.WithLabelValues(string(KindParseFailure)).Inc()
		c.logger.Error().Err(err).Str("symbol", symbol).Msg("Provider response failed validation")
		return nil, err
	}

	c.logger.Debug().Str("symbol", symbol).Msg("Provider fetch succeeded")
	return insight, nil
}

// parseInsight decodes and validates a 2xx provider response. The requested
// symbol must be indexed in the payload, and circulating supply and market
// cap must both be present; anything less is a parse failure rather than a
// partial insight.
func parseInsight(body []byte, symbol string) (*Insight, error) {
	var resp providerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{Kind: KindParseFailure, Message: "decode provider response", Err: err}
	}

	coin, ok := resp.Data[symbol]
	if !ok {
		return nil, &Error{
			Kind:    KindParseFailure,
			Message: fmt.Sprintf("no data for symbol %q in provider response", symbol),
		}
	}

	if coin.CirculatingSupply == nil || coin.MarketCap == nil {
		return nil, &Error{
			Kind:    KindParseFailure,
			Message: "missing required market data fields",
		}
	}

	name := coin.Name
	if name == "" && symbol != "" {
		name = strings.ToUpper(symbol[:1]) + symbol[1:]
	}

	var platform *string
	if coin.Platform != nil && coin.Platform.Name != "" {
		platform = &coin.Platform.Name
	}

	return &Insight{
		Symbol:            symbol,
		Name:              name,
		Category:          coin.Category,
		Description:       coin.Description,
		DateLaunched:      coin.DateLaunched,
		Logo:              coin.Logo,
		Platform:          platform,
		CirculatingSupply: *coin.CirculatingSupply,
		MarketCap:         *coin.MarketCap,
	}, nil
}
