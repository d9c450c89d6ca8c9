package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/parkpoomdev/sos-thai-flood-map/internal/domain"
	"github.com/parkpoomdev/sos-thai-flood-map/internal/observability"
	"golang.org/x/time/rate"
)

// StatusError is returned for a non-2xx feed response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed error: status %d: %s", e.Code, e.Body)
}

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 512

// Client downloads the SOS feed. The HTTP client has no timeout: a hung
// request only holds the caller's Loading state and is bounded by ctx.
type Client struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewClient creates a feed client throttled to ratePerSec requests per second.
func NewClient(url string, ratePerSec float64, logger *slog.Logger, metrics *observability.Metrics) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{},
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), 1),
		logger:     logger,
		metrics:    metrics,
	}
}

// Fetch downloads and parses the full envelope.
func (c *Client) Fetch(ctx context.Context) (domain.Envelope, error) {
	start := time.Now()
	body, err := c.get(ctx, "full")
	if err != nil {
		return domain.Envelope{}, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		c.metrics.FeedRequests.WithLabelValues("full", "error").Inc()
		return domain.Envelope{}, fmt.Errorf("read feed body: %w", err)
	}
	env, err := domain.ParseEnvelope(data)
	if err != nil {
		c.metrics.FeedRequests.WithLabelValues("full", "error").Inc()
		return domain.Envelope{}, err
	}

	c.metrics.FeedRequests.WithLabelValues("full", "success").Inc()
	c.metrics.FeedDuration.Observe(time.Since(start).Seconds())
	c.logger.Debug("feed fetched", "items", len(env.Items()), "fetched_at", env.FetchedAt, "bytes", len(data))
	return env, nil
}

// FetchToken requests the feed only to read its freshness token. The item
// list is skipped by the decoder rather than materialized.
func (c *Client) FetchToken(ctx context.Context) (domain.Token, error) {
	body, err := c.get(ctx, "token")
	if err != nil {
		return "", err
	}
	defer body.Close()

	var head struct {
		FetchedAt domain.Token `json:"fetched_at"`
	}
	if err := json.NewDecoder(body).Decode(&head); err != nil {
		c.metrics.FeedRequests.WithLabelValues("token", "error").Inc()
		return "", fmt.Errorf("decode feed token: %w", err)
	}
	c.metrics.FeedRequests.WithLabelValues("token", "success").Inc()
	return head.FetchedAt, nil
}

func (c *Client) get(ctx context.Context, kind string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("feed rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.FeedRequests.WithLabelValues(kind, "error").Inc()
		return nil, fmt.Errorf("feed request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.metrics.FeedRequests.WithLabelValues(kind, "error").Inc()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	return resp.Body, nil
}
