// Package feed provides the HTTP client for the third-party live match feed
// (football-data.org v4 shape) and the import of its matches into the
// external match cache.
//
// The feed uses header-based auth (X-Auth-Token) and a per-minute request
// quota, which the client enforces locally before every call.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the public football-data.org v4 endpoint.
const DefaultBaseURL = "https://api.football-data.org/v4"

// ErrNotConfigured is returned when no API key is set for the feed.
var ErrNotConfigured = errors.New("match feed is not configured")

// UpstreamError reports a non-2xx response from the feed.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("match feed returned %d: %s", e.Status, e.Body)
}

// matchFilters are the query parameters forwarded to GET /matches.
var matchFilters = []string{"dateFrom", "dateTo", "status", "competitions", "ids"}

// Client is the HTTP client for the match feed.
type Client struct {
	http    *resty.Client
	apiKey  string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a feed client that issues at most requestsPerMinute
// calls per minute.
func NewClient(baseURL, apiKey string, requestsPerMinute int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if requestsPerMinute < 1 {
		requestsPerMinute = 10
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30*time.Second).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetHeader("X-Auth-Token", apiKey)
	}

	rps := float64(requestsPerMinute) / 60.0
	return &Client{
		http:    client,
		apiKey:  apiKey,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		logger:  logger,
	}
}

// Configured reports whether the client has an API key.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// Matches fetches the current match list and returns the feed's JSON body
// unchanged. Only the known filter parameters in query are forwarded.
func (c *Client) Matches(ctx context.Context, query url.Values) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	params := map[string]string{}
	for _, key := range matchFilters {
		if v := query.Get(key); v != "" {
			params[key] = v
		}
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/matches")
	if err != nil {
		return nil, fmt.Errorf("http request /matches: %w", err)
	}

	if resp.IsError() {
		return nil, &UpstreamError{Status: resp.StatusCode(), Body: truncate(resp.Body(), 200)}
	}

	body := resp.Body()
	if !json.Valid(body) {
		return nil, errors.New("match feed returned invalid JSON")
	}

	c.logger.Debug("fetched live matches", "bytes", len(body), "filters", params)
	return json.RawMessage(body), nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
