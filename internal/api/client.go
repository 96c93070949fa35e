package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goodtune/kfocus/internal/catalog"
	"github.com/goodtune/kfocus/internal/filters"
	"github.com/goodtune/kfocus/internal/stats"
	"github.com/goodtune/kfocus/internal/storage"
)

// Client talks to a running daemon's API. The CLI uses it when the daemon
// holds the storage lock.
type Client struct {
	http *resty.Client
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

// Error implements error.
func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HealthResponse is the body of GET /api/system/health.
type HealthResponse struct {
	Status         string   `json:"status"`
	UptimeSeconds  int64    `json:"uptime_seconds"`
	PolicyFiles    []string `json:"policy_files"`
	ClassifierSize int      `json:"classifier_size"`
}

// MonthResponse is the body of GET /api/usage/month.
type MonthResponse struct {
	Weeks []MonthWeek `json:"weeks"`
}

type filtersResponse struct {
	Filters []filters.Status `json:"filters"`
}

// NewClient creates a client for the API at baseURL, e.g. "http://127.0.0.1:8470".
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Accept", "application/json"),
	}
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	var apiErr ErrorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&apiErr).
		Get(path)
	return checkResponse(resp, err, &apiErr)
}

func checkResponse(resp *resty.Response, err error, apiErr *ErrorResponse) error {
	if err != nil {
		return fmt.Errorf("api request failed: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	if resp.StatusCode() == http.StatusNotFound {
		return fmt.Errorf("%s: %w", resp.Request.URL, storage.ErrNotFound)
	}
	if apiErr.Code == "" {
		return fmt.Errorf("api returned status %d", resp.StatusCode())
	}
	return apiErr
}

// Health checks that the daemon is serving.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.get(ctx, "/api/system/health", &out)
	return out, err
}

// Day returns "today" or "yesterday".
func (c *Client) Day(ctx context.Context, which string) (DayResponse, error) {
	var out DayResponse
	err := c.get(ctx, "/api/usage/"+which, &out)
	return out, err
}

// Week returns the trailing week.
func (c *Client) Week(ctx context.Context) (WeekResponse, error) {
	var out WeekResponse
	err := c.get(ctx, "/api/usage/week", &out)
	return out, err
}

// Month returns the current month's week buckets.
func (c *Client) Month(ctx context.Context) (MonthResponse, error) {
	var out MonthResponse
	err := c.get(ctx, "/api/usage/month", &out)
	return out, err
}

// Comparison returns the usage changes.
func (c *Client) Comparison(ctx context.Context) (ComparisonResponse, error) {
	var out ComparisonResponse
	err := c.get(ctx, "/api/usage/comparison", &out)
	return out, err
}

// Stats returns the minutes-saved summary.
func (c *Client) Stats(ctx context.Context) (stats.Summary, error) {
	var out stats.Summary
	err := c.get(ctx, "/api/stats", &out)
	return out, err
}

// Filters returns every filter with its toggle state and streak.
func (c *Client) Filters(ctx context.Context) ([]filters.Status, error) {
	var out filtersResponse
	if err := c.get(ctx, "/api/filters", &out); err != nil {
		return nil, err
	}
	return out.Filters, nil
}

// BestStreak returns the longest active streak.
func (c *Client) BestStreak(ctx context.Context) (BestStreakResponse, error) {
	var out BestStreakResponse
	err := c.get(ctx, "/api/streaks/best", &out)
	return out, err
}

// SetFilter turns a filter on or off.
func (c *Client) SetFilter(ctx context.Context, id catalog.FilterID, enabled bool) (UpdateFilterResponse, error) {
	var out UpdateFilterResponse
	var apiErr ErrorResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(UpdateFilterRequest{Enabled: &enabled}).
		SetResult(&out).
		SetError(&apiErr).
		Put("/api/filters/" + id.String())
	return out, checkResponse(resp, err, &apiErr)
}

// RefreshSequence returns the daemon's refresh request counter.
func (c *Client) RefreshSequence(ctx context.Context) (uint64, error) {
	var out SequenceResponse
	err := c.get(ctx, "/api/snapshot/sequence", &out)
	return out.Sequence, err
}

// Snapshot returns the last published snapshot, or storage.ErrNotFound.
func (c *Client) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	var out storage.Snapshot
	err := c.get(ctx, "/api/snapshot", &out)
	return out, err
}
