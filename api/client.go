// Package api is the client for the listing and scrape REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"scooby/models"
)

const (
	pathProperties = "/api/v1/properties"
	pathStatsCity  = "/api/v1/properties/stats/city"
	pathStatsPrice = "/api/v1/properties/stats/price"
	pathScrape     = "/api/v1/scrape"
	pathStatus     = "/api/v1/scrape/status"
	pathLogs       = "/api/v1/scrape/logs"
)

// NetworkError is a transport failure: the request never produced a response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// IsNetworkError reports whether err is, or wraps, a NetworkError.
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// StatusError is a non-2xx response.
type StatusError struct {
	Op         string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Detail)
}

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a client for baseURL. ratePerSecond caps outbound requests;
// zero or less disables the limiter.
func New(baseURL string, httpClient *http.Client, ratePerSecond float64) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if ratePerSecond > 0 {
		burst := int(ratePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSecond), burst)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		limiter: limiter,
	}
}

// BaseURL returns the API root without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// ListProperties runs a listing query. params are sent verbatim.
func (c *Client) ListProperties(ctx context.Context, params url.Values) ([]models.PropertyRecord, error) {
	var out []models.PropertyRecord
	if err := c.get(ctx, "list properties", pathProperties, params, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CityStats(ctx context.Context) ([]models.CityCount, error) {
	var out []models.CityCount
	if err := c.get(ctx, "city stats", pathStatsCity, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PriceStats(ctx context.Context) ([]models.CityAvgPrice, error) {
	var out []models.CityAvgPrice
	if err := c.get(ctx, "price stats", pathStatsPrice, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StartScrape creates a background scrape job. The request is sent as given;
// normalisation belongs to the caller.
func (c *Client) StartScrape(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeAck, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	var ack models.ScrapeAck
	if err := c.do(ctx, "start scrape", http.MethodPost, pathScrape, nil, bytes.NewReader(body), &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// ScrapeStatus lists tasks, or the single task taskID when it is set.
func (c *Client) ScrapeStatus(ctx context.Context, taskID string) (*models.TaskList, error) {
	q := url.Values{}
	if taskID != "" {
		q.Set("task_id", taskID)
	}
	var out models.TaskList
	if err := c.get(ctx, "scrape status", pathStatus, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScrapeLogs returns the latest formatted log lines.
func (c *Client) ScrapeLogs(ctx context.Context, taskID string, limit int) (*models.LogList, error) {
	q := url.Values{}
	if taskID != "" {
		q.Set("task_id", taskID)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var out models.LogList
	if err := c.get(ctx, "scrape logs", pathLogs, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any) error {
	return c.do(ctx, op, http.MethodGet, path, q, nil, out)
}

func (c *Client) do(ctx context.Context, op, method, path string, q url.Values, body io.Reader, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &NetworkError{Op: op, Err: err}
	}

	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Printf("API error %s %s (request %s): %d", method, path, requestID, resp.StatusCode)
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Detail: errorDetail(respBody)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// errorDetail extracts the "detail" field the API puts in error bodies,
// falling back to the raw text.
func errorDetail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		b, _ := json.Marshal(payload.Detail)
		return string(b)
	}
	return strings.TrimSpace(string(body))
}
