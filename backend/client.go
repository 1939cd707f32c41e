package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Site is one installation visible to the account.
type Site struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Metric describes one series the service can report for a site.
type Metric struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// ScheduleWindow is one configured run window of the charge scheduler.
type ScheduleWindow struct {
	ID              int     `json:"id"`
	StartMS         int64   `json:"start_ms"`
	DurationMinutes int     `json:"duration_minutes"`
	TargetSOC       float64 `json:"target_soc"`
}

// SchedulerStatus is the remote scheduler's view of a site.
type SchedulerStatus struct {
	State       string           `json:"state"`
	ActiveID    int              `json:"active_id"`
	Windows     []ScheduleWindow `json:"windows"`
	UpdatedAtMS int64            `json:"updated_at_ms"`
}

// ScheduleRequest asks the scheduler to add a run window.
type ScheduleRequest struct {
	StartMS         int64   `json:"start_ms"`
	DurationMinutes int     `json:"duration_minutes"`
	TargetSOC       float64 `json:"target_soc"`
}

// APIError is a non-2xx response from the monitoring service.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s (%s)", e.Message, http.StatusText(e.StatusCode))
	}
	return "api: " + http.StatusText(e.StatusCode)
}

// Client is a typed wrapper around the monitoring service's REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		token:   cfg.APIToken,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var payload io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		payload = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return fmt.Errorf("building %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("X-Authorization", "Token "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var wrapper struct {
			Error *APIError `json:"error"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&wrapper); decodeErr == nil && wrapper.Error != nil {
			apiErr.Code = wrapper.Error.Code
			apiErr.Message = wrapper.Error.Message
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

// Sites lists the installations visible to the configured token.
func (c *Client) Sites(ctx context.Context) ([]Site, error) {
	var out struct {
		Sites []Site `json:"sites"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/sites", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Sites, nil
}

// Metrics lists the series available for a site.
func (c *Client) Metrics(ctx context.Context, siteID int) ([]Metric, error) {
	var out struct {
		Metrics []Metric `json:"metrics"`
	}
	path := fmt.Sprintf("/api/v1/sites/%d/metrics", siteID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Metrics, nil
}

// statsResponse is the service's loosely-typed stats payload: records are
// [timestampMS, value] pairs where either element may be null. This is the
// single boundary where that shape is normalized into Series.
type statsResponse struct {
	Code    string        `json:"code"`
	Name    string        `json:"name"`
	Unit    string        `json:"unit"`
	Records [][2]*float64 `json:"records"`
}

// Stats fetches one metric's samples for [startMS, endMS]. Records with a
// null timestamp are dropped; records with a null value become missing
// samples rather than zeros.
func (c *Client) Stats(ctx context.Context, siteID int, metric string, startMS, endMS int64) (Series, error) {
	query := url.Values{}
	query.Set("metric", metric)
	query.Set("start", strconv.FormatInt(startMS, 10))
	query.Set("end", strconv.FormatInt(endMS, 10))
	var out statsResponse
	path := fmt.Sprintf("/api/v1/sites/%d/stats", siteID)
	if err := c.do(ctx, http.MethodGet, path, query, nil, &out); err != nil {
		return Series{}, err
	}
	name := out.Name
	if name == "" {
		name = metric
	}
	s := Series{ID: metric, Name: name, Samples: make([]Sample, 0, len(out.Records))}
	for _, rec := range out.Records {
		if rec[0] == nil {
			continue
		}
		sample := Sample{TimestampMS: int64(*rec[0])}
		if rec[1] != nil {
			sample.Value = *rec[1]
			sample.Valid = true
		}
		s.Samples = append(s.Samples, sample)
	}
	return s, nil
}

// SchedulerStatus fetches the charge scheduler's state for a site.
func (c *Client) SchedulerStatus(ctx context.Context, siteID int) (SchedulerStatus, error) {
	var out SchedulerStatus
	path := fmt.Sprintf("/api/v1/sites/%d/scheduler", siteID)
	err := c.do(ctx, http.MethodGet, path, nil, nil, &out)
	return out, err
}

// SubmitWindow asks the scheduler to add a run window and returns the
// resulting status.
func (c *Client) SubmitWindow(ctx context.Context, siteID int, req ScheduleRequest) (SchedulerStatus, error) {
	var out SchedulerStatus
	path := fmt.Sprintf("/api/v1/sites/%d/scheduler/windows", siteID)
	err := c.do(ctx, http.MethodPost, path, nil, req, &out)
	return out, err
}
