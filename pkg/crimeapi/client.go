// Package crimeapi is a client for the backend proxy that serves crime
// severity baselines.
package crimeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Client fetches crime baselines.
type Client interface {
	Baseline(ctx context.Context, req BaselineRequest) (*BaselineResponse, error)
}

// BaselineRequest identifies the circle and lookback window to score.
type BaselineRequest struct {
	Latitude     float64
	Longitude    float64
	RadiusMeters float64
	WindowDays   int
}

// BaselineResponse is the proxy's reply. CSI is a pointer so a missing
// field is distinguishable from a zero index.
type BaselineResponse struct {
	CSI           *float64 `json:"csi"`
	IncidentCount int      `json:"incident_count"`
	WindowDays    int      `json:"window_days"`
	Source        string   `json:"source"`
}

// StatusError is returned for non-200 replies.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("crimeapi: unexpected status %d: %s", e.StatusCode, e.Body)
}

// StatusCode extracts the HTTP status from err, or 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithAPIKey sends key in the X-API-Key header.
func WithAPIKey(key string) Option {
	return func(c *httpClient) { c.apiKey = key }
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client for the proxy at baseURL.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Baseline(ctx context.Context, r BaselineRequest) (*BaselineResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "crimeapi: rate limit")
		}
	}

	params := url.Values{
		"lat":         {strconv.FormatFloat(r.Latitude, 'f', 6, 64)},
		"lng":         {strconv.FormatFloat(r.Longitude, 'f', 6, 64)},
		"radius_m":    {strconv.FormatFloat(r.RadiusMeters, 'f', -1, 64)},
		"window_days": {strconv.Itoa(r.WindowDays)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/crime/baseline?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "crimeapi: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "crimeapi: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, eris.Wrap(err, "crimeapi: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	var out BaselineResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "crimeapi: unmarshal response")
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
