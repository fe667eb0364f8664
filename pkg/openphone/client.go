// Package openphone provides a client for the OpenPhone REST API with
// cursor pagination and retry-forever streaming.
package openphone

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// Page is one page of a cursor-paginated OpenPhone response.
type Page struct {
	Data          []json.RawMessage `json:"data"`
	NextPageToken string            `json:"nextPageToken"`
}

// Client defines the OpenPhone API operations used by this application.
type Client interface {
	// GetPage issues a single page request against the given endpoint.
	// Non-2xx responses are returned as errors; the client does not retry.
	GetPage(ctx context.Context, endpoint string, params url.Values) (*Page, error)
}

// Option configures the OpenPhone client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithPageSize overrides the default page size (100).
func WithPageSize(n int) Option {
	return func(c *httpClient) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRateLimit overrides the default request rate (10 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	apiKey   string
	baseURL  string
	pageSize int
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a new OpenPhone client with the given API key.
// Requests are throttled to 10 req/s by default.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:   apiKey,
		baseURL:  "https://api.openphone.com/v1",
		pageSize: 100,
		limiter:  rate.NewLimiter(10, 10),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) GetPage(ctx context.Context, endpoint string, params url.Values) (*Page, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "openphone: rate limit")
		}
	}

	q := url.Values{}
	for k, vs := range params {
		q[k] = vs
	}
	if q.Get("maxResults") == "" {
		q.Set("maxResults", strconv.Itoa(c.pageSize))
	}

	reqURL := c.baseURL + "/" + endpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "openphone: create request")
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "openphone: get %s", endpoint)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "openphone: read response from %s", endpoint)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, eris.Errorf("openphone: status %d from %s: %s", resp.StatusCode, endpoint, string(body))
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, eris.Wrapf(err, "openphone: decode page from %s", endpoint)
	}

	return &page, nil
}
