// Package monday wraps the Monday.com GraphQL API for board reads and
// contact mutations.
package monday

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ColumnIDs identifies the board columns this application reads and writes.
type ColumnIDs struct {
	Phone1       string
	Phone2       string
	DateCreated  string
	LastActivity string
}

// Client defines the Monday.com operations used by this application.
type Client interface {
	// Do executes one GraphQL request and returns the data payload.
	Do(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error)

	Columns(ctx context.Context, boardID string) ([]Column, error)
	Contacts(ctx context.Context, boardID string) ([]Contact, error)
	UpdateLastActivity(ctx context.Context, boardID, itemID string, lastActivity time.Time) error
	UpdateActivity(ctx context.Context, boardID, itemID string, created, lastActivity time.Time) error
	CreateContact(ctx context.Context, boardID, name, phone1, phone2 string, created, lastActivity time.Time) (string, error)
}

// Option configures the Monday client.
type Option func(*httpClient)

// WithAPIURL sets a custom API URL (for testing).
func WithAPIURL(u string) Option {
	return func(c *httpClient) {
		c.apiURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate (5 req/s).
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
	apiKey  string
	apiURL  string
	columns ColumnIDs
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new Monday.com client with the given API key and
// board column mapping.
func NewClient(apiKey string, columns ColumnIDs, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		apiURL:  "https://api.monday.com/v2",
		columns: columns,
		limiter: rate.NewLimiter(5, 5),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

func retryableStatusCode(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// Do executes a GraphQL request. Transport faults, 429s and 5xx responses
// are retried with exponential backoff; GraphQL-level errors are not.
func (c *httpClient) Do(ctx context.Context, query string, variables map[string]any) (json.RawMessage, error) {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monday: marshal request")
	}

	const maxAttempts = 3
	backoff := time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "monday: rate limit")
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(payload))
		if err != nil {
			return nil, eris.Wrap(err, "monday: create request")
		}
		req.Header.Set("Authorization", c.apiKey)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
		} else {
			body, readErr := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if readErr != nil {
				return nil, eris.Wrap(readErr, "monday: read response")
			}

			if !retryableStatusCode(resp.StatusCode) {
				if resp.StatusCode != http.StatusOK {
					return nil, eris.Errorf("monday: status %d: %s", resp.StatusCode, string(body))
				}
				var gql graphQLResponse
				if err := json.Unmarshal(body, &gql); err != nil {
					return nil, eris.Wrap(err, "monday: decode response")
				}
				if len(gql.Errors) > 0 {
					return nil, eris.Errorf("monday: graphql error: %s", gql.Errors[0].Message)
				}
				return gql.Data, nil
			}
			lastErr = eris.Errorf("monday: status %d: %s", resp.StatusCode, string(body))
		}

		if attempt < maxAttempts {
			zap.L().Warn("monday request failed, retrying",
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, eris.Wrap(ctx.Err(), "monday: request cancelled")
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	return nil, eris.Wrap(lastErr, "monday: retries exhausted")
}
