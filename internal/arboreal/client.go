// Package arboreal talks to the Arboreal forestry API.
package arboreal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"arboreal/harvest/internal/table"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.arboreal.se"

// DefaultTimeout bounds a single upstream request.
const DefaultTimeout = 30 * time.Second

const keyPrefix = "Key "

// maxErrorBody caps how much of a failed response is kept for the error message.
const maxErrorBody = 512

// ErrInvalidAPIKey is returned by ValidateAPIKey.
var ErrInvalidAPIKey = errors.New(`API key must start with "Key "`)

// ValidateAPIKey checks the key has the form the API expects in its
// Authorization header.
func ValidateAPIKey(key string) error {
	if !strings.HasPrefix(key, keyPrefix) || strings.TrimSpace(key[len(keyPrefix):]) == "" {
		return ErrInvalidAPIKey
	}
	return nil
}

// StatusError is a non-2xx upstream response.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s: upstream returned %d %s", e.Endpoint, e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Client fetches sample summaries and details.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = &http.Client{Timeout: d}
		}
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New returns a client for the API rooted at baseURL. An empty baseURL means
// DefaultBaseURL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: DefaultTimeout},
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchSampleList returns every sample summary visible to the key.
func (c *Client) FetchSampleList(ctx context.Context) ([]*table.Record, error) {
	body, err := c.get(ctx, "getFilteredSamples", nil)
	if err != nil {
		return nil, err
	}
	records, err := table.DecodeRecords(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode sample list: %w", err)
	}
	return records, nil
}

// FetchSampleDetail returns the detail payload for one sample. A 404 yields
// (nil, nil): the sample is absent.
func (c *Client) FetchSampleDetail(ctx context.Context, sampleID int64) ([]*table.Record, error) {
	q := url.Values{"id": {strconv.FormatInt(sampleID, 10)}}
	body, err := c.get(ctx, "getSampleById", q)
	if err != nil {
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	records, err := table.DecodeRecords(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("decode sample %d: %w", sampleID, err)
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	u := c.baseURL + "/" + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	c.logger.Debug("upstream request",
		slog.String("endpoint", endpoint),
		slog.String("query", q.Encode()),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(data)),
		slog.Duration("elapsed", time.Since(start)))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody] + "..."
		}
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: msg}
	}
	return data, nil
}
