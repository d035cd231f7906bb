// Package registry looks up published package metadata from an
// npm-compatible registry.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/holon-run/merge-release/pkg/log"
)

// DefaultTimeout bounds a single lookup request.
const DefaultTimeout = 30 * time.Second

// ErrNotFound means the package (or its latest dist-tag) is not published.
var ErrNotFound = errors.New("package not found in registry")

// StatusError is returned for unexpected HTTP responses.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("registry returned %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("registry returned %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// PackageInfo is the "latest" metadata of a published package.
type PackageInfo struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
	// GitHead is the commit the version was published from. npm records it
	// when publishing from a git checkout.
	GitHead string `json:"gitHead" yaml:"gitHead"`
}

// Client queries one registry.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient replaces the HTTP client. The client is used as given;
// WithTimeout does not modify it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a client for the registry at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	return c
}

// BaseURL returns the registry base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// LatestURL returns the metadata URL for the latest version of name.
// Scoped names keep their "@" and encode the separator.
func (c *Client) LatestURL(name string) string {
	return c.baseURL + "/" + strings.Replace(name, "/", "%2f", 1) + "/latest"
}

// Latest fetches the latest published metadata for name.
func (c *Client) Latest(ctx context.Context, name string) (*PackageInfo, error) {
	url := c.LatestURL(name)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	log.Debug("looking up latest release", "url", url)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var info PackageInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode metadata from %s: %w", url, err)
	}
	if info.Version == "" {
		return nil, fmt.Errorf("%w: %s has no latest version", ErrNotFound, name)
	}

	return &info, nil
}
