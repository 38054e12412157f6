// Package registry queries the Go module proxy for the latest published
// version of a module. The client carries no retry or timeout policy of its
// own; callers bound each lookup with a context deadline.
package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"
	"golang.org/x/mod/module"
)

// DefaultProxyURL is the public Go module proxy.
const DefaultProxyURL = "https://proxy.golang.org"

// Client resolves the latest published version of a module.
type Client interface {
	LatestVersion(ctx context.Context, modulePath string) (string, error)
}

// ProxyClient talks to a GOPROXY-protocol endpoint.
type ProxyClient struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a ProxyClient.
type Option func(*ProxyClient)

// WithBaseURL overrides the proxy endpoint (used by tests).
func WithBaseURL(url string) Option {
	return func(c *ProxyClient) {
		c.baseURL = strings.TrimRight(url, "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *ProxyClient) {
		c.httpClient = hc
	}
}

// NewProxyClient returns a client against the public proxy unless overridden.
func NewProxyClient(opts ...Option) *ProxyClient {
	c := &ProxyClient{
		baseURL:    DefaultProxyURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// latestInfo is the GOPROXY @latest document.
type latestInfo struct {
	Version string `json:"Version"`
	Time    string `json:"Time"`
}

// LatestVersion fetches <base>/<escaped module>/@latest and returns the
// version string (e.g. "v1.2.3").
func (c *ProxyClient) LatestVersion(ctx context.Context, modulePath string) (string, error) {
	escaped, err := module.EscapePath(modulePath)
	if err != nil {
		return "", fmt.Errorf("escaping module path %q: %w", modulePath, err)
	}

	url := fmt.Sprintf("%s/%s/@latest", c.baseURL, escaped)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", modulePath, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching latest version of %s: %w", modulePath, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("proxy returned %s for %s", resp.Status, modulePath)
	}

	var info latestInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("decoding @latest for %s: %w", modulePath, err)
	}
	if info.Version == "" {
		return "", fmt.Errorf("proxy returned empty version for %s", modulePath)
	}
	return info.Version, nil
}
