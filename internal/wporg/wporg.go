// Package wporg queries the WordPress.org plugin directory for releases.
package wporg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

const (
	// DefaultAPIBase is the plugin information endpoint.
	DefaultAPIBase = "https://api.wordpress.org/plugins/info/1.0"

	// DefaultDownloadBase serves plugin release archives.
	DefaultDownloadBase = "https://downloads.wordpress.org/plugin"

	// DefaultTimeout bounds a version check.
	DefaultTimeout = 30 * time.Second
)

// ErrNoVersion is returned when the directory reports no version.
var ErrNoVersion = errors.New("no version found")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Release is an available plugin release.
type Release struct {
	Version     string `json:"version"`
	DownloadURL string `json:"download_url"`
}

// Client talks to the WordPress.org API.
type Client struct {
	APIBase      string
	DownloadBase string
	HTTP         *http.Client
}

// NewClient creates a Client for the public WordPress.org endpoints.
func NewClient() *Client {
	return &Client{
		APIBase:      DefaultAPIBase,
		DownloadBase: DefaultDownloadBase,
		HTTP:         &http.Client{Timeout: DefaultTimeout},
	}
}

// Check returns the latest release of the plugin slug.
func (c *Client) Check(ctx context.Context, slug string) (*Release, error) {
	if err := validateSlug(slug); err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/%s.json", strings.TrimSuffix(c.APIBase, "/"), url.PathEscape(slug))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query WordPress.org: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to query WordPress.org: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var info struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if info.Version == "" {
		return nil, fmt.Errorf("%w for plugin %s", ErrNoVersion, slug)
	}

	return &Release{
		Version:     info.Version,
		DownloadURL: c.DownloadURL(slug, info.Version),
	}, nil
}

// DownloadURL returns the archive URL of a plugin release.
func (c *Client) DownloadURL(slug, version string) string {
	return fmt.Sprintf("%s/%s.%s.zip", strings.TrimSuffix(c.DownloadBase, "/"), slug, version)
}

func validateSlug(slug string) error {
	if slug == "" {
		return fmt.Errorf("invalid slug: empty")
	}
	if strings.ContainsAny(slug, "/\\?#") || strings.Contains(slug, "..") {
		return fmt.Errorf("invalid slug %q", slug)
	}
	return nil
}
