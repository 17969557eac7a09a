// Package license queries a licensing endpoint for premium plugin releases.
package license

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/creatorincome/wpup/internal/wporg"
)

// DefaultTimeout bounds a license check.
const DefaultTimeout = 30 * time.Second

// ErrNoVersion is returned when no response entry carries a new_version.
var ErrNoVersion = errors.New("no version info found in license API response")

// Release is the release type shared with the WordPress.org client.
type Release = wporg.Release

// Request describes the licensed plugin being checked.
type Request struct {
	APIURL         string
	LicenseKey     string
	PluginBasename string
	ProductName    string
	Email          string
	Domain         string
	Instance       string
}

// Client posts license checks.
type Client struct {
	HTTP *http.Client
}

// NewClient creates a Client with the default timeout.
func NewClient() *Client {
	return &Client{HTTP: &http.Client{Timeout: DefaultTimeout}}
}

// PluginKey returns the key the endpoint files a plugin under: the hex SHA-1
// of its basename.
func PluginKey(basename string) string {
	sum := sha1.Sum([]byte(basename))
	return hex.EncodeToString(sum[:])
}

// Form builds the form body for req.
func Form(req *Request) url.Values {
	key := PluginKey(req.PluginBasename)
	field := func(name string) string {
		return fmt.Sprintf("plugins[%s][%s]", key, name)
	}

	form := url.Values{}
	form.Set(field("plugin_slug"), req.PluginBasename)
	form.Set(field("email"), req.Email)
	form.Set(field("license_key"), req.LicenseKey)
	form.Set(field("product_id"), req.ProductName)
	form.Set(field("api_key"), req.LicenseKey)
	form.Set(field("version"), "1.0.0")
	form.Set(field("activation_email"), req.Email)
	form.Set(field("domain"), req.Domain)
	form.Set(field("instance"), req.Instance)
	return form
}

// Check posts the plugin descriptor and returns the first release the
// response offers.
func (c *Client) Check(ctx context.Context, req *Request) (*Release, error) {
	if req.APIURL == "" {
		return nil, fmt.Errorf("license API URL is required")
	}
	if req.PluginBasename == "" {
		return nil, fmt.Errorf("plugin basename is required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.APIURL, strings.NewReader(Form(req).Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("User-Agent", "WordPress/6.4; https://"+req.Domain)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to query license API: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to query license API: unexpected status %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return parseResponse(body)
}

type entry struct {
	NewVersion string `json:"new_version"`
	Package    string `json:"package"`
}

// parseResponse walks the top-level object in document order and returns the
// first entry with a new_version.
func parseResponse(body []byte) (*Release, error) {
	api := jsoniter.ConfigCompatibleWithStandardLibrary
	iter := api.BorrowIterator(body)
	defer api.ReturnIterator(iter)

	var found *Release
	iter.ReadMapCB(func(it *jsoniter.Iterator, _ string) bool {
		if it.WhatIsNext() != jsoniter.ObjectValue {
			it.Skip()
			return true
		}
		var e entry
		it.ReadVal(&e)
		if e.NewVersion == "" {
			return true
		}
		found = &Release{Version: e.NewVersion, DownloadURL: e.Package}
		return false
	})

	if found != nil {
		return found, nil
	}
	if iter.Error != nil && !errors.Is(iter.Error, io.EOF) {
		return nil, fmt.Errorf("failed to decode response: %w", iter.Error)
	}
	return nil, ErrNoVersion
}
