// Package composer generates composer.json manifests for plugin and theme
// branches.
package composer

import (
	"errors"
	"fmt"
	"path/filepath"

	jsoniter "github.com/json-iterator/go"

	"github.com/creatorincome/wpup/internal/fsops"
)

const (
	// FileName is the manifest written by Write.
	FileName = "composer.json"

	// DefaultVendor is the package namespace used when none is given.
	DefaultVendor = "creatorincome"

	// License is declared on every generated package.
	License = "proprietary"
)

// Package types accepted by Generate.
const (
	TypePlugin = "wordpress-plugin"
	TypeTheme  = "wordpress-theme"
)

// ErrInvalidType is returned for a package type other than TypePlugin or
// TypeTheme.
var ErrInvalidType = errors.New("invalid package type")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Manifest is the content of a generated composer.json. Field order is the
// output order.
type Manifest struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Version     string `json:"version"`
	License     string `json:"license"`
	Description string `json:"description,omitempty"`
}

// Options carries the optional manifest fields.
type Options struct {
	Description string
	Vendor      string
}

// New builds the manifest for <vendor>/<name>.
func New(name, version, pkgType string, opts Options) (*Manifest, error) {
	if err := fsops.ValidateIdentifier(name); err != nil {
		return nil, fmt.Errorf("package name: %w", err)
	}
	if version == "" {
		return nil, fmt.Errorf("package version is required")
	}
	if pkgType != TypePlugin && pkgType != TypeTheme {
		return nil, fmt.Errorf("%w: %q (want %s or %s)", ErrInvalidType, pkgType, TypePlugin, TypeTheme)
	}

	vendor := opts.Vendor
	if vendor == "" {
		vendor = DefaultVendor
	}
	return &Manifest{
		Name:        vendor + "/" + name,
		Type:        pkgType,
		Version:     version,
		License:     License,
		Description: opts.Description,
	}, nil
}

// Generate returns the manifest as two-space indented JSON with a trailing
// newline.
func Generate(name, version, pkgType string, opts Options) ([]byte, error) {
	m, err := New(name, version, pkgType, opts)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Write generates the manifest and writes it to dir/composer.json. It
// returns the written path.
func Write(fs fsops.FS, dir, name, version, pkgType string, opts Options) (string, error) {
	data, err := Generate(name, version, pkgType, opts)
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, FileName)
	if err := fs.AtomicWrite(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
