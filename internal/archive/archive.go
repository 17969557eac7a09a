// Package archive downloads release archives and unpacks plugin directories
// from them.
package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/go-units"
	"go.uber.org/zap"

	"github.com/creatorincome/wpup/internal/fsops"
)

// DefaultTimeout bounds a whole archive download.
const DefaultTimeout = 120 * time.Second

var (
	// ErrNoPluginDir is returned when an archive holds no directory.
	ErrNoPluginDir = errors.New("no plugin directory found in archive")

	// ErrUnsafePath is returned for archive entries escaping the destination.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// Downloader fetches archives over HTTP.
type Downloader struct {
	client *http.Client
	log    *zap.Logger
}

// NewDownloader creates a Downloader whose requests time out after timeout.
func NewDownloader(timeout time.Duration, log *zap.Logger) *Downloader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Downloader{
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Download writes the body of url to dst and returns the number of bytes
// written.
func (d *Downloader) Download(ctx context.Context, url, dst string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	d.log.Info("downloading archive", zap.String("url", truncate(url, 50)))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download archive: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to download archive: unexpected status %s", resp.Status)
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}
	n, err := io.Copy(out, resp.Body)
	if err != nil {
		_ = out.Close()
		return n, fmt.Errorf("failed to write archive: %w", err)
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("failed to close archive: %w", err)
	}

	d.log.Info("downloaded archive", zap.String("size", units.HumanSize(float64(n))))
	return n, nil
}

// ExtractPlugin unpacks zipPath into dst and returns the plugin directory:
// dst/<slug> when the archive has it, else the first top-level directory.
func ExtractPlugin(zipPath, dst, slug string) (string, error) {
	if err := Extract(zipPath, dst); err != nil {
		return "", err
	}

	if slug != "" {
		dir := filepath.Join(dst, slug)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, nil
		}
	}

	entries, err := os.ReadDir(dst)
	if err != nil {
		return "", fmt.Errorf("failed to list extracted archive: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			return filepath.Join(dst, e.Name()), nil
		}
	}
	return "", ErrNoPluginDir
}

// Extract unpacks every entry of zipPath into dst.
func Extract(zipPath, dst string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() {
		_ = r.Close()
	}()

	root, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("failed to resolve destination: %w", err)
	}

	for _, f := range r.File {
		target, err := entryPath(root, f.Name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", f.Name, err)
			}
		case mode&os.ModeSymlink != 0:
			// Symlinks are not extracted.
			continue
		default:
			if err := extractFile(f, target); err != nil {
				return err
			}
		}
	}
	return nil
}

// entryPath maps an archive entry name to a path under root.
func entryPath(root, name string) (string, error) {
	name = strings.TrimPrefix(filepath.ToSlash(name), "./")
	if err := fsops.ValidateRelPath(filepath.FromSlash(name)); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrUnsafePath, name, err)
	}
	target := filepath.Join(root, filepath.FromSlash(name))
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return target, nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	perm := f.Mode().Perm()
	if perm == 0 {
		perm = 0644
	}

	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", f.Name, err)
	}
	defer func() {
		_ = in.Close()
	}()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
