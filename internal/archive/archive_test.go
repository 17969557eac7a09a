package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildZip writes a zip holding files (names ending in "/" are directories).
func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		if content != "" {
			_, err = fw.Write([]byte(content))
			require.NoError(t, err)
		}
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plugin.zip")
	require.NoError(t, os.WriteFile(path, buildZip(t, files), 0644))
	return path
}

func TestExtractPlugin(t *testing.T) {
	t.Run("slug directory", func(t *testing.T) {
		zipPath := writeZip(t, map[string]string{
			"aaa/readme.txt":            "other",
			"funnel-builder/":           "",
			"funnel-builder/funnel.php": "<?php",
			"funnel-builder/inc/a.php":  "a",
		})
		dst := t.TempDir()

		dir, err := ExtractPlugin(zipPath, dst, "funnel-builder")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dst, "funnel-builder"), dir)
		assert.FileExists(t, filepath.Join(dir, "inc", "a.php"))
	})

	t.Run("first directory fallback", func(t *testing.T) {
		zipPath := writeZip(t, map[string]string{
			"zeta/z.php":  "z",
			"alpha/a.php": "a",
			"top.txt":     "t",
		})
		dst := t.TempDir()

		dir, err := ExtractPlugin(zipPath, dst, "missing")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dst, "alpha"), dir)
	})

	t.Run("no directory", func(t *testing.T) {
		zipPath := writeZip(t, map[string]string{"plugin.php": "<?php"})

		_, err := ExtractPlugin(zipPath, t.TempDir(), "")
		assert.True(t, errors.Is(err, ErrNoPluginDir))
	})

	t.Run("rejects traversal", func(t *testing.T) {
		zipPath := writeZip(t, map[string]string{"../evil.php": "<?php"})
		dst := t.TempDir()

		_, err := ExtractPlugin(zipPath, dst, "")
		assert.True(t, errors.Is(err, ErrUnsafePath))
		assert.NoFileExists(t, filepath.Join(filepath.Dir(dst), "evil.php"))
	})

	t.Run("not a zip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "broken.zip")
		require.NoError(t, os.WriteFile(path, []byte("nope"), 0644))

		_, err := ExtractPlugin(path, t.TempDir(), "")
		assert.Error(t, err)
	})
}

func TestDownloader_Download(t *testing.T) {
	payload := buildZip(t, map[string]string{"p/p.php": "<?php"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/plugin.zip" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	d := NewDownloader(5*time.Second, nil)
	dst := filepath.Join(t.TempDir(), "out.zip")

	n, err := d.Download(context.Background(), srv.URL+"/plugin.zip", dst)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	_, err = d.Download(context.Background(), srv.URL+"/missing.zip", dst)
	assert.Error(t, err)
}
