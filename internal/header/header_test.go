package header

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creatorincome/wpup/internal/fsops"
)

const fooHeader = `<?php
/**
 * Plugin Name: Foo
 * Plugin URI: https://example.com/foo
 * Description: Does foo things.
 * Version: 1.2.3
 * Author: Example
 * Text Domain: foo
 * Domain Path: /languages
 * Requires PHP: 7.4 */

defined( 'ABSPATH' ) || exit;
`

func TestParse(t *testing.T) {
	b, err := Parse([]byte(fooHeader))
	require.NoError(t, err)

	assert.Equal(t, "Foo", b.Name())
	assert.Equal(t, "1.2.3", b.Version())

	v, ok := b.Get(RequiresPHP)
	require.True(t, ok)
	assert.Equal(t, "7.4", v)

	_, ok = b.Get(License)
	assert.False(t, ok, "absent keys must not be synthesized")

	assert.Equal(t, []string{PluginName, PluginURI, Description, Version, Author, TextDomain, DomainPath, RequiresPHP}, b.Present())
}

func TestParse_ValueCleanup(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{name: "trailing star", src: " * Plugin Name: Foo *", want: "Foo"},
		{name: "comment close", src: "/* Plugin Name: Foo */", want: "Foo"},
		{name: "trailing whitespace", src: "Plugin Name: Foo   \r", want: "Foo"},
		{name: "hash comment", src: "# Plugin Name: Foo", want: "Foo"},
		{name: "case insensitive key", src: " * plugin name: Foo", want: "Foo"},
		{name: "php tag", src: "<?php /* Plugin Name: Foo ?>", want: "Foo"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Parse([]byte(tt.src))
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Name())
		})
	}
}

func TestParse_NoHeader(t *testing.T) {
	_, err := Parse([]byte("<?php\n// Version: 1.0\n"))
	assert.True(t, errors.Is(err, ErrNoHeader))

	_, err = Parse([]byte(`<?php $x = "Plugin Name: not a header";`))
	assert.True(t, errors.Is(err, ErrNoHeader))
}

func TestBlock_Stub(t *testing.T) {
	b, err := Parse([]byte("<?php\n/*\n * Version: 1.2.3\n * Plugin Name: Foo\n */\n"))
	require.NoError(t, err)

	want := "<?php\n" +
		"/**\n" +
		" * Plugin Name: Foo\n" +
		" * Version: 1.2.3\n" +
		" */\n" +
		"\n" +
		"require_once __DIR__ . '/foo/foo.php';\n"
	assert.Equal(t, want, string(b.Stub("foo/foo.php")))
}

func TestBlock_Relocate(t *testing.T) {
	b, err := Parse([]byte(fooHeader))
	require.NoError(t, err)

	moved := b.Relocate("foo")
	dp, _ := moved.Get(DomainPath)
	assert.Equal(t, "/foo/languages", dp)

	orig, _ := b.Get(DomainPath)
	assert.Equal(t, "/languages", orig, "relocate must not modify the receiver")

	rel, err := Parse([]byte(" * Plugin Name: Foo\n * Domain Path: languages\n"))
	require.NoError(t, err)
	dp, _ = rel.Relocate("foo").Get(DomainPath)
	assert.Equal(t, "languages", dp)

	stub := string(moved.Stub("foo/foo.php"))
	assert.Contains(t, stub, " * Domain Path: /foo/languages\n")
}

func TestParseFile_Bounded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "late.php")
	content := "<?php\n" + strings.Repeat("// padding\n", HeaderScanSize/10) + "/* Plugin Name: Late */\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := ParseFile(fsops.NewRealFS(), path)
	assert.True(t, errors.Is(err, ErrNoHeader))
}

func TestFindEntryFile(t *testing.T) {
	fs := fsops.NewRealFS()

	write := func(t *testing.T, dir, name, content string) {
		t.Helper()
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}

	t.Run("finds the entry file", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "index.php", "<?php /* Plugin Name: Silence */")
		write(t, dir, "helpers.php", "<?php function foo() {}")
		write(t, dir, "foo.php", fooHeader)
		write(t, dir, "sub/nested.php", "<?php /* Plugin Name: Nested */")

		entry, err := FindEntryFile(fs, dir)
		require.NoError(t, err)
		assert.Equal(t, "foo.php", entry.File)
		assert.Equal(t, "foo", entry.Stem)
		assert.Equal(t, "1.2.3", entry.Block.Version())
	})

	t.Run("first lexical match wins", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "b.php", "<?php /* Plugin Name: B */")
		write(t, dir, "a.php", "<?php /* Plugin Name: A */")

		entry, err := FindEntryFile(fs, dir)
		require.NoError(t, err)
		assert.Equal(t, "a.php", entry.File)
	})

	t.Run("marker beyond scan window", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "late.php", "<?php\n"+strings.Repeat(" ", EntryScanSize)+"/* Plugin Name: Late */")

		_, err := FindEntryFile(fs, dir)
		assert.True(t, errors.Is(err, ErrNoEntryFile))
	})

	t.Run("unparseable candidate is skipped", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "a.php", `<?php echo "Plugin Name: x";`)
		write(t, dir, "b.php", "<?php /* Plugin Name: B */")

		entry, err := FindEntryFile(fs, dir)
		require.NoError(t, err)
		assert.Equal(t, "b.php", entry.File)
		assert.Equal(t, "B", entry.Block.Name())
	})

	t.Run("only unparseable candidates", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "a.php", `<?php echo "Plugin Name: x";`)

		_, err := FindEntryFile(fs, dir)
		assert.True(t, errors.Is(err, ErrNoEntryFile))
		assert.Contains(t, err.Error(), "a.php")
	})

	t.Run("no php files", func(t *testing.T) {
		dir := t.TempDir()
		write(t, dir, "readme.txt", "Plugin Name: nope")

		_, err := FindEntryFile(fs, dir)
		assert.True(t, errors.Is(err, ErrNoEntryFile))
	})
}
