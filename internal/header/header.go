// Package header reads and writes the metadata comment block WordPress scans
// plugin entry files for.
//
// Entry-file detection is a heuristic: a root-level PHP file whose first
// EntryScanSize bytes contain "Plugin Name:". When several files qualify the
// first one in directory order is used.
package header

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/creatorincome/wpup/internal/fsops"
)

const (
	// HeaderScanSize bounds how much of an entry file is parsed.
	HeaderScanSize = 8 * 1024

	// EntryScanSize bounds how much of a candidate is searched for the marker.
	EntryScanSize = 2 * 1024

	// Marker identifies a plugin entry file.
	Marker = "Plugin Name:"

	// IndexFile is never treated as an entry file.
	IndexFile = "index.php"
)

// Header keys, in the order they are emitted.
const (
	PluginName      = "Plugin Name"
	PluginURI       = "Plugin URI"
	Description     = "Description"
	Version         = "Version"
	Author          = "Author"
	AuthorURI       = "Author URI"
	License         = "License"
	LicenseURI      = "License URI"
	TextDomain      = "Text Domain"
	DomainPath      = "Domain Path"
	Network         = "Network"
	RequiresAtLeast = "Requires at least"
	RequiresPHP     = "Requires PHP"
	UpdateURI       = "Update URI"
)

// Keys is the fixed header vocabulary in emission order.
var Keys = []string{
	PluginName,
	PluginURI,
	Description,
	Version,
	Author,
	AuthorURI,
	License,
	LicenseURI,
	TextDomain,
	DomainPath,
	Network,
	RequiresAtLeast,
	RequiresPHP,
	UpdateURI,
}

var (
	// ErrNoHeader is returned when data carries no Plugin Name header.
	ErrNoHeader = errors.New("no plugin header found")

	// ErrNoEntryFile is returned when a directory has no plugin entry file.
	ErrNoEntryFile = errors.New("no plugin entry file found")
)

var keyPatterns = buildKeyPatterns()

func buildKeyPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(Keys))
	for _, key := range Keys {
		patterns[key] = regexp.MustCompile(`(?mi)^(?:[ \t]*<\?php)?[ \t/*#@]*` + regexp.QuoteMeta(key) + `:(.*)$`)
	}
	return patterns
}

// Block is a parsed plugin header. Only keys present in the source are set.
type Block struct {
	values map[string]string
}

// Parse extracts the header block from the start of an entry file.
func Parse(data []byte) (*Block, error) {
	b := &Block{values: map[string]string{}}
	for _, key := range Keys {
		m := keyPatterns[key].FindSubmatch(data)
		if m == nil {
			continue
		}
		if value := cleanValue(string(m[1])); value != "" {
			b.values[key] = value
		}
	}
	if _, ok := b.values[PluginName]; !ok {
		return nil, ErrNoHeader
	}
	return b, nil
}

// cleanValue drops a closing comment or PHP tag and trailing stars.
func cleanValue(v string) string {
	if i := strings.Index(v, "*/"); i >= 0 {
		v = v[:i]
	}
	if i := strings.Index(v, "?>"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimSpace(strings.TrimRight(v, " \t\r*"))
}

// ParseFile parses the header of the file at path.
func ParseFile(fsys fsops.FS, path string) (*Block, error) {
	data, err := fsys.ReadPrefix(path, HeaderScanSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(data)
}

// Get returns the value of key.
func (b *Block) Get(key string) (string, bool) {
	v, ok := b.values[key]
	return v, ok
}

// Name returns the Plugin Name value.
func (b *Block) Name() string {
	return b.values[PluginName]
}

// Version returns the Version value, or "" when absent.
func (b *Block) Version() string {
	return b.values[Version]
}

// Present returns the keys that are set, in emission order.
func (b *Block) Present() []string {
	var keys []string
	for _, key := range Keys {
		if _, ok := b.values[key]; ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// Relocate returns a copy of b for an entry file moved into subdir. A Domain
// Path starting with "/" is prefixed with the subdirectory.
func (b *Block) Relocate(subdir string) *Block {
	out := &Block{values: make(map[string]string, len(b.values))}
	for k, v := range b.values {
		out.values[k] = v
	}
	if dp, ok := out.values[DomainPath]; ok && strings.HasPrefix(dp, "/") {
		out.values[DomainPath] = "/" + subdir + dp
	}
	return out
}

// Stub renders a loader file holding the header block followed by a
// require_once of requirePath, relative to the stub's directory.
func (b *Block) Stub(requirePath string) []byte {
	var sb strings.Builder
	sb.WriteString("<?php\n/**\n")
	for _, key := range b.Present() {
		fmt.Fprintf(&sb, " * %s: %s\n", key, b.values[key])
	}
	sb.WriteString(" */\n\n")
	fmt.Fprintf(&sb, "require_once __DIR__ . '/%s';\n", path.Clean(requirePath))
	return []byte(sb.String())
}

// Entry is a detected plugin entry file.
type Entry struct {
	// File is the entry file name, e.g. "foo.php".
	File string

	// Stem is File without its extension, e.g. "foo".
	Stem string

	Block *Block
}

// FindEntryFile looks for the plugin entry file among the root-level PHP
// files of dir, in lexical order. Candidates carrying the marker whose header
// cannot be parsed are skipped.
func FindEntryFile(fsys fsops.FS, dir string) (*Entry, error) {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var skipped []string
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(name), ".php") || name == IndexFile {
			continue
		}

		full := filepath.Join(dir, name)
		prefix, err := fsys.ReadPrefix(full, EntryScanSize)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", full, err)
		}
		if !strings.Contains(string(prefix), Marker) {
			continue
		}

		block, err := ParseFile(fsys, full)
		if errors.Is(err, ErrNoHeader) {
			skipped = append(skipped, name)
			continue
		}
		if err != nil {
			return nil, err
		}
		return &Entry{
			File:  name,
			Stem:  strings.TrimSuffix(name, filepath.Ext(name)),
			Block: block,
		}, nil
	}

	if len(skipped) > 0 {
		return nil, fmt.Errorf("%w: no parseable header in %s", ErrNoEntryFile, strings.Join(skipped, ", "))
	}
	return nil, ErrNoEntryFile
}
