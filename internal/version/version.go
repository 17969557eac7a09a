// Package version resolves branch versions from tags and headers and compares
// WordPress version strings.
package version

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"

	"github.com/creatorincome/wpup/internal/fsops"
	"github.com/creatorincome/wpup/internal/gitx"
	"github.com/creatorincome/wpup/internal/header"
)

// Unknown is reported for branches without a tag.
const Unknown = "unknown"

// MergedTagPrefix starts every tag created by a merge.
const MergedTagPrefix = "merged-"

// FromTag extracts the version from a release tag: the suffix after the last
// "-v" ("free-v3.13.1.3"), else the tag without a leading "v".
func FromTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return Unknown
	}
	if i := strings.LastIndex(tag, "-v"); i >= 0 && i+2 < len(tag) {
		return tag[i+2:]
	}
	return strings.TrimPrefix(tag, "v")
}

// TagName builds the tag recording the versions of a merge.
func TagName(versions []string) string {
	return MergedTagPrefix + strings.Join(versions, "-")
}

// CommitMessage builds the merge commit message.
func CommitMessage(branches, versions []string) string {
	parts := make([]string, len(branches))
	for i, b := range branches {
		parts[i] = b + "=" + versions[i]
	}
	return "Merge " + strings.Join(parts, ", ")
}

// ReleaseTag builds the tag recording an imported release.
func ReleaseTag(prefix, version string) string {
	return prefix + "-v" + version
}

// Resolver resolves branch versions through a repository.
type Resolver struct {
	repo gitx.Repo
	fs   fsops.FS
	log  *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(repo gitx.Repo, fs fsops.FS, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{repo: repo, fs: fs, log: log}
}

// Resolve returns the version of the nearest tag reachable from ref, or
// Unknown when there is none.
func (r *Resolver) Resolve(ctx context.Context, ref string) string {
	tag, err := r.repo.MostRecentTag(ctx, ref)
	if err != nil {
		r.log.Debug("no tag for ref", zap.String("ref", ref), zap.Error(err))
		return Unknown
	}
	return FromTag(tag)
}

// ResolveAll resolves every ref in order.
func (r *Resolver) ResolveAll(ctx context.Context, refs []string) []string {
	versions := make([]string, len(refs))
	for i, ref := range refs {
		versions[i] = r.Resolve(ctx, ref)
	}
	return versions
}

// HeaderVersion returns the Version header of the plugin entry file at the
// root of ref.
func (r *Resolver) HeaderVersion(ctx context.Context, ref string) (string, error) {
	dir, err := r.fs.MkdirTemp("", "wpup-version-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		_ = r.fs.RemoveAll(dir)
	}()

	rootPHP := func(p string) bool {
		return strings.Contains(p, "/") || !strings.EqualFold(path.Ext(p), ".php")
	}
	if err := r.repo.ExportTree(ctx, ref, dir, rootPHP); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", ref, err)
	}

	entry, err := header.FindEntryFile(r.fs, dir)
	if err != nil {
		return "", fmt.Errorf("branch %s: %w", ref, err)
	}
	v := entry.Block.Version()
	if v == "" {
		return "", fmt.Errorf("branch %s: %s has no Version header", ref, entry.File)
	}
	return v, nil
}

var leadingNumeric = regexp.MustCompile(`^[0-9]+(?:\.[0-9]+)*`)

// IsNewer reports whether candidate is a newer version than current.
//
// Semantic versions compare with pre-release ordering (4.0.0-alpha < 4.0.0).
// Versions semver cannot parse, such as 3.13.1.3, compare by their leading
// dotted numbers; anything else is newer when the strings differ.
func IsNewer(candidate, current string) bool {
	candidate = strings.TrimSpace(candidate)
	current = strings.TrimSpace(current)
	if candidate == "" {
		return false
	}
	if current == "" {
		return true
	}

	cv, cerr := semver.NewVersion(candidate)
	ov, oerr := semver.NewVersion(current)
	if cerr == nil && oerr == nil {
		return cv.GreaterThan(ov)
	}

	cb := leadingNumeric.FindString(candidate)
	ob := leadingNumeric.FindString(current)
	if cb != "" && ob != "" {
		return compareDotted(cb, ob) > 0
	}

	return candidate != current
}

// compareDotted compares two dotted numeric strings; missing parts are zero.
func compareDotted(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := max(len(as), len(bs))
	for i := 0; i < n; i++ {
		x, y := part(as, i), part(bs, i)
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

func part(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return n
}
