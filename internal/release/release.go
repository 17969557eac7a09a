// Package release commits downloaded plugin releases onto tracking branches.
package release

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/creatorincome/wpup/internal/archive"
	"github.com/creatorincome/wpup/internal/config"
	"github.com/creatorincome/wpup/internal/fsops"
	"github.com/creatorincome/wpup/internal/gitx"
	"github.com/creatorincome/wpup/internal/header"
	"github.com/creatorincome/wpup/internal/version"
	"github.com/creatorincome/wpup/internal/worktree"
)

// Tag prefixes for the two release channels.
const (
	FreeTagPrefix = "free"
	ProTagPrefix  = "pro"
)

// ImportRequest represents a request to commit a release archive onto a branch.
type ImportRequest struct {
	// Branch receives the release; it is created when missing
	Branch string

	// URL is the archive to download
	URL string

	// Slug names the plugin directory inside the archive (optional)
	Slug string

	// Name is used in the commit message (optional)
	Name string

	// Version of the release; read from the entry file header when empty
	Version string

	// TagPrefix forms the release tag <prefix>-v<version>
	TagPrefix string

	// SyncLocked restores the locked paths from the base branch first
	SyncLocked bool

	// Push commits, tags and pushes the imported release
	Push bool
}

// ImportResult represents the result of a release import.
type ImportResult struct {
	Branch    string
	Version   string
	Tag       string
	Changed   bool
	Committed bool
	Tagged    bool
	Pushed    bool
}

// Importer downloads a release and commits it onto a branch.
type Importer struct {
	repo       gitx.Repo
	fs         fsops.FS
	reconciler *worktree.Reconciler
	downloader *archive.Downloader
	cfg        *config.Config
	log        *zap.Logger
}

// NewImporter creates an Importer writing into the working tree of repo.
func NewImporter(repo gitx.Repo, fs fsops.FS, reconciler *worktree.Reconciler, cfg *config.Config, log *zap.Logger) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{
		repo:       repo,
		fs:         fs,
		reconciler: reconciler,
		downloader: archive.NewDownloader(archive.DefaultTimeout, log),
		cfg:        cfg,
		log:        log,
	}
}

// Import downloads req.URL and replaces the content of req.Branch with the
// plugin directory it contains.
func (i *Importer) Import(ctx context.Context, req *ImportRequest) (*ImportResult, error) {
	if req.URL == "" {
		return nil, fmt.Errorf("download URL is required")
	}
	if err := gitx.ValidateRef(req.Branch, "branch"); err != nil {
		return nil, err
	}
	prefix := req.TagPrefix
	if prefix == "" {
		prefix = FreeTagPrefix
	}

	if err := i.repo.ResetHard(ctx); err != nil {
		return nil, fmt.Errorf("failed to reset working tree: %w", err)
	}
	if err := i.repo.Fetch(ctx, i.cfg.Remote, ""); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", i.cfg.Remote, err)
	}
	if err := i.reconciler.Switch(ctx, i.cfg.Remote, req.Branch); err != nil {
		return nil, fmt.Errorf("failed to switch to %s: %w", req.Branch, err)
	}
	if req.SyncLocked {
		if err := i.reconciler.SyncLocked(ctx, i.cfg.BaseRef()); err != nil {
			return nil, fmt.Errorf("failed to sync locked paths: %w", err)
		}
	}

	if err := i.unpack(ctx, req.URL, req.Slug); err != nil {
		return nil, err
	}

	v := req.Version
	if v == "" {
		v = i.detectVersion()
	}

	result := &ImportResult{
		Branch:  req.Branch,
		Version: v,
		Tag:     version.ReleaseTag(prefix, v),
	}
	if err := i.publish(ctx, req, result); err != nil {
		return nil, err
	}
	return result, nil
}

// unpack downloads the archive to a private directory and copies its plugin
// directory over the cleaned working tree.
func (i *Importer) unpack(ctx context.Context, url, slug string) error {
	tmp, err := i.fs.MkdirTemp("", "wpup-release-*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() {
		if err := i.fs.RemoveAll(tmp); err != nil {
			i.log.Warn("failed to remove download directory", zap.String("dir", tmp), zap.Error(err))
		}
	}()

	zipPath := filepath.Join(tmp, "release.zip")
	if _, err := i.downloader.Download(ctx, url, zipPath); err != nil {
		return err
	}

	pluginDir, err := archive.ExtractPlugin(zipPath, filepath.Join(tmp, "extract"), slug)
	if err != nil {
		return err
	}

	if err := i.reconciler.Clean(ctx); err != nil {
		return fmt.Errorf("failed to clean working tree: %w", err)
	}

	locked := func(rel string) bool {
		top, _, _ := strings.Cut(rel, "/")
		return config.IsLocked(i.cfg.LockedPaths, top)
	}
	if err := i.fs.CopyTree(pluginDir, i.repo.Root(), locked); err != nil {
		return fmt.Errorf("failed to copy release into working tree: %w", err)
	}
	return nil
}

// detectVersion reads the Version header of the entry file, falling back to
// the first root-level PHP file that declares one.
func (i *Importer) detectVersion() string {
	root := i.repo.Root()
	if entry, err := header.FindEntryFile(i.fs, root); err == nil {
		if v := entry.Block.Version(); v != "" {
			return v
		}
	}

	entries, err := i.fs.ReadDir(root)
	if err != nil {
		return version.Unknown
	}
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ".php") {
			continue
		}
		block, err := header.ParseFile(i.fs, filepath.Join(root, e.Name()))
		if err != nil {
			continue
		}
		if v := block.Version(); v != "" {
			return v
		}
	}

	i.log.Warn("no Version header found in release")
	return version.Unknown
}

func (i *Importer) publish(ctx context.Context, req *ImportRequest, result *ImportResult) error {
	changed, err := i.repo.HasChanges(ctx)
	if err != nil {
		return err
	}
	result.Changed = changed

	if !changed {
		i.log.Info("no changes for release", zap.String("version", result.Version))
		return nil
	}
	if !req.Push {
		i.log.Info("release imported, leaving changes uncommitted", zap.String("version", result.Version))
		return nil
	}

	if err := i.repo.StageAll(ctx); err != nil {
		return err
	}
	if err := i.repo.Commit(ctx, CommitMessage(req.Name, result.Version)); err != nil {
		return err
	}
	result.Committed = true

	exists, err := i.repo.TagExists(ctx, result.Tag)
	if err != nil {
		return err
	}
	if !exists {
		if err := i.repo.Tag(ctx, result.Tag); err != nil {
			return err
		}
		result.Tagged = true
	}

	if err := i.repo.Push(ctx, i.cfg.Remote, req.Branch, true); err != nil {
		return err
	}
	result.Pushed = true

	i.log.Info("committed release",
		zap.String("branch", req.Branch),
		zap.String("version", result.Version),
		zap.String("tag", result.Tag),
	)
	return nil
}

// CommitMessage returns the message for a release commit.
func CommitMessage(name, v string) string {
	if name == "" {
		return "Update to version " + v
	}
	return fmt.Sprintf("Update %s to version %s", name, v)
}
