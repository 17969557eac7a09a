// Package worktree prepares the working tree a merge or release import writes
// into.
package worktree

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/creatorincome/wpup/internal/config"
	"github.com/creatorincome/wpup/internal/fsops"
	"github.com/creatorincome/wpup/internal/gitx"
)

// Reconciler empties and restores the working tree around locked paths.
type Reconciler struct {
	repo   gitx.Repo
	fs     fsops.FS
	locked []string
	log    *zap.Logger
}

// NewReconciler creates a Reconciler for the working tree of repo.
func NewReconciler(repo gitx.Repo, fs fsops.FS, locked []string, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{repo: repo, fs: fs, locked: locked, log: log}
}

// Clean removes every top-level entry of the working tree except the locked
// paths. Every entry is attempted; all failures are returned together.
func (r *Reconciler) Clean(ctx context.Context) error {
	root := r.repo.Root()
	entries, err := r.fs.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to list working tree: %w", err)
	}

	var errs error
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		name := entry.Name()
		if name == "." || config.IsLocked(r.locked, name) {
			continue
		}
		if err := r.fs.RemoveAll(filepath.Join(root, name)); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to remove %s: %w", name, err))
			continue
		}
		removed++
	}

	r.log.Debug("working tree cleaned", zap.Int("removed", removed))
	return errs
}

// SyncLocked restores the locked paths from baseRef and commits them when
// that changed anything. baseRef has the form <remote>/<branch>.
func (r *Reconciler) SyncLocked(ctx context.Context, baseRef string) error {
	remote, branch, ok := strings.Cut(baseRef, "/")
	if !ok || remote == "" || branch == "" {
		return fmt.Errorf("invalid base ref %q: want <remote>/<branch>", baseRef)
	}
	if err := gitx.ValidateRef(baseRef, "base ref"); err != nil {
		return err
	}

	refspec := fmt.Sprintf("%s:refs/remotes/%s/%s", branch, remote, branch)
	if err := r.repo.Fetch(ctx, remote, refspec); err != nil {
		return fmt.Errorf("failed to fetch %s: %w", baseRef, err)
	}

	var synced []string
	for _, path := range r.locked {
		if path == ".git" {
			continue
		}
		exists, err := r.repo.PathExists(ctx, baseRef, path)
		if err != nil {
			return fmt.Errorf("failed to check %s in %s: %w", path, baseRef, err)
		}
		if !exists {
			continue
		}
		if err := r.repo.CheckoutPaths(ctx, baseRef, path); err != nil {
			return err
		}
		synced = append(synced, path)
	}

	changed, err := r.repo.HasChanges(ctx)
	if err != nil {
		return err
	}
	if !changed {
		r.log.Info("locked paths already in sync", zap.String("base", baseRef))
		return nil
	}

	if err := r.repo.Commit(ctx, "Sync locked paths from "+baseRef); err != nil {
		return err
	}
	r.log.Info("synced locked paths", zap.String("base", baseRef), zap.Strings("paths", synced))
	return nil
}

// Switch checks out branch: the local branch if it exists, else a branch
// tracking <remote>/<branch>, else a new branch from HEAD.
func (r *Reconciler) Switch(ctx context.Context, remote, branch string) error {
	if err := gitx.ValidateRef(branch, "branch"); err != nil {
		return err
	}

	local, err := r.repo.LocalBranchExists(ctx, branch)
	if err != nil {
		return err
	}
	if local {
		return r.repo.Checkout(ctx, branch, false)
	}

	onRemote, err := r.repo.RemoteBranchExists(ctx, remote, branch)
	if err != nil {
		return err
	}
	if onRemote {
		r.log.Info("tracking remote branch", zap.String("branch", branch), zap.String("remote", remote))
		return r.repo.CheckoutTracking(ctx, branch, remote+"/"+branch)
	}

	r.log.Info("creating branch", zap.String("branch", branch))
	return r.repo.Checkout(ctx, branch, true)
}
