// Package gitx wraps the git operations wpup performs on the repository it
// runs in.
//
// Reads (ref resolution, tree export, existence checks) go through go-git and
// never touch the working tree. Mutations shell out to the git binary so that
// hooks, credentials and the index behave exactly as they do for a user.
package gitx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/creatorincome/wpup/internal/fsops"
)

// ErrRefNotFound is returned when a branch, tag or revision does not resolve.
var ErrRefNotFound = errors.New("reference not found")

// Repo provides an abstraction for the git repository wpup operates on.
type Repo interface {
	// Root returns the working tree root.
	Root() string

	// ResolveRef resolves a revision to a commit hash. Bare branch names that
	// only exist on the remote resolve through refs/remotes/<remote>/<name>.
	ResolveRef(ctx context.Context, ref string) (string, error)

	// ExportTree writes every file tracked at ref into dst. skip receives the
	// slash-separated path of each file; files it accepts are not written.
	ExportTree(ctx context.Context, ref, dst string, skip func(path string) bool) error

	// PathExists reports whether path is tracked at ref.
	PathExists(ctx context.Context, ref, path string) (bool, error)

	// CurrentBranch returns the short name of the checked out branch.
	CurrentBranch(ctx context.Context) (string, error)

	// LocalBranchExists reports whether refs/heads/<branch> exists.
	LocalBranchExists(ctx context.Context, branch string) (bool, error)

	// RemoteBranchExists asks the remote whether it has branch.
	RemoteBranchExists(ctx context.Context, remote, branch string) (bool, error)

	// TagExists reports whether refs/tags/<tag> exists.
	TagExists(ctx context.Context, tag string) (bool, error)

	// MostRecentTag returns the nearest tag reachable from ref.
	MostRecentTag(ctx context.Context, ref string) (string, error)

	// Checkout switches to ref, creating it from HEAD when create is set.
	Checkout(ctx context.Context, ref string, create bool) error

	// CheckoutTracking creates branch from startPoint and switches to it.
	CheckoutTracking(ctx context.Context, branch, startPoint string) error

	// CheckoutPaths force-checks out paths from ref into the working tree and
	// index.
	CheckoutPaths(ctx context.Context, ref string, paths ...string) error

	// ResetHard discards every uncommitted change to tracked files.
	ResetHard(ctx context.Context) error

	// HasChanges reports whether the working tree differs from HEAD,
	// untracked files included.
	HasChanges(ctx context.Context) (bool, error)

	// StageAll stages every change in the working tree.
	StageAll(ctx context.Context) error

	// Commit records the staged changes.
	Commit(ctx context.Context, message string) error

	// Tag creates a lightweight tag at HEAD.
	Tag(ctx context.Context, name string) error

	// Fetch fetches refspec from remote. An empty refspec fetches everything.
	Fetch(ctx context.Context, remote, refspec string) error

	// Push pushes ref to remote, with all tags when withTags is set.
	Push(ctx context.Context, remote, ref string, withTags bool) error
}

// RealRepo implements Repo against an on-disk repository.
type RealRepo struct {
	root   string
	remote string
	git    *runner
}

// Open discovers the repository containing dir. remote names the remote used
// for remote-tracking fallbacks.
func Open(dir, remote string, log *zap.Logger) (*RealRepo, error) {
	if log == nil {
		log = zap.NewNop()
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	repo, err := gitlib.PlainOpenWithOptions(abs, &gitlib.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	root := wt.Filesystem.Root()

	gitPath, err := exec.LookPath("git")
	if err != nil {
		return nil, fmt.Errorf("git executable not found: %w", err)
	}

	return &RealRepo{
		root:   root,
		remote: remote,
		git:    &runner{dir: root, gitPath: gitPath, log: log},
	}, nil
}

// Root returns the working tree root.
func (r *RealRepo) Root() string {
	return r.root
}

// open reopens the repository so reads observe refs written by git
// subprocesses since the last call.
func (r *RealRepo) open() (*gitlib.Repository, error) {
	repo, err := gitlib.PlainOpen(r.root)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return repo, nil
}

func (r *RealRepo) resolve(repo *gitlib.Repository, ref string) (*plumbing.Hash, error) {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err == nil {
		return hash, nil
	}
	if r.remote != "" {
		remoteRef := plumbing.NewRemoteReferenceName(r.remote, ref)
		if h, rerr := repo.ResolveRevision(plumbing.Revision(remoteRef.String())); rerr == nil {
			return h, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRefNotFound, ref)
}

func (r *RealRepo) tree(ref string) (*object.Tree, error) {
	repo, err := r.open()
	if err != nil {
		return nil, err
	}
	hash, err := r.resolve(repo, ref)
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to read commit %s: %w", ref, err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to read tree of %s: %w", ref, err)
	}
	return tree, nil
}

// ResolveRef resolves a revision to a commit hash.
func (r *RealRepo) ResolveRef(_ context.Context, ref string) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	hash, err := r.resolve(repo, ref)
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// ExportTree writes the files tracked at ref into dst.
func (r *RealRepo) ExportTree(ctx context.Context, ref, dst string, skip func(path string) bool) error {
	tree, err := r.tree(ref)
	if err != nil {
		return err
	}

	return tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if skip != nil && skip(f.Name) {
			return nil
		}
		if err := fsops.ValidateRelPath(f.Name); err != nil {
			return fmt.Errorf("refusing to export %s: %w", f.Name, err)
		}
		return writeBlob(f, filepath.Join(dst, filepath.FromSlash(f.Name)))
	})
}

func writeBlob(f *object.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", f.Name, err)
	}

	if f.Mode == filemode.Symlink {
		linkTarget, err := f.Contents()
		if err != nil {
			return fmt.Errorf("failed to read link %s: %w", f.Name, err)
		}
		return os.Symlink(linkTarget, target)
	}

	perm := os.FileMode(0644)
	if f.Mode == filemode.Executable {
		perm = 0755
	}

	reader, err := f.Reader()
	if err != nil {
		return fmt.Errorf("failed to read blob %s: %w", f.Name, err)
	}
	defer func() {
		_ = reader.Close()
	}()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	if _, err := io.Copy(out, reader); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return out.Close()
}

// PathExists reports whether path is tracked at ref.
func (r *RealRepo) PathExists(_ context.Context, ref, path string) (bool, error) {
	tree, err := r.tree(ref)
	if err != nil {
		return false, err
	}
	_, err = tree.FindEntry(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, object.ErrEntryNotFound) || errors.Is(err, object.ErrDirectoryNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to look up %s at %s: %w", path, ref, err)
}

// CurrentBranch returns the short name of the checked out branch.
func (r *RealRepo) CurrentBranch(_ context.Context) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolve HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached")
	}
	return head.Name().Short(), nil
}

// LocalBranchExists reports whether refs/heads/<branch> exists.
func (r *RealRepo) LocalBranchExists(_ context.Context, branch string) (bool, error) {
	return r.refExists(plumbing.NewBranchReferenceName(branch))
}

// TagExists reports whether refs/tags/<tag> exists.
func (r *RealRepo) TagExists(_ context.Context, tag string) (bool, error) {
	return r.refExists(plumbing.NewTagReferenceName(tag))
}

func (r *RealRepo) refExists(name plumbing.ReferenceName) (bool, error) {
	repo, err := r.open()
	if err != nil {
		return false, err
	}
	_, err = repo.Reference(name, true)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to read %s: %w", name, err)
}

// RemoteBranchExists asks the remote whether it has branch.
func (r *RealRepo) RemoteBranchExists(ctx context.Context, remote, branch string) (bool, error) {
	out, err := r.git.run(ctx, "ls-remote", "--heads", remote, branch)
	if err != nil {
		return false, fmt.Errorf("failed to list remote branches: %w", err)
	}
	return out != "", nil
}

// MostRecentTag returns the nearest tag reachable from ref. Refs are resolved
// with the same remote-tracking fallback as ResolveRef.
func (r *RealRepo) MostRecentTag(ctx context.Context, ref string) (string, error) {
	target := ref
	if repo, err := r.open(); err == nil {
		if hash, err := r.resolve(repo, ref); err == nil {
			target = hash.String()
		}
	}
	out, err := r.git.run(ctx, "describe", "--tags", "--abbrev=0", target)
	if err != nil {
		return "", fmt.Errorf("failed to describe %s: %w", ref, err)
	}
	return out, nil
}

// Checkout switches to ref, creating it from HEAD when create is set.
func (r *RealRepo) Checkout(ctx context.Context, ref string, create bool) error {
	args := []string{"checkout", "-q"}
	if create {
		args = append(args, "-b")
	}
	args = append(args, ref)

	if _, err := r.git.run(ctx, args...); err != nil {
		return fmt.Errorf("failed to checkout %s: %w", ref, err)
	}
	return nil
}

// CheckoutTracking creates branch from startPoint and switches to it.
func (r *RealRepo) CheckoutTracking(ctx context.Context, branch, startPoint string) error {
	if _, err := r.git.run(ctx, "checkout", "-q", "-b", branch, startPoint); err != nil {
		return fmt.Errorf("failed to checkout %s from %s: %w", branch, startPoint, err)
	}
	return nil
}

// CheckoutPaths force-checks out paths from ref.
func (r *RealRepo) CheckoutPaths(ctx context.Context, ref string, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"checkout", ref, "--"}, paths...)
	if _, err := r.git.run(ctx, args...); err != nil {
		return fmt.Errorf("failed to checkout paths from %s: %w", ref, err)
	}
	return nil
}

// ResetHard discards every uncommitted change to tracked files.
func (r *RealRepo) ResetHard(ctx context.Context) error {
	if _, err := r.git.run(ctx, "reset", "-q", "--hard"); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}
	return nil
}

// HasChanges reports whether the working tree differs from HEAD.
func (r *RealRepo) HasChanges(ctx context.Context) (bool, error) {
	out, err := r.git.run(ctx, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to read status: %w", err)
	}
	return out != "", nil
}

// StageAll stages every change in the working tree.
func (r *RealRepo) StageAll(ctx context.Context) error {
	if _, err := r.git.run(ctx, "add", "-A"); err != nil {
		return fmt.Errorf("failed to stage changes: %w", err)
	}
	return nil
}

// Commit records the staged changes.
func (r *RealRepo) Commit(ctx context.Context, message string) error {
	if _, err := r.git.run(ctx, "commit", "-q", "-m", message); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// Tag creates a lightweight tag at HEAD.
func (r *RealRepo) Tag(ctx context.Context, name string) error {
	if _, err := r.git.run(ctx, "tag", name); err != nil {
		return fmt.Errorf("failed to create tag %s: %w", name, err)
	}
	return nil
}

// Fetch fetches refspec from remote.
func (r *RealRepo) Fetch(ctx context.Context, remote, refspec string) error {
	args := []string{"fetch", "-q", remote}
	if refspec != "" {
		args = append(args, refspec)
	}
	if _, err := r.git.run(ctx, args...); err != nil {
		return fmt.Errorf("failed to fetch: %w", err)
	}
	return nil
}

// Push pushes ref to remote.
func (r *RealRepo) Push(ctx context.Context, remote, ref string, withTags bool) error {
	args := []string{"push", "-q", remote, ref}
	if withTags {
		args = append(args, "--tags")
	}
	if _, err := r.git.run(ctx, args...); err != nil {
		return fmt.Errorf("failed to push: %w", err)
	}
	return nil
}
