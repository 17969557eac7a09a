// Package snapshot materializes branch trees into private temporary
// directories so a merge can read every input without touching the working
// tree it is about to rewrite.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/creatorincome/wpup/internal/config"
	"github.com/creatorincome/wpup/internal/fsops"
	"github.com/creatorincome/wpup/internal/gitx"
)

// ErrSnapshot is returned when a branch cannot be materialized.
var ErrSnapshot = errors.New("snapshot failed")

// Snapshot is the tracked content of one branch, minus locked paths, written
// to Dir.
type Snapshot struct {
	Branch string
	Commit string
	Dir    string

	fs fsops.FS
}

// Close removes the snapshot directory. It is safe to call more than once.
func (s *Snapshot) Close() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	if err := s.fs.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("failed to remove snapshot of %s: %w", s.Branch, err)
	}
	s.Dir = ""
	return nil
}

// Set holds the snapshots of one merge run, in input order.
type Set struct {
	snaps []*Snapshot
}

// Base returns the first snapshot.
func (s *Set) Base() *Snapshot {
	return s.snaps[0]
}

// Overlays returns every snapshot after the base.
func (s *Set) Overlays() []*Snapshot {
	return s.snaps[1:]
}

// All returns every snapshot in input order.
func (s *Set) All() []*Snapshot {
	return s.snaps
}

// Close removes every snapshot directory, attempting all of them.
func (s *Set) Close() error {
	if s == nil {
		return nil
	}
	var err error
	for _, snap := range s.snaps {
		err = multierr.Append(err, snap.Close())
	}
	return err
}

// Extractor creates snapshots from a repository's object store.
type Extractor struct {
	repo    gitx.Repo
	fs      fsops.FS
	locked  []string
	tempDir string
	log     *zap.Logger
}

// NewExtractor creates an Extractor that excludes the locked paths from every
// snapshot. Snapshots are created under tempDir, or the system temp directory
// when it is empty.
func NewExtractor(repo gitx.Repo, fs fsops.FS, locked []string, tempDir string, log *zap.Logger) *Extractor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{
		repo:    repo,
		fs:      fs,
		locked:  locked,
		tempDir: tempDir,
		log:     log,
	}
}

// Snapshot materializes the tracked tree of branch.
func (e *Extractor) Snapshot(ctx context.Context, branch string) (*Snapshot, error) {
	if err := gitx.ValidateRef(branch, "branch"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSnapshot, err)
	}

	commit, err := e.repo.ResolveRef(ctx, branch)
	if err != nil {
		return nil, fmt.Errorf("%w: branch %s: %w", ErrSnapshot, branch, err)
	}

	dir, err := e.fs.MkdirTemp(e.tempDir, "wpup-snapshot-*")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create directory: %w", ErrSnapshot, err)
	}

	snap := &Snapshot{Branch: branch, Commit: commit, Dir: dir, fs: e.fs}
	if err := e.repo.ExportTree(ctx, commit, dir, e.excluded); err != nil {
		_ = snap.Close()
		return nil, fmt.Errorf("%w: branch %s: %w", ErrSnapshot, branch, err)
	}

	e.log.Debug("snapshot created",
		zap.String("branch", branch),
		zap.String("commit", commit),
		zap.String("dir", dir),
	)
	return snap, nil
}

// SnapshotAll snapshots branches in order. On failure every snapshot created
// so far is removed.
func (e *Extractor) SnapshotAll(ctx context.Context, branches []string) (*Set, error) {
	set := &Set{}
	for _, branch := range branches {
		snap, err := e.Snapshot(ctx, branch)
		if err != nil {
			return nil, multierr.Append(err, set.Close())
		}
		set.snaps = append(set.snaps, snap)
	}
	return set, nil
}

// excluded reports whether a tree path sits under a locked top-level name.
func (e *Extractor) excluded(path string) bool {
	top, _, _ := strings.Cut(path, "/")
	return config.IsLocked(e.locked, top)
}
