// Package engine provides the core business logic for wpup operations.
//
// The engine package acts as the orchestration layer between CLI commands and
// lower-level operations. It coordinates branch snapshots, working-tree
// preparation, overlay placement and publishing.
//
// Key components:
//   - Engine: Main orchestrator that coordinates all operations
//   - Merge: Composes several branches into one working tree and publishes it
//   - SyncLocked: Restores locked paths from the base branch
//   - Import: Commits a downloaded release onto a branch
package engine

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/creatorincome/wpup/internal/config"
	"github.com/creatorincome/wpup/internal/fsops"
	"github.com/creatorincome/wpup/internal/gitx"
	"github.com/creatorincome/wpup/internal/planner"
	"github.com/creatorincome/wpup/internal/release"
	"github.com/creatorincome/wpup/internal/snapshot"
	"github.com/creatorincome/wpup/internal/version"
	"github.com/creatorincome/wpup/internal/worktree"
)

// Engine orchestrates all wpup operations.
// It is the main API surface called by the CLI.
type Engine struct {
	repo       gitx.Repo
	fs         fsops.FS
	cfg        *config.Config
	log        *zap.Logger
	extractor  *snapshot.Extractor
	reconciler *worktree.Reconciler
	resolver   *version.Resolver
	importer   *release.Importer
}

// New creates a new Engine with the given dependencies.
func New(repo gitx.Repo, fs fsops.FS, cfg *config.Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	reconciler := worktree.NewReconciler(repo, fs, cfg.LockedPaths, log)
	resolver := version.NewResolver(repo, fs, log)
	return &Engine{
		repo:       repo,
		fs:         fs,
		cfg:        cfg,
		log:        log,
		extractor:  snapshot.NewExtractor(repo, fs, cfg.LockedPaths, "", log),
		reconciler: reconciler,
		resolver:   resolver,
		importer:   release.NewImporter(repo, fs, reconciler, cfg, log),
	}
}

// executeOperation executes a single operation.
func (e *Engine) executeOperation(op planner.Operation) error {
	switch op.Type {
	case planner.OpCopyTree, planner.OpMergeDir:
		return e.executeCopyTree(op)
	case planner.OpCopy:
		return e.executeCopy(op)
	case planner.OpWriteStub:
		return e.executeWriteStub(op)
	default:
		return fmt.Errorf("unknown operation type: %s", op.Type)
	}
}

// executeCopyTree copies a directory's contents, merging into the destination.
func (e *Engine) executeCopyTree(op planner.Operation) error {
	if err := e.fs.CopyTree(op.SourcePath, op.DestPath, nil); err != nil {
		return fmt.Errorf("failed to copy %s from %s: %w", op.RelPath, op.Branch, err)
	}
	return nil
}

// executeCopy copies a single file.
func (e *Engine) executeCopy(op planner.Operation) error {
	if err := e.fs.Copy(op.SourcePath, op.DestPath); err != nil {
		return fmt.Errorf("failed to copy %s from %s: %w", op.RelPath, op.Branch, err)
	}
	return nil
}

// executeWriteStub writes a generated loader file.
func (e *Engine) executeWriteStub(op planner.Operation) error {
	if err := e.fs.AtomicWrite(op.DestPath, op.Content, 0644); err != nil {
		return fmt.Errorf("failed to write stub %s: %w", op.RelPath, err)
	}
	return nil
}
