package engine

import (
	"context"
	"fmt"
)

// SyncLocked restores the locked paths from the base ref and commits them.
func (e *Engine) SyncLocked(ctx context.Context, req *SyncLockedRequest) error {
	base := req.Base
	if base == "" {
		base = e.cfg.BaseRef()
	}
	if err := e.reconciler.SyncLocked(ctx, base); err != nil {
		return fmt.Errorf("failed to sync locked paths: %w", err)
	}
	return nil
}

// BranchVersion returns the Version header of the branch's entry file.
func (e *Engine) BranchVersion(ctx context.Context, branch string) (string, error) {
	return e.resolver.HeaderVersion(ctx, branch)
}

// Import commits a release archive onto a branch.
func (e *Engine) Import(ctx context.Context, req *ImportRequest) (*ImportResult, error) {
	return e.importer.Import(ctx, req)
}
