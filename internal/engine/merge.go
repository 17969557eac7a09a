package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/creatorincome/wpup/internal/gitx"
	"github.com/creatorincome/wpup/internal/planner"
	"github.com/creatorincome/wpup/internal/snapshot"
	"github.com/creatorincome/wpup/internal/version"
)

// MinMergeBranches is the smallest number of branches a merge accepts.
const MinMergeBranches = 2

// Merge composes the given branches into one working tree.
//
// Algorithm steps:
// 1. Validate the request
// 2. Snapshot every branch from the object store
// 3. Plan the overlay placement and resolve versions from the snapshotted
//    commits (stop here on DryRun)
// 4. Fetch and switch to the target branch
// 5. Clean the working tree and execute the plan
// 6. Publish (commit, tag, push) when requested
func (e *Engine) Merge(ctx context.Context, req *MergeRequest) (*MergeResult, error) {
	if len(req.Branches) < MinMergeBranches {
		return nil, fmt.Errorf("%w: at least %d branches required, got %d", ErrValidation, MinMergeBranches, len(req.Branches))
	}
	if req.Target != "" {
		if err := gitx.ValidateRef(req.Target, "target branch"); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
	}

	e.log.Info("merging branches", zap.Strings("branches", req.Branches), zap.String("target", req.Target))

	set, err := e.extractor.SnapshotAll(ctx, req.Branches)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := set.Close(); err != nil {
			e.log.Warn("failed to remove snapshots", zap.Error(err))
		}
	}()

	plan, err := planner.BuildMergePlan(e.fs, e.repo.Root(), source(set.Base()), sources(set.Overlays()))
	if err != nil {
		return nil, fmt.Errorf("failed to build merge plan: %w", err)
	}
	for _, o := range plan.Overrides {
		e.log.Debug("path overridden", zap.String("path", o.Path), zap.String("by", o.Branch), zap.String("previous", o.Previous))
	}

	versions := e.resolver.ResolveAll(ctx, commits(set.All()))
	result := &MergeResult{
		Plan:          plan,
		Applied:       []planner.Operation{},
		Branch:        req.Target,
		Versions:      versions,
		CommitMessage: version.CommitMessage(req.Branches, versions),
		Tag:           version.TagName(versions),
	}

	if req.DryRun {
		diff, err := plan.StubDiff(e.fs)
		if err != nil {
			return nil, fmt.Errorf("failed to preview stubs: %w", err)
		}
		result.StubDiff = diff
		return result, nil
	}

	if req.Target != "" {
		if err := e.repo.Fetch(ctx, e.cfg.Remote, ""); err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", e.cfg.Remote, err)
		}
		if err := e.reconciler.Switch(ctx, e.cfg.Remote, req.Target); err != nil {
			return nil, fmt.Errorf("failed to switch to %s: %w", req.Target, err)
		}
	} else {
		current, err := e.repo.CurrentBranch(ctx)
		if err != nil && req.Push {
			return nil, fmt.Errorf("%w: %w", ErrNoBranch, err)
		}
		result.Branch = current
	}

	if err := e.reconciler.Clean(ctx); err != nil {
		return nil, fmt.Errorf("failed to clean working tree: %w", err)
	}

	for _, op := range plan.Operations {
		if err := e.executeOperation(op); err != nil {
			return nil, fmt.Errorf("failed to execute operation: %w", err)
		}
		result.Applied = append(result.Applied, op)
	}

	if err := e.publish(ctx, req.Push, result); err != nil {
		return nil, err
	}
	return result, nil
}

// publish commits, tags and pushes the working tree when push is set and the
// merge changed something.
func (e *Engine) publish(ctx context.Context, push bool, result *MergeResult) error {
	changed, err := e.repo.HasChanges(ctx)
	if err != nil {
		return err
	}
	result.Changed = changed

	if !push {
		e.log.Info("merge applied, leaving changes uncommitted", zap.Bool("changed", changed))
		return nil
	}
	if !changed {
		e.log.Info("no changes after merge")
		return nil
	}

	if err := e.repo.StageAll(ctx); err != nil {
		return err
	}
	if err := e.repo.Commit(ctx, result.CommitMessage); err != nil {
		return err
	}
	result.Committed = true

	exists, err := e.repo.TagExists(ctx, result.Tag)
	if err != nil {
		return err
	}
	if exists {
		e.log.Info("tag already exists", zap.String("tag", result.Tag))
	} else {
		if err := e.repo.Tag(ctx, result.Tag); err != nil {
			return err
		}
		result.Tagged = true
	}

	if err := e.repo.Push(ctx, e.cfg.Remote, result.Branch, true); err != nil {
		return err
	}
	result.Pushed = true

	e.log.Info("merged and pushed",
		zap.String("branch", result.Branch),
		zap.String("commit", result.CommitMessage),
		zap.String("tag", result.Tag),
	)
	return nil
}

func source(s *snapshot.Snapshot) planner.Source {
	return planner.Source{Branch: s.Branch, Dir: s.Dir}
}

func sources(snaps []*snapshot.Snapshot) []planner.Source {
	out := make([]planner.Source, len(snaps))
	for i, s := range snaps {
		out[i] = source(s)
	}
	return out
}

func commits(snaps []*snapshot.Snapshot) []string {
	out := make([]string, len(snaps))
	for i, s := range snaps {
		out[i] = s.Commit
	}
	return out
}
