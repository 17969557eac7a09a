package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/creatorincome/wpup/internal/config"
	"github.com/creatorincome/wpup/internal/fsops"
	"github.com/creatorincome/wpup/internal/gitx"
	"github.com/creatorincome/wpup/internal/snapshot"
)

const freeEntry = `<?php
/**
 * Plugin Name: Funnel Builder
 * Version: 1.0
 * Text Domain: funnel-builder
 */
require_once __DIR__ . '/inc/core.php';
`

const proEntry = `<?php
/**
 * Plugin Name: Funnel Builder Pro
 * Version: 2.3
 * Domain Path: /languages
 */
require_once __DIR__ . '/inc/pro.php';
`

// newTestEngine builds an engine over a FakeRepo whose working tree holds the
// master branch.
func newTestEngine(t *testing.T) (*Engine, *gitx.FakeRepo) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0755); err != nil {
		t.Fatal(err)
	}

	repo := gitx.NewFakeRepo(root, "origin", "master")
	repo.SetBranch("master", map[string]string{
		".gitignore":               "vendor/\n",
		".github/workflows/ci.yml": "on: push\n",
	})
	repo.SetBranch("free", map[string]string{
		"funnel-builder.php": freeEntry,
		"inc/core.php":       "<?php // core\n",
		"modules/a/a.php":    "<?php // free a\n",
		".gitignore":         "free-only\n",
	})
	repo.SetBranch("pro", map[string]string{
		"pro-loader.php":  "<?php // pro loader\n",
		"modules/a/a.php": "<?php // pro a\n",
		"modules/b/b.php": "<?php // pro b\n",
		"changelog.txt":   "= 2.3 =\n",
		"readme.txt":      "not merged\n",
	})
	repo.SetBranch("pro-standalone", map[string]string{
		"funnel-builder-pro.php": proEntry,
		"inc/pro.php":            "<?php // pro\n",
	})
	repo.AddTag("free", "free-v1.0")
	repo.AddTag("pro", "pro-v2.3")
	repo.AddTag("pro-standalone", "standalone-v2.3")

	if err := repo.ResetHard(context.Background()); err != nil {
		t.Fatal(err)
	}
	repo.Calls = nil

	cfg := &config.Config{
		LockedPaths: config.DefaultLockedPaths,
		Remote:      "origin",
		BaseBranch:  "master",
	}
	return New(repo, fsops.NewRealFS(), cfg, nil), repo
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("failed to read %s: %v", rel, err)
	}
	return string(data)
}

func hasCall(calls []string, prefix string) bool {
	for _, c := range calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func TestMerge_RequiresTwoBranches(t *testing.T) {
	eng, repo := newTestEngine(t)

	_, err := eng.Merge(context.Background(), &MergeRequest{Branches: []string{"free"}, Push: true})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if len(repo.Calls) != 0 {
		t.Errorf("expected no repository calls, got %v", repo.Calls)
	}
}

func TestMerge_InvalidTarget(t *testing.T) {
	eng, _ := newTestEngine(t)

	_, err := eng.Merge(context.Background(), &MergeRequest{Branches: []string{"free", "pro"}, Target: "-bad"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMerge_UnknownBranch(t *testing.T) {
	eng, repo := newTestEngine(t)

	_, err := eng.Merge(context.Background(), &MergeRequest{Branches: []string{"free", "missing"}, Target: "merged", Push: true})
	if !errors.Is(err, snapshot.ErrSnapshot) {
		t.Fatalf("expected ErrSnapshot, got %v", err)
	}
	if len(repo.Calls) != 0 {
		t.Errorf("expected no repository calls, got %v", repo.Calls)
	}
}

func TestMerge_LegacyOverlay(t *testing.T) {
	eng, repo := newTestEngine(t)
	root := repo.Root()

	result, err := eng.Merge(context.Background(), &MergeRequest{
		Branches: []string{"free", "pro"},
		Target:   "merged",
		Push:     true,
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	// Base content
	if got := readFile(t, root, "funnel-builder.php"); got != freeEntry {
		t.Errorf("funnel-builder.php = %q", got)
	}
	if got := readFile(t, root, "inc/core.php"); got != "<?php // core\n" {
		t.Errorf("inc/core.php = %q", got)
	}

	// modules/ is a union; the overlay wins on collisions
	if got := readFile(t, root, "modules/a/a.php"); got != "<?php // pro a\n" {
		t.Errorf("modules/a/a.php = %q", got)
	}
	if got := readFile(t, root, "modules/b/b.php"); got != "<?php // pro b\n" {
		t.Errorf("modules/b/b.php = %q", got)
	}

	// Root PHP files and allow-listed files come along; the rest does not
	if got := readFile(t, root, "pro-loader.php"); got != "<?php // pro loader\n" {
		t.Errorf("pro-loader.php = %q", got)
	}
	if got := readFile(t, root, "changelog.txt"); got != "= 2.3 =\n" {
		t.Errorf("changelog.txt = %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, "readme.txt")); !os.IsNotExist(err) {
		t.Error("readme.txt should not be merged from a legacy overlay")
	}

	// Locked paths keep the target's content
	if got := readFile(t, root, ".gitignore"); got != "vendor/\n" {
		t.Errorf(".gitignore = %q, want the target's copy", got)
	}

	if result.Tag != "merged-1.0-2.3" {
		t.Errorf("Tag = %q, want %q", result.Tag, "merged-1.0-2.3")
	}
	if result.CommitMessage != "Merge free=1.0, pro=2.3" {
		t.Errorf("CommitMessage = %q", result.CommitMessage)
	}
	if !result.Committed || !result.Tagged || !result.Pushed {
		t.Errorf("expected commit, tag and push, got %+v", result)
	}
	if !repo.HasTag("merged-1.0-2.3") {
		t.Error("tag merged-1.0-2.3 not created")
	}
	if len(repo.Pushes) != 1 || repo.Pushes[0] != (gitx.FakePush{Remote: "origin", Ref: "merged", WithTags: true}) {
		t.Errorf("Pushes = %+v", repo.Pushes)
	}
	if repo.Calls[0] != "fetch origin" || repo.Calls[1] != "checkout merged create=true" {
		t.Errorf("calls = %v, want fetch then target branch creation", repo.Calls[:2])
	}
}

func TestMerge_RelocatesSelfContainedOverlay(t *testing.T) {
	eng, repo := newTestEngine(t)
	root := repo.Root()

	result, err := eng.Merge(context.Background(), &MergeRequest{
		Branches: []string{"free", "pro-standalone"},
		Target:   "merged",
		Push:     true,
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if got := readFile(t, root, "funnel-builder-pro/funnel-builder-pro.php"); got != proEntry {
		t.Errorf("relocated entry file = %q", got)
	}
	if got := readFile(t, root, "funnel-builder-pro/inc/pro.php"); got != "<?php // pro\n" {
		t.Errorf("relocated include = %q", got)
	}

	wantStub := "<?php\n/**\n" +
		" * Plugin Name: Funnel Builder Pro\n" +
		" * Version: 2.3\n" +
		" * Domain Path: /funnel-builder-pro/languages\n" +
		" */\n\n" +
		"require_once __DIR__ . '/funnel-builder-pro/funnel-builder-pro.php';\n"
	if got := readFile(t, root, "funnel-builder-pro.php"); got != wantStub {
		t.Errorf("stub =\n%s\nwant\n%s", got, wantStub)
	}

	// The base entry file is untouched
	if got := readFile(t, root, "funnel-builder.php"); got != freeEntry {
		t.Errorf("funnel-builder.php = %q", got)
	}
	if result.Tag != "merged-1.0-2.3" {
		t.Errorf("Tag = %q", result.Tag)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	eng, repo := newTestEngine(t)
	req := &MergeRequest{Branches: []string{"free", "pro-standalone"}, Target: "merged", Push: true}

	if _, err := eng.Merge(context.Background(), req); err != nil {
		t.Fatalf("first Merge() error = %v", err)
	}
	first := repo.Branch("merged")

	result, err := eng.Merge(context.Background(), req)
	if err != nil {
		t.Fatalf("second Merge() error = %v", err)
	}
	if result.Changed || result.Committed {
		t.Errorf("second run should change nothing, got %+v", result)
	}
	if len(repo.Commits) != 1 {
		t.Errorf("Commits = %d, want 1", len(repo.Commits))
	}
	if len(repo.Pushes) != 1 {
		t.Errorf("Pushes = %d, want 1", len(repo.Pushes))
	}

	second := repo.Branch("merged")
	if len(first) != len(second) {
		t.Errorf("branch content changed: %d files, then %d", len(first), len(second))
	}
	for name, content := range first {
		if second[name] != content {
			t.Errorf("%s changed between runs", name)
		}
	}
}

func TestMerge_WithoutPushLeavesChangesUncommitted(t *testing.T) {
	eng, repo := newTestEngine(t)

	result, err := eng.Merge(context.Background(), &MergeRequest{Branches: []string{"free", "pro"}})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if !result.Changed {
		t.Error("expected working tree changes")
	}
	if result.Branch != "master" {
		t.Errorf("Branch = %q, want current branch", result.Branch)
	}
	for _, prefix := range []string{"add", "commit", "tag", "push"} {
		if hasCall(repo.Calls, prefix) {
			t.Errorf("unexpected %s call: %v", prefix, repo.Calls)
		}
	}
	if repo.HasTag(result.Tag) {
		t.Errorf("tag %s should not be created", result.Tag)
	}
	if got := readFile(t, repo.Root(), "pro-loader.php"); got != "<?php // pro loader\n" {
		t.Errorf("pro-loader.php = %q", got)
	}
}

func TestMerge_ExistingTagIsKept(t *testing.T) {
	eng, repo := newTestEngine(t)
	repo.AddTag("master", "merged-1.0-2.3")

	result, err := eng.Merge(context.Background(), &MergeRequest{Branches: []string{"free", "pro"}, Target: "merged", Push: true})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if !result.Committed || result.Tagged || !result.Pushed {
		t.Errorf("expected commit and push without a new tag, got %+v", result)
	}
	if hasCall(repo.Calls, "tag ") {
		t.Errorf("unexpected tag call: %v", repo.Calls)
	}
}

func TestMerge_DryRun(t *testing.T) {
	eng, repo := newTestEngine(t)

	result, err := eng.Merge(context.Background(), &MergeRequest{
		Branches: []string{"free", "pro-standalone"},
		Target:   "merged",
		Push:     true,
		DryRun:   true,
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}

	if len(repo.Calls) != 0 {
		t.Errorf("dry run made repository calls: %v", repo.Calls)
	}
	if len(result.Applied) != 0 {
		t.Errorf("dry run applied %d operations", len(result.Applied))
	}
	if len(result.Plan.Operations) == 0 {
		t.Error("expected planned operations")
	}
	if !strings.Contains(result.StubDiff, "+require_once __DIR__ . '/funnel-builder-pro/funnel-builder-pro.php';") {
		t.Errorf("StubDiff missing require line:\n%s", result.StubDiff)
	}
	if _, err := os.Stat(filepath.Join(repo.Root(), "funnel-builder-pro.php")); !os.IsNotExist(err) {
		t.Error("dry run wrote the stub")
	}
}

func TestMerge_RemoteTarget(t *testing.T) {
	eng, repo := newTestEngine(t)
	repo.SetUnfetchedBranch("merged", map[string]string{".gitignore": "vendor/\n"})

	if _, err := eng.Merge(context.Background(), &MergeRequest{Branches: []string{"free", "pro"}, Target: "merged", Push: true}); err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if repo.Calls[0] != "fetch origin" || repo.Calls[1] != "checkout merged from origin/merged" {
		t.Errorf("calls = %v, want fetch then tracking checkout", repo.Calls[:2])
	}
}

func TestMerge_RemoteOnlyBranchVersion(t *testing.T) {
	eng, repo := newTestEngine(t)
	repo.SetRemoteBranch("pro-remote", map[string]string{
		"pro-loader.php": "<?php // pro loader\n",
	})
	repo.AddTag("origin/pro-remote", "pro-v2.4")

	result, err := eng.Merge(context.Background(), &MergeRequest{
		Branches: []string{"free", "pro-remote"},
		Target:   "merged",
		Push:     true,
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if result.Tag != "merged-1.0-2.4" {
		t.Errorf("Tag = %q, want %q", result.Tag, "merged-1.0-2.4")
	}
	if result.CommitMessage != "Merge free=1.0, pro-remote=2.4" {
		t.Errorf("CommitMessage = %q", result.CommitMessage)
	}
	if got := readFile(t, repo.Root(), "pro-loader.php"); got != "<?php // pro loader\n" {
		t.Errorf("pro-loader.php = %q", got)
	}
}

func TestSyncLocked(t *testing.T) {
	eng, repo := newTestEngine(t)
	repo.SetRemoteBranch("master", map[string]string{".github/workflows/ci.yml": "on: [push]\n"})

	if err := eng.SyncLocked(context.Background(), &SyncLockedRequest{}); err != nil {
		t.Fatalf("SyncLocked() error = %v", err)
	}
	if len(repo.Commits) != 1 || repo.Commits[0].Message != "Sync locked paths from origin/master" {
		t.Errorf("Commits = %+v", repo.Commits)
	}
	if !hasCall(repo.Calls, "fetch origin master:refs/remotes/origin/master") {
		t.Errorf("expected fetch of the base branch, got %v", repo.Calls)
	}
}

func TestBranchVersion(t *testing.T) {
	eng, _ := newTestEngine(t)

	v, err := eng.BranchVersion(context.Background(), "free")
	if err != nil {
		t.Fatalf("BranchVersion() error = %v", err)
	}
	if v != "1.0" {
		t.Errorf("BranchVersion() = %q, want %q", v, "1.0")
	}

	if _, err := eng.BranchVersion(context.Background(), "pro"); err == nil {
		t.Error("expected error for a branch without an entry file")
	}
}
