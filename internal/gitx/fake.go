package gitx

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FakeRepo implements Repo in memory for tests.
//
// Branches are flat maps of slash-separated path to content. Checking out a
// branch rewrites the working tree under root (everything but .git) to match
// it, and Commit snapshots the working tree back into the current branch.
// Every mutating call is recorded in Calls.
type FakeRepo struct {
	root    string
	remote  string
	current string

	branches       map[string]map[string][]byte
	remoteBranches map[string]map[string][]byte
	fetched        map[string]bool
	tags           map[string]string
	tagOrder       []string

	Calls   []string
	Commits []FakeCommit
	Pushes  []FakePush

	// Errs makes the named method (for example "Push") fail.
	Errs map[string]error
}

// FakeCommit records a commit made through FakeRepo.
type FakeCommit struct {
	Branch  string
	Message string
}

// FakePush records a push made through FakeRepo.
type FakePush struct {
	Remote   string
	Ref      string
	WithTags bool
}

// NewFakeRepo creates a FakeRepo whose working tree lives at root, with an
// empty branch checked out.
func NewFakeRepo(root, remote, branch string) *FakeRepo {
	return &FakeRepo{
		root:           root,
		remote:         remote,
		current:        branch,
		branches:       map[string]map[string][]byte{branch: {}},
		remoteBranches: map[string]map[string][]byte{},
		fetched:        map[string]bool{},
		tags:           map[string]string{},
		Errs:           map[string]error{},
	}
}

// SetBranch replaces the committed content of a local branch.
func (f *FakeRepo) SetBranch(name string, files map[string]string) {
	f.branches[name] = toTree(files)
}

// SetRemoteBranch replaces the content of a branch that only the remote has.
// Its remote-tracking ref is present, as after a fetch.
func (f *FakeRepo) SetRemoteBranch(name string, files map[string]string) {
	f.remoteBranches[name] = toTree(files)
	f.fetched[name] = true
}

// SetUnfetchedBranch adds a branch the remote has but that has not been
// fetched: ls-remote sees it, refs do not resolve until Fetch.
func (f *FakeRepo) SetUnfetchedBranch(name string, files map[string]string) {
	f.remoteBranches[name] = toTree(files)
	f.fetched[name] = false
}

// AddTag attaches tag to branch without recording a call. branch may be a
// remote-tracking name such as "origin/pro". A tag name points at one branch;
// adding it again moves it.
func (f *FakeRepo) AddTag(branch, tag string) {
	f.tags[tag] = branch
	f.tagOrder = append(f.tagOrder, tag)
}

// Branch returns the committed content of a local branch.
func (f *FakeRepo) Branch(name string) map[string]string {
	tree, ok := f.branches[name]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(tree))
	for k, v := range tree {
		out[k] = string(v)
	}
	return out
}

// HasTag reports whether tag was created.
func (f *FakeRepo) HasTag(tag string) bool {
	_, ok := f.tags[tag]
	return ok
}

func toTree(files map[string]string) map[string][]byte {
	tree := make(map[string][]byte, len(files))
	for k, v := range files {
		tree[k] = []byte(v)
	}
	return tree
}

func (f *FakeRepo) record(call string) {
	f.Calls = append(f.Calls, call)
}

func (f *FakeRepo) fail(method string) error {
	return f.Errs[method]
}

// canonical resolves a ref the way RealRepo does (local branch,
// "<remote>/<name>", then the bare name on the remote) and returns the name
// that identifies it: the local branch or "<remote>/<name>".
func (f *FakeRepo) canonical(ref string) (string, bool) {
	if _, ok := f.branches[ref]; ok {
		return ref, true
	}
	name, ok := strings.CutPrefix(ref, f.remote+"/")
	if !ok {
		name = ref
	}
	if _, ok := f.remoteBranches[name]; ok && f.fetched[name] {
		return f.remote + "/" + name, true
	}
	return "", false
}

func (f *FakeRepo) tree(name string) map[string][]byte {
	if tree, ok := f.branches[name]; ok {
		return tree
	}
	return f.remoteBranches[strings.TrimPrefix(name, f.remote+"/")]
}

func (f *FakeRepo) lookup(ref string) (map[string][]byte, bool) {
	if name, ok := f.canonical(ref); ok {
		return f.tree(name), true
	}
	if branch, ok := f.tags[ref]; ok {
		return f.tree(branch), true
	}
	return nil, false
}

// Root returns the working tree root.
func (f *FakeRepo) Root() string {
	return f.root
}

// ResolveRef returns the branch name ref resolves to, standing in for a
// commit hash: the local branch, "<remote>/<name>", or the tagged branch.
func (f *FakeRepo) ResolveRef(_ context.Context, ref string) (string, error) {
	if err := f.fail("ResolveRef"); err != nil {
		return "", err
	}
	if name, ok := f.canonical(ref); ok {
		return name, nil
	}
	if branch, ok := f.tags[ref]; ok {
		return branch, nil
	}
	return "", fmt.Errorf("%w: %s", ErrRefNotFound, ref)
}

// ExportTree writes the content of ref into dst.
func (f *FakeRepo) ExportTree(_ context.Context, ref, dst string, skip func(path string) bool) error {
	if err := f.fail("ExportTree"); err != nil {
		return err
	}
	tree, ok := f.lookup(ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRefNotFound, ref)
	}
	for _, name := range sortedKeys(tree) {
		if skip != nil && skip(name) {
			continue
		}
		if err := writeFile(filepath.Join(dst, filepath.FromSlash(name)), tree[name]); err != nil {
			return err
		}
	}
	return nil
}

// PathExists reports whether ref holds path as a file or directory.
func (f *FakeRepo) PathExists(_ context.Context, ref, path string) (bool, error) {
	tree, ok := f.lookup(ref)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrRefNotFound, ref)
	}
	for name := range tree {
		if name == path || strings.HasPrefix(name, path+"/") {
			return true, nil
		}
	}
	return false, nil
}

// CurrentBranch returns the checked out branch.
func (f *FakeRepo) CurrentBranch(_ context.Context) (string, error) {
	return f.current, nil
}

// LocalBranchExists reports whether a local branch exists.
func (f *FakeRepo) LocalBranchExists(_ context.Context, branch string) (bool, error) {
	_, ok := f.branches[branch]
	return ok, nil
}

// RemoteBranchExists reports whether the remote has branch.
func (f *FakeRepo) RemoteBranchExists(_ context.Context, remote, branch string) (bool, error) {
	if remote != f.remote {
		return false, nil
	}
	_, ok := f.remoteBranches[branch]
	return ok, nil
}

// TagExists reports whether tag exists.
func (f *FakeRepo) TagExists(_ context.Context, tag string) (bool, error) {
	return f.HasTag(tag), nil
}

// MostRecentTag returns the last tag added to the branch ref resolves to.
func (f *FakeRepo) MostRecentTag(_ context.Context, ref string) (string, error) {
	name, ok := f.canonical(ref)
	if !ok {
		name = ref
	}
	for i := len(f.tagOrder) - 1; i >= 0; i-- {
		tag := f.tagOrder[i]
		if f.tags[tag] == name {
			return tag, nil
		}
	}
	return "", fmt.Errorf("no names found for %s", ref)
}

// Checkout switches branches. Creating a branch copies the current branch and
// leaves the working tree alone.
func (f *FakeRepo) Checkout(_ context.Context, ref string, create bool) error {
	f.record(fmt.Sprintf("checkout %s create=%t", ref, create))
	if err := f.fail("Checkout"); err != nil {
		return err
	}

	if create {
		if _, ok := f.branches[ref]; ok {
			return fmt.Errorf("branch %s already exists", ref)
		}
		f.branches[ref] = maps.Clone(f.branches[f.current])
		f.current = ref
		return nil
	}

	tree, ok := f.branches[ref]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRefNotFound, ref)
	}
	f.current = ref
	return f.materialize(tree)
}

// CheckoutTracking creates branch from startPoint and switches to it.
func (f *FakeRepo) CheckoutTracking(_ context.Context, branch, startPoint string) error {
	f.record(fmt.Sprintf("checkout %s from %s", branch, startPoint))
	if err := f.fail("CheckoutTracking"); err != nil {
		return err
	}
	tree, ok := f.lookup(startPoint)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRefNotFound, startPoint)
	}
	f.branches[branch] = maps.Clone(tree)
	f.current = branch
	return f.materialize(tree)
}

// CheckoutPaths copies the files under paths from ref into the working tree.
func (f *FakeRepo) CheckoutPaths(_ context.Context, ref string, paths ...string) error {
	f.record(fmt.Sprintf("checkout %s -- %s", ref, strings.Join(paths, " ")))
	if err := f.fail("CheckoutPaths"); err != nil {
		return err
	}
	tree, ok := f.lookup(ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRefNotFound, ref)
	}
	for _, p := range paths {
		matched := false
		for name, data := range tree {
			if name != p && !strings.HasPrefix(name, p+"/") {
				continue
			}
			matched = true
			if err := writeFile(filepath.Join(f.root, filepath.FromSlash(name)), data); err != nil {
				return err
			}
		}
		if !matched {
			return fmt.Errorf("pathspec %q did not match any file known to git", p)
		}
	}
	return nil
}

// ResetHard rewrites the working tree to the current branch.
func (f *FakeRepo) ResetHard(_ context.Context) error {
	f.record("reset --hard")
	if err := f.fail("ResetHard"); err != nil {
		return err
	}
	return f.materialize(f.branches[f.current])
}

// HasChanges compares the working tree with the current branch.
func (f *FakeRepo) HasChanges(_ context.Context) (bool, error) {
	if err := f.fail("HasChanges"); err != nil {
		return false, err
	}
	work, err := f.readWorkTree()
	if err != nil {
		return false, err
	}
	committed := f.branches[f.current]
	if len(work) != len(committed) {
		return true, nil
	}
	for name, data := range work {
		old, ok := committed[name]
		if !ok || !bytes.Equal(old, data) {
			return true, nil
		}
	}
	return false, nil
}

// StageAll records the call.
func (f *FakeRepo) StageAll(_ context.Context) error {
	f.record("add -A")
	return f.fail("StageAll")
}

// Commit snapshots the working tree into the current branch.
func (f *FakeRepo) Commit(_ context.Context, message string) error {
	f.record("commit " + message)
	if err := f.fail("Commit"); err != nil {
		return err
	}
	work, err := f.readWorkTree()
	if err != nil {
		return err
	}
	f.branches[f.current] = work
	f.Commits = append(f.Commits, FakeCommit{Branch: f.current, Message: message})
	return nil
}

// Tag attaches name to the current branch.
func (f *FakeRepo) Tag(_ context.Context, name string) error {
	f.record("tag " + name)
	if err := f.fail("Tag"); err != nil {
		return err
	}
	if f.HasTag(name) {
		return fmt.Errorf("tag %s already exists", name)
	}
	f.AddTag(f.current, name)
	return nil
}

// Fetch records the call and makes the fetched remote branches resolvable.
// An empty refspec fetches every branch.
func (f *FakeRepo) Fetch(_ context.Context, remote, refspec string) error {
	f.record(strings.TrimSpace("fetch " + remote + " " + refspec))
	if err := f.fail("Fetch"); err != nil {
		return err
	}
	if remote != f.remote {
		return nil
	}
	if refspec == "" {
		for name := range f.remoteBranches {
			f.fetched[name] = true
		}
		return nil
	}
	name, _, _ := strings.Cut(refspec, ":")
	if _, ok := f.remoteBranches[name]; ok {
		f.fetched[name] = true
	}
	return nil
}

// Push records the push.
func (f *FakeRepo) Push(_ context.Context, remote, ref string, withTags bool) error {
	f.record(fmt.Sprintf("push %s %s tags=%t", remote, ref, withTags))
	if err := f.fail("Push"); err != nil {
		return err
	}
	f.Pushes = append(f.Pushes, FakePush{Remote: remote, Ref: ref, WithTags: withTags})
	return nil
}

// materialize replaces the working tree (except .git) with tree.
func (f *FakeRepo) materialize(tree map[string][]byte) error {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return fmt.Errorf("failed to read working tree: %w", err)
	}
	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(f.root, e.Name())); err != nil {
			return err
		}
	}
	for name, data := range tree {
		if err := writeFile(filepath.Join(f.root, filepath.FromSlash(name)), data); err != nil {
			return err
		}
	}
	return nil
}

func (f *FakeRepo) readWorkTree() (map[string][]byte, error) {
	tree := map[string][]byte{}
	err := filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(f.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree[rel] = data
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read working tree: %w", err)
	}
	return tree, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func sortedKeys(tree map[string][]byte) []string {
	keys := make([]string, 0, len(tree))
	for k := range tree {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
