//go:build integration

package integration

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/creatorincome/wpup/internal/config"
	"github.com/creatorincome/wpup/internal/engine"
	"github.com/creatorincome/wpup/internal/fsops"
	"github.com/creatorincome/wpup/internal/gitx"
)

// fixture is a working clone with a bare origin next to it.
type fixture struct {
	work   string
	origin string
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func git(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v: %s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// newFixture creates origin and a clone whose master branch holds files.
func newFixture(t *testing.T, master map[string]string) *fixture {
	t.Helper()
	requireGit(t)

	f := &fixture{work: t.TempDir(), origin: t.TempDir()}
	git(t, f.origin, "init", "-q", "--bare")
	git(t, f.origin, "symbolic-ref", "HEAD", "refs/heads/master")

	git(t, f.work, "init", "-q")
	git(t, f.work, "symbolic-ref", "HEAD", "refs/heads/master")
	git(t, f.work, "config", "user.name", "Test")
	git(t, f.work, "config", "user.email", "test@example.com")
	git(t, f.work, "config", "commit.gpgsign", "false")
	git(t, f.work, "config", "tag.gpgsign", "false")
	git(t, f.work, "remote", "add", "origin", f.origin)

	f.commit(t, master, "initial")
	git(t, f.work, "push", "-q", "origin", "master")
	return f
}

func (f *fixture) writeFiles(t *testing.T, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(f.work, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func (f *fixture) commit(t *testing.T, files map[string]string, msg string) {
	t.Helper()
	f.writeFiles(t, files)
	git(t, f.work, "add", "-A")
	git(t, f.work, "commit", "-q", "-m", msg)
}

// branch creates an orphan branch holding only files, tags it and switches
// back to master.
func (f *fixture) branch(t *testing.T, name, tag string, files map[string]string) {
	t.Helper()
	git(t, f.work, "checkout", "-q", "--orphan", name)
	git(t, f.work, "rm", "-rfq", ".")
	f.commit(t, files, "add "+name)
	if tag != "" {
		git(t, f.work, "tag", tag)
	}
	git(t, f.work, "checkout", "-q", "master")
}

// show returns the content of path at rev in origin.
func (f *fixture) show(t *testing.T, rev, path string) string {
	t.Helper()
	return git(t, f.origin, "show", rev+":"+path)
}

func (f *fixture) engine(t *testing.T) *engine.Engine {
	t.Helper()
	repo, err := gitx.Open(f.work, "origin", nil)
	if err != nil {
		t.Fatalf("failed to open repository: %v", err)
	}
	cfg := &config.Config{
		LockedPaths: config.DefaultLockedPaths,
		Remote:      "origin",
		BaseBranch:  "master",
	}
	return engine.New(repo, fsops.NewRealFS(), cfg, nil)
}
