package gitx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ExecError is returned when a git subprocess exits unsuccessfully.
type ExecError struct {
	Args   []string
	Err    error
	StdErr string
	StdOut string
}

func (e *ExecError) Error() string {
	b := new(strings.Builder)
	b.WriteString("git ")
	b.WriteString(strings.Join(e.Args, " "))
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if stderr := strings.TrimSpace(e.StdErr); stderr != "" {
		b.WriteString(": ")
		b.WriteString(stderr)
	}
	return b.String()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// runner executes git in a fixed working directory.
type runner struct {
	dir     string
	gitPath string
	log     *zap.Logger
}

// run executes a git command and returns its trimmed stdout.
// Omit the 'git' part of the command.
func (r *runner) run(ctx context.Context, args ...string) (string, error) {
	r.log.Debug("git", zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, r.gitPath, args...)
	cmd.Dir = r.dir
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &ExecError{
			Args:   args,
			Err:    err,
			StdOut: stdout.String(),
			StdErr: stderr.String(),
		}
	}

	return strings.TrimSpace(stdout.String()), nil
}

// validRefPattern matches branch, tag and remote names that are safe to pass
// to git as positional arguments.
var validRefPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._/-]*$`)

// ValidateRef rejects names that git would treat as options or that carry
// characters outside the ref-name alphabet we accept.
func ValidateRef(name, kind string) error {
	if name == "" {
		return fmt.Errorf("invalid %s: empty", kind)
	}
	if !validRefPattern.MatchString(name) {
		return fmt.Errorf("invalid %s %q: contains invalid characters", kind, name)
	}
	if strings.Contains(name, "..") || strings.HasSuffix(name, "/") || strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("invalid %s %q", kind, name)
	}
	return nil
}
