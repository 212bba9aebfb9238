// Package gitinspect answers narrow read-only questions about single commits.
package gitinspect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Inspector reports facts about one commit at a time.
type Inspector interface {
	// ChangedFiles returns the paths the commit touched, relative to the
	// inspected root.
	ChangedFiles(ctx context.Context, ref string) ([]string, error)
	// Subject returns the first line of the commit message.
	Subject(ctx context.Context, ref string) (string, error)
}

// Git implements Inspector by running the git binary in a repository.
// The root may be a subdirectory of the work tree.
type Git struct {
	root    string
	binary  string
	timeout time.Duration

	mu       sync.Mutex
	prefix   string
	resolved bool
}

// Option configures Git.
type Option func(*Git)

// WithBinary overrides the git executable.
func WithBinary(path string) Option {
	return func(g *Git) {
		if path != "" {
			g.binary = path
		}
	}
}

// WithTimeout bounds every git invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(g *Git) {
		g.timeout = d
	}
}

// NewGit returns an inspector for the repository at root.
func NewGit(root string, opts ...Option) *Git {
	g := &Git{root: root, binary: "git", timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ChangedFiles lists the files changed by ref. Root commits are compared
// against the empty tree. Paths are relative to the root given to NewGit;
// files outside it get one leading "../" per directory level.
func (g *Git) ChangedFiles(ctx context.Context, ref string) ([]string, error) {
	if err := checkRef(ref); err != nil {
		return nil, err
	}
	prefix, err := g.workTreePrefix(ctx)
	if err != nil {
		return nil, err
	}
	out, err := g.run(ctx, "diff-tree", "-z", "--no-commit-id", "--name-only", "-r", "--root", ref, "--")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, name := range strings.Split(out, "\x00") {
		if name == "" {
			continue
		}
		files = append(files, relativeTo(prefix, name))
	}
	return files, nil
}

// Subject returns the subject line of ref.
func (g *Git) Subject(ctx context.Context, ref string) (string, error) {
	if err := checkRef(ref); err != nil {
		return "", err
	}
	out, err := g.run(ctx, "log", "-1", "--format=%s", ref, "--")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// workTreePrefix returns the location of root below the work tree top
// level as printed by rev-parse: empty at the top, otherwise ending in "/".
// Only a successful lookup is cached.
func (g *Git) workTreePrefix(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.resolved {
		return g.prefix, nil
	}
	out, err := g.run(ctx, "rev-parse", "--show-prefix")
	if err != nil {
		return "", err
	}
	g.prefix = strings.TrimRight(out, "\n")
	g.resolved = true
	return g.prefix, nil
}

// relativeTo rewrites a work-tree path so it is relative to prefix.
func relativeTo(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if rest, ok := strings.CutPrefix(name, prefix); ok {
		return rest
	}
	return strings.Repeat("../", strings.Count(prefix, "/")) + name
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	full := append([]string{"-C", g.root}, args...)
	cmd := exec.CommandContext(ctx, g.binary, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("gitinspect: git %s timed out after %s", args[0], g.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("gitinspect: git %s: %s", args[0], firstLine(msg))
	}
	return stdout.String(), nil
}

// checkRef rejects refs git would read as options.
func checkRef(ref string) error {
	if ref == "" {
		return errors.New("gitinspect: empty commit reference")
	}
	if strings.HasPrefix(ref, "-") {
		return fmt.Errorf("gitinspect: invalid commit reference %q", ref)
	}
	return nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
