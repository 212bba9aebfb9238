package gitinspect

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

type repo struct {
	t    *testing.T
	root string
}

// newRepo initialises an empty git repository in a temporary directory.
func newRepo(t *testing.T) *repo {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	r := &repo{t: t, root: t.TempDir()}
	r.git("init", "-q")
	return r
}

func (r *repo) git(args ...string) string {
	r.t.Helper()
	cmd := exec.Command("git", append([]string{"-C", r.root}, args...)...)
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %v: %v\n%s", args, err, out)
	}
	return strings.TrimSpace(string(out))
}

func (r *repo) write(rel, content string) {
	r.t.Helper()
	p := filepath.Join(r.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		r.t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		r.t.Fatal(err)
	}
}

// commit stages everything and returns the new HEAD hash.
func (r *repo) commit(msg string) string {
	r.t.Helper()
	r.git("add", ".")
	r.git("commit", "-q", "-m", msg)
	return r.git("rev-parse", "HEAD")
}

// gitRepo creates a repository with two commits and returns the root and
// the hashes of both commits.
func gitRepo(t *testing.T) (string, string, string) {
	t.Helper()
	r := newRepo(t)
	r.write(".automation/ledgers/issue-1-ledger.yml", "version: 1\n")
	r.write("src/main.go", "package main\n")
	first := r.commit("Add ledger and source")

	r.write(".automation/ledgers/issue-1-ledger.yml", "version: 1\nissue: 1\n")
	second := r.commit("Update ledger only")
	return r.root, first, second
}

func TestGit_ChangedFiles(t *testing.T) {
	root, first, second := gitRepo(t)
	g := NewGit(root)

	files, err := g.ChangedFiles(context.Background(), first)
	if err != nil {
		t.Fatalf("ChangedFiles(first): %v", err)
	}
	sort.Strings(files)
	if len(files) != 2 || files[0] != ".automation/ledgers/issue-1-ledger.yml" || files[1] != "src/main.go" {
		t.Errorf("first files = %v", files)
	}

	files, err = g.ChangedFiles(context.Background(), second[:7])
	if err != nil {
		t.Fatalf("ChangedFiles(second): %v", err)
	}
	if len(files) != 1 || files[0] != ".automation/ledgers/issue-1-ledger.yml" {
		t.Errorf("second files = %v", files)
	}
}

func TestGit_Subject(t *testing.T) {
	root, _, second := gitRepo(t)
	subject, err := NewGit(root).Subject(context.Background(), second)
	if err != nil {
		t.Fatalf("Subject: %v", err)
	}
	if subject != "Update ledger only" {
		t.Errorf("subject = %q", subject)
	}
}

func TestGit_UnknownRef(t *testing.T) {
	root, _, _ := gitRepo(t)
	g := NewGit(root)
	if _, err := g.ChangedFiles(context.Background(), "deadbee"); err == nil {
		t.Error("expected error for unknown ref")
	}
	if _, err := g.Subject(context.Background(), "deadbee"); err == nil {
		t.Error("expected error for unknown ref")
	}
}

func TestGit_RejectsOptionLikeRef(t *testing.T) {
	g := NewGit(t.TempDir())
	_, err := g.ChangedFiles(context.Background(), "--output=/tmp/x")
	if err == nil || !strings.Contains(err.Error(), "invalid commit reference") {
		t.Errorf("err = %v", err)
	}
	if _, err := g.Subject(context.Background(), ""); err == nil {
		t.Error("expected error for empty ref")
	}
}

func TestGit_MissingBinary(t *testing.T) {
	g := NewGit(t.TempDir(), WithBinary("/nonexistent/git"))
	if _, err := g.ChangedFiles(context.Background(), "HEAD"); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestGit_ChangedFilesRelativeToSubdirectoryRoot(t *testing.T) {
	r := newRepo(t)
	r.write("svc/.automation/ledgers/issue-1-ledger.yml", "version: 1\n")
	r.write("svc/main.go", "package main\n")
	r.write("lib/util.go", "package lib\n")
	first := r.commit("Add service and lib")

	r.write("svc/.automation/ledgers/issue-1-ledger.yml", "version: 1\nissue: 1\n")
	ledgerOnly := r.commit("Update ledger only")

	g := NewGit(filepath.Join(r.root, "svc"))

	files, err := g.ChangedFiles(context.Background(), ledgerOnly)
	if err != nil {
		t.Fatalf("ChangedFiles: %v", err)
	}
	if len(files) != 1 || files[0] != ".automation/ledgers/issue-1-ledger.yml" {
		t.Errorf("files = %v, want the ledger relative to svc/", files)
	}

	files, err = g.ChangedFiles(context.Background(), first)
	if err != nil {
		t.Fatalf("ChangedFiles: %v", err)
	}
	sort.Strings(files)
	want := []string{".automation/ledgers/issue-1-ledger.yml", "../lib/util.go", "main.go"}
	if strings.Join(files, ",") != strings.Join(want, ",") {
		t.Errorf("files = %v, want %v", files, want)
	}
}

func TestGit_ChangedFilesUnquoted(t *testing.T) {
	r := newRepo(t)
	r.write("docs/résumé notes.md", "x\n")
	ref := r.commit("Add notes")

	files, err := NewGit(r.root).ChangedFiles(context.Background(), ref)
	if err != nil {
		t.Fatalf("ChangedFiles: %v", err)
	}
	if len(files) != 1 || files[0] != "docs/résumé notes.md" {
		t.Errorf("files = %q", files)
	}
}

func TestRelativeTo(t *testing.T) {
	tests := []struct {
		prefix, name, want string
	}{
		{"", "a/b.go", "a/b.go"},
		{"svc/", "svc/a.go", "a.go"},
		{"svc/", "lib/a.go", "../lib/a.go"},
		{"apps/svc/", "apps/other/a.go", "../../apps/other/a.go"},
	}
	for _, tt := range tests {
		if got := relativeTo(tt.prefix, tt.name); got != tt.want {
			t.Errorf("relativeTo(%q, %q) = %q, want %q", tt.prefix, tt.name, got, tt.want)
		}
	}
}
