// Package testutil provides shared test helpers for ledger repositories,
// history databases and a canned commit inspector.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/starford/ledgerlint/internal/index"
	"github.com/starford/ledgerlint/internal/storage"
)

// ValidLedger is a well-formed ledger for issue 1 whose done task cites
// commit "abc1234".
const ValidLedger = `version: 1
issue: 1
base: main
branch: agent/issue-1
tasks:
  - id: t1
    title: Write the parser
    status: done
    started_at: "2024-05-01T10:00:00Z"
    finished_at: "2024-05-01T11:00:00Z"
    commit: abc1234
  - id: t2
    title: Wire the CLI
    status: doing
    started_at: "2024-05-01T11:05:00Z"
  - id: t3
    title: Write docs
    status: todo
`

// TestDB creates a temporary history database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ledgerlint-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestRepo creates a temporary repository root with an empty ledger
// directory and returns the root and a storage provider for it.
func TestRepo(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, filepath.FromSlash(storage.DefaultLedgerDir)), 0o755); err != nil {
		t.Fatal(err)
	}
	store, err := storage.NewFS(root, storage.DefaultLedgerDir)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// WriteLedger writes a ledger file into the ledger directory and returns
// its repository-relative path.
func WriteLedger(t *testing.T, store storage.Provider, name, content string) string {
	t.Helper()
	if err := os.WriteFile(filepath.Join(store.Dir(), name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return storage.DefaultLedgerDir + "/" + name
}

// FakeInspector returns canned commit facts. Unknown commits fail.
type FakeInspector struct {
	mu       sync.Mutex
	Files    map[string][]string
	Subjects map[string]string
	Calls    []string

	subjectErrs map[string]error
}

// NewFakeInspector returns an empty FakeInspector.
func NewFakeInspector() *FakeInspector {
	return &FakeInspector{Files: map[string][]string{}, Subjects: map[string]string{}}
}

// Add registers a commit touching files.
func (f *FakeInspector) Add(ref, subject string, files ...string) *FakeInspector {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Files[ref] = files
	f.Subjects[ref] = subject
	return f
}

// FailSubject makes Subject fail with err for ref while ChangedFiles keeps
// answering.
func (f *FakeInspector) FailSubject(ref string, err error) *FakeInspector {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subjectErrs == nil {
		f.subjectErrs = map[string]error{}
	}
	f.subjectErrs[ref] = err
	return f
}

// ChangedFiles implements gitinspect.Inspector.
func (f *FakeInspector) ChangedFiles(_ context.Context, ref string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, ref)
	files, ok := f.Files[ref]
	if !ok {
		return nil, fmt.Errorf("unknown revision %s", ref)
	}
	return files, nil
}

// Subject implements gitinspect.Inspector.
func (f *FakeInspector) Subject(_ context.Context, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.subjectErrs[ref]; err != nil {
		return "", err
	}
	subject, ok := f.Subjects[ref]
	if !ok {
		return "", fmt.Errorf("unknown revision %s", ref)
	}
	return subject, nil
}
