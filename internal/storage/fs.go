package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/starford/ledgerlint/internal/models"
)

// DefaultLedgerDir is the conventional ledger location relative to the repository root.
const DefaultLedgerDir = ".automation/ledgers"

var ledgerNameRe = regexp.MustCompile(`^issue-(.+)-ledger\..+$`)

// IssueFromName returns the issue part of a ledger file name
// (issue-<N>-ledger.<ext>).
func IssueFromName(name string) (string, bool) {
	m := ledgerNameRe.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute repository root
	dir  string // absolute ledger directory
}

// NewFS creates a provider for the ledger directory dir (relative to root).
// Both must already exist.
func NewFS(root, dir string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	f := &FS{root: abs}
	ledgerDir, err := f.safePath(dir)
	if err != nil {
		return nil, err
	}
	info, err = os.Stat(ledgerDir)
	if err != nil {
		return nil, fmt.Errorf("storage: stat ledger dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: ledger dir is not a directory: %s", ledgerDir)
	}
	f.dir = ledgerDir
	return f, nil
}

// Root returns the absolute repository root.
func (f *FS) Root() string { return f.root }

// Dir returns the absolute ledger directory.
func (f *FS) Dir() string { return f.dir }

// safePath resolves a relative path against the repository root and rejects
// any result that escapes it.
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(filepath.FromSlash(rel))
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes repository root: %s", rel)
	}
	return abs, nil
}

// List reads the ledger directory (not recursively) and returns metadata
// for every file named issue-*-ledger.*.
func (f *FS) List(issues ...string) ([]models.LedgerMetadata, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []models.LedgerMetadata
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		issue, ok := IssueFromName(e.Name())
		if !ok || !matchesIssue(issue, issues) {
			continue
		}
		meta, err := f.stat(filepath.Join(f.dir, e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Stat returns metadata for one ledger path relative to the repository root.
func (f *FS) Stat(path string) (models.LedgerMetadata, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return models.LedgerMetadata{}, err
	}
	return f.stat(abs)
}

func (f *FS) stat(abs string) (models.LedgerMetadata, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return models.LedgerMetadata{}, fmt.Errorf("storage: stat %s: %w", abs, err)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return models.LedgerMetadata{}, fmt.Errorf("storage: read %s: %w", abs, err)
	}
	rel, err := filepath.Rel(f.root, abs)
	if err != nil {
		return models.LedgerMetadata{}, fmt.Errorf("storage: relative path: %w", err)
	}
	issue, _ := IssueFromName(info.Name())
	return models.LedgerMetadata{
		Path:      filepath.ToSlash(rel),
		Name:      info.Name(),
		Issue:     issue,
		Checksum:  checksum(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

// Read returns the raw bytes of a ledger.
func (f *FS) Read(path string) ([]byte, error) {
	abs, err := f.safePath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", path, err)
	}
	return data, nil
}

// matchesIssue compares numerically when both sides are integers, so a
// filter of "007" selects issue-7-ledger.yml.
func matchesIssue(issue string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	n, numErr := strconv.Atoi(issue)
	for _, want := range filters {
		if want == issue {
			return true
		}
		if numErr != nil {
			continue
		}
		if w, err := strconv.Atoi(want); err == nil && w == n {
			return true
		}
	}
	return false
}

func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
