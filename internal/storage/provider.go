// Package storage discovers and reads ledger documents under a repository root.
package storage

import "github.com/starford/ledgerlint/internal/models"

// Provider is the interface for ledger file access.
type Provider interface {
	// List returns every ledger in the ledger directory, restricted to the
	// given issues when any are supplied, sorted by file name.
	List(issues ...string) ([]models.LedgerMetadata, error)
	// Read returns the raw bytes of a ledger (path relative to the repository root).
	Read(path string) ([]byte, error)
	// Stat returns metadata for a single ledger path.
	Stat(path string) (models.LedgerMetadata, error)
	// Root is the absolute repository root.
	Root() string
	// Dir is the absolute ledger directory.
	Dir() string
}
