// Package models defines the domain types shared across ledgerlint packages.
package models

import "time"

// LedgerMetadata describes one discovered ledger file.
type LedgerMetadata struct {
	Path      string    `json:"path"` // slash-separated, relative to the repository root
	Name      string    `json:"name"`
	Issue     string    `json:"issue"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RunSummary is one recorded validation run.
type RunSummary struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	OK         bool      `json:"ok"`
	Ledgers    int       `json:"ledgers"`
	Violations int       `json:"violations"`
	Source     string    `json:"source"` // "cli", "watch", "api", "mcp"
}
