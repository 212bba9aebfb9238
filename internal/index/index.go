package index

import (
	"github.com/starford/ledgerlint/internal/models"
	"github.com/starford/ledgerlint/internal/report"
)

// History records validation runs. Consumers should depend on this
// interface rather than the concrete *DB type.
type History interface {
	RecordRun(rep *report.Report, source string) (models.RunSummary, error)
	ListRuns(limit int) ([]models.RunSummary, error)
	GetRun(id string) (models.RunSummary, error)
	RunViolations(id string) ([]ViolationRow, error)
	Close() error
}

// ChecksumStore remembers the last validated checksum of each ledger.
type ChecksumStore interface {
	AllChecksums() (map[string]string, error)
	SetChecksum(path, checksum string) error
	DeleteChecksum(path string) error
}

// Verify *DB satisfies both interfaces at compile time.
var (
	_ History       = (*DB)(nil)
	_ ChecksumStore = (*DB)(nil)
)
