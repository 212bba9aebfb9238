package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/ledgerlint/internal/apperr"
	"github.com/starford/ledgerlint/internal/models"
	"github.com/starford/ledgerlint/internal/report"
)

// DefaultRunLimit caps ListRuns when no positive limit is given.
const DefaultRunLimit = 20

// ViolationRow is one stored violation of a run.
type ViolationRow struct {
	Position int    `json:"position"`
	Ledger   string `json:"ledger"`
	Message  string `json:"message"`
}

// RecordRun stores rep and its violations, in order, within a transaction.
func (db *DB) RecordRun(rep *report.Report, source string) (models.RunSummary, error) {
	run := models.RunSummary{
		ID:         uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		OK:         rep.OK(),
		Ledgers:    len(rep.Ledgers),
		Violations: len(rep.Violations()),
		Source:     source,
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return run, fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	_, err = tx.Exec(`
		INSERT INTO runs (id, started_at, ok, ledgers, violations, source)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt, run.OK, run.Ledgers, run.Violations, run.Source)
	if err != nil {
		return run, fmt.Errorf("index: insert run: %w", err)
	}

	if run.Violations > 0 {
		stmt, err := tx.Prepare(`INSERT INTO violations (run_id, position, ledger, message) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return run, fmt.Errorf("index: prepare violation insert: %w", err)
		}
		defer stmt.Close()
		pos := 0
		for _, l := range rep.Ledgers {
			for _, msg := range l.Violations {
				if _, err := stmt.Exec(run.ID, pos, l.Path, msg); err != nil {
					return run, fmt.Errorf("index: insert violation: %w", err)
				}
				pos++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return run, fmt.Errorf("index: commit run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = DefaultRunLimit
	}
	rows, err := db.conn.Query(`
		SELECT id, started_at, ok, ledgers, violations, source
		FROM runs ORDER BY seq DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("index: list runs: %w", err)
	}
	defer rows.Close()

	var out []models.RunSummary
	for rows.Next() {
		var r models.RunSummary
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.OK, &r.Ledgers, &r.Violations, &r.Source); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run by id.
func (db *DB) GetRun(id string) (models.RunSummary, error) {
	var r models.RunSummary
	err := db.conn.QueryRow(`
		SELECT id, started_at, ok, ledgers, violations, source FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.StartedAt, &r.OK, &r.Ledgers, &r.Violations, &r.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return r, fmt.Errorf("index: run %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return r, fmt.Errorf("index: get run: %w", err)
	}
	return r, nil
}

// RunViolations returns the violations of a run in report order.
func (db *DB) RunViolations(id string) ([]ViolationRow, error) {
	if _, err := db.GetRun(id); err != nil {
		return nil, err
	}
	rows, err := db.conn.Query(`
		SELECT position, ledger, message FROM violations WHERE run_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("index: run violations: %w", err)
	}
	defer rows.Close()

	var out []ViolationRow
	for rows.Next() {
		var v ViolationRow
		if err := rows.Scan(&v.Position, &v.Ledger, &v.Message); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
