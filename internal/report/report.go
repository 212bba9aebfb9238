// Package report collects per-ledger violations and renders them.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Output formats.
const (
	FormatText  = "text"
	FormatTable = "table"
	FormatJSON  = "json"
)

// LedgerResult is the outcome of validating one ledger file.
type LedgerResult struct {
	Path       string   `json:"path"`
	Issue      string   `json:"issue"`
	Checksum   string   `json:"checksum,omitempty"`
	Violations []string `json:"violations"`
}

// OK reports whether the ledger has no violations.
func (r LedgerResult) OK() bool { return len(r.Violations) == 0 }

// Report is the outcome of one validation run, ledgers in discovery order.
type Report struct {
	Ledgers []LedgerResult `json:"ledgers"`
}

// Add appends a ledger result.
func (r *Report) Add(res LedgerResult) {
	r.Ledgers = append(r.Ledgers, res)
}

// Violations returns every violation of the run in ledger order.
func (r *Report) Violations() []string {
	var out []string
	for _, l := range r.Ledgers {
		out = append(out, l.Violations...)
	}
	return out
}

// OK is true when no ledger has a violation.
func (r *Report) OK() bool {
	for _, l := range r.Ledgers {
		if !l.OK() {
			return false
		}
	}
	return true
}

// ValidFormat reports whether format is a known output format.
func ValidFormat(format string) bool {
	switch format {
	case FormatText, FormatTable, FormatJSON:
		return true
	}
	return false
}

// Write renders the report to w. Text output is exactly one violation per
// line and nothing when the run is clean.
func (r *Report) Write(w io.Writer, format string) error {
	switch format {
	case FormatText, "":
		return r.writeText(w)
	case FormatTable:
		return r.writeTable(w)
	case FormatJSON:
		return r.writeJSON(w)
	}
	return fmt.Errorf("report: unknown format %q", format)
}

func (r *Report) writeText(w io.Writer) error {
	for _, v := range r.Violations() {
		if _, err := fmt.Fprintln(w, v); err != nil {
			return err
		}
	}
	return nil
}

func (r *Report) writeTable(w io.Writer) error {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Ledger", "#", "Violation"})
	for _, l := range r.Ledgers {
		for i, v := range l.Violations {
			tw.AppendRow(table.Row{l.Path, strconv.Itoa(i + 1), v})
		}
	}
	tw.AppendFooter(table.Row{"", "", fmt.Sprintf("%d ledgers, %d violations", len(r.Ledgers), len(r.Violations()))})
	tw.Render()
	return nil
}

type jsonReport struct {
	OK         bool           `json:"ok"`
	Violations int            `json:"violations"`
	Ledgers    []LedgerResult `json:"ledgers"`
}

func (r *Report) writeJSON(w io.Writer) error {
	out := jsonReport{OK: r.OK(), Violations: len(r.Violations()), Ledgers: make([]LedgerResult, 0, len(r.Ledgers))}
	for _, l := range r.Ledgers {
		if l.Violations == nil {
			l.Violations = []string{}
		}
		out.Ledgers = append(out.Ledgers, l)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
