package api

import (
	"github.com/starford/ledgerlint/internal/ledgerservice"
	"github.com/starford/ledgerlint/internal/models"
	"github.com/starford/ledgerlint/internal/report"
)

// LedgerListItem is a lightweight item in a list response (aliased from the domain layer).
type LedgerListItem = ledgerservice.LedgerListItem

// LedgerDetail is the full ledger response type (aliased from the domain layer).
type LedgerDetail = ledgerservice.LedgerDetail

// RunDetail is a recorded run with its violations (aliased from the domain layer).
type RunDetail = ledgerservice.RunDetail

// LedgerListResponse wraps ledger listings.
type LedgerListResponse struct {
	Ledgers []LedgerListItem `json:"ledgers"`
	Total   int              `json:"total"`
}

// ReportResponse is the outcome of an on-demand validation.
type ReportResponse struct {
	OK         bool                  `json:"ok"`
	Violations []string              `json:"violations"`
	Ledgers    []report.LedgerResult `json:"ledgers"`
}

// RunListResponse wraps recorded runs.
type RunListResponse struct {
	Runs []models.RunSummary `json:"runs"`
}

func newReportResponse(rep *report.Report) ReportResponse {
	out := ReportResponse{
		OK:         rep.OK(),
		Violations: rep.Violations(),
		Ledgers:    rep.Ledgers,
	}
	if out.Violations == nil {
		out.Violations = []string{}
	}
	if out.Ledgers == nil {
		out.Ledgers = []report.LedgerResult{}
	}
	return out
}
