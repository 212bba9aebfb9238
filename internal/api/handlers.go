package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/ledgerlint/internal/ledgerservice"
)

// Handler holds API route handlers.
type Handler struct {
	svc *ledgerservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *ledgerservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListLedgers handles GET /api/ledgers.
//
// Optional repeated query parameter issue restricts the listing.
func (h *Handler) ListLedgers(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListLedgers(r.Context(), r.URL.Query()["issue"]...)
	if err != nil {
		writeError(w, "list ledgers", err)
		return
	}
	writeJSON(w, http.StatusOK, LedgerListResponse{Ledgers: items, Total: len(items)})
}

// GetLedger handles GET /api/ledgers/{issue}.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	issue := chi.URLParam(r, "issue")
	d, err := h.svc.GetLedger(r.Context(), issue)
	if err != nil {
		writeError(w, "get ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// Report handles GET /api/report. It validates on demand and records the
// run when history is enabled.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Validate(r.Context(), ledgerservice.SourceAPI, r.URL.Query()["issue"]...)
	if err != nil {
		writeError(w, "validate", err)
		return
	}
	writeJSON(w, http.StatusOK, newReportResponse(rep))
}

// ListRuns handles GET /api/runs?limit=N.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		writeError(w, "list runs", err)
		return
	}
	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// GetRun handles GET /api/runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.svc.Run(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get run", err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
