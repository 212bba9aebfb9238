// Package ledgerservice is the read and validate surface shared by the
// CLI, the HTTP API and the MCP server.
package ledgerservice

import (
	"context"
	"log/slog"
	"time"

	"github.com/starford/ledgerlint/internal/apperr"
	"github.com/starford/ledgerlint/internal/index"
	"github.com/starford/ledgerlint/internal/ledger"
	"github.com/starford/ledgerlint/internal/models"
	"github.com/starford/ledgerlint/internal/parser"
	"github.com/starford/ledgerlint/internal/report"
	"github.com/starford/ledgerlint/internal/validator"
)

// Run sources recorded in the history.
const (
	SourceCLI   = "cli"
	SourceWatch = "watch"
	SourceAPI   = "api"
	SourceMCP   = "mcp"
)

// LedgerListItem is a lightweight item in a list response.
type LedgerListItem struct {
	Path      string          `json:"path"`
	Issue     string          `json:"issue"`
	Checksum  string          `json:"checksum"`
	UpdatedAt time.Time       `json:"updated_at"`
	Parsed    bool            `json:"parsed"`
	Summary   *ledger.Summary `json:"summary,omitempty"`
}

// LedgerDetail is the full representation of one ledger.
type LedgerDetail struct {
	LedgerListItem
	Content    string         `json:"content"`
	Ledger     *ledger.Ledger `json:"ledger,omitempty"`
	Next       *ledger.Task   `json:"next,omitempty"`
	Violations []string       `json:"violations"`
}

// RunDetail is a recorded run with its violations.
type RunDetail struct {
	models.RunSummary
	Items []index.ViolationRow `json:"items"`
}

// Service coordinates validation, ledger reads and the optional history.
type Service struct {
	v       *validator.Validator
	history index.History
	logger  *slog.Logger
}

// NewService creates a service. history may be nil, in which case runs are
// neither recorded nor listed.
func NewService(v *validator.Validator, history index.History, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{v: v, history: history, logger: logger}
}

// HistoryEnabled reports whether runs are being recorded.
func (s *Service) HistoryEnabled() bool { return s.history != nil }

// Validate validates the ledgers of issues (all when empty) and records the
// run when history is enabled. A recording failure is logged, not returned.
func (s *Service) Validate(ctx context.Context, source string, issues ...string) (*report.Report, error) {
	rep, err := s.v.Validate(ctx, issues...)
	if err != nil {
		return nil, err
	}
	s.Record(rep, source)
	return rep, nil
}

// Record stores rep in the history when it is enabled.
func (s *Service) Record(rep *report.Report, source string) {
	if s.history == nil {
		return
	}
	run, err := s.history.RecordRun(rep, source)
	if err != nil {
		s.logger.Warn("history: record run failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Debug("history: run recorded", slog.String("id", run.ID), slog.String("source", source))
}

// ListLedgers returns every discovered ledger with its summary. Ledgers
// that do not parse into a mapping are listed with Parsed false.
func (s *Service) ListLedgers(_ context.Context, issues ...string) ([]LedgerListItem, error) {
	metas, err := s.v.Store().List(issues...)
	if err != nil {
		return nil, err
	}
	items := make([]LedgerListItem, 0, len(metas))
	for _, m := range metas {
		data, err := s.v.Store().Read(m.Path)
		if err != nil {
			return nil, err
		}
		item, _ := buildItem(m, data)
		items = append(items, item)
	}
	return items, nil
}

// GetLedger returns the first ledger of issue in file name order, its
// typed view and its current violations.
func (s *Service) GetLedger(ctx context.Context, issue string) (*LedgerDetail, error) {
	metas, err := s.v.Store().List(issue)
	if err != nil {
		return nil, err
	}
	if len(metas) == 0 {
		return nil, apperr.ErrNotFound
	}
	m := metas[0]
	data, err := s.v.Store().Read(m.Path)
	if err != nil {
		return nil, err
	}
	res, err := s.v.ValidateLedger(ctx, m)
	if err != nil {
		return nil, err
	}
	item, l := buildItem(m, data)
	detail := &LedgerDetail{
		LedgerListItem: item,
		Content:        string(data),
		Ledger:         l,
		Violations:     nonNilSlice(res.Violations),
	}
	if l != nil {
		detail.Next = l.Next()
	}
	return detail, nil
}

// Runs lists recent recorded runs, newest first.
func (s *Service) Runs(_ context.Context, limit int) ([]models.RunSummary, error) {
	if s.history == nil {
		return nil, apperr.ErrDisabled
	}
	runs, err := s.history.ListRuns(limit)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(runs), nil
}

// Run returns one recorded run with its violations.
func (s *Service) Run(_ context.Context, id string) (*RunDetail, error) {
	if s.history == nil {
		return nil, apperr.ErrDisabled
	}
	run, err := s.history.GetRun(id)
	if err != nil {
		return nil, err
	}
	items, err := s.history.RunViolations(id)
	if err != nil {
		return nil, err
	}
	return &RunDetail{RunSummary: run, Items: nonNilSlice(items)}, nil
}

func buildItem(m models.LedgerMetadata, data []byte) (LedgerListItem, *ledger.Ledger) {
	item := LedgerListItem{Path: m.Path, Issue: m.Issue, Checksum: m.Checksum, UpdatedAt: m.UpdatedAt}
	doc, err := parser.Parse(m.Name, data)
	if err != nil {
		return item, nil
	}
	l, ok := ledger.Decode(doc)
	if !ok {
		return item, nil
	}
	sum := l.Summarize()
	item.Parsed = true
	item.Summary = &sum
	return item, l
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
