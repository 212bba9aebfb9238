// Package validator runs every ledger check over the ledgers of a
// repository and assembles the report.
package validator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/ledgerlint/internal/check"
	"github.com/starford/ledgerlint/internal/gitinspect"
	"github.com/starford/ledgerlint/internal/models"
	"github.com/starford/ledgerlint/internal/parser"
	"github.com/starford/ledgerlint/internal/report"
	"github.com/starford/ledgerlint/internal/storage"
)

// Validator checks ledgers. It keeps no state between runs and is safe to
// share between goroutines.
type Validator struct {
	store  storage.Provider
	insp   gitinspect.Inspector
	schema *check.ExternalSchema
	logger *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithInspector sets the commit inspector. The default runs git in the
// store's repository root.
func WithInspector(insp gitinspect.Inspector) Option {
	return func(v *Validator) { v.insp = insp }
}

// WithExternalSchema adds a JSON Schema every ledger must also satisfy.
func WithExternalSchema(s *check.ExternalSchema) Option {
	return func(v *Validator) { v.schema = s }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// New creates a Validator over store.
func New(store storage.Provider, opts ...Option) *Validator {
	v := &Validator{store: store}
	for _, opt := range opts {
		opt(v)
	}
	if v.insp == nil {
		v.insp = gitinspect.NewGit(store.Root())
	}
	if v.logger == nil {
		v.logger = slog.Default()
	}
	return v
}

// Store returns the ledger provider the validator reads from.
func (v *Validator) Store() storage.Provider { return v.store }

// Validate checks every ledger matching issues (all ledgers when none are
// given). Ledgers are validated one at a time in file name order. Only
// infrastructure failures are returned as errors; rule failures end up in
// the report.
func (v *Validator) Validate(ctx context.Context, issues ...string) (*report.Report, error) {
	ledgers, err := v.store.List(issues...)
	if err != nil {
		return nil, err
	}
	if len(ledgers) == 0 && len(issues) > 0 {
		v.logger.Warn("no ledger matches issue filter", slog.Any("issues", issues))
	}

	rep := &report.Report{}
	for _, meta := range ledgers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := v.ValidateLedger(ctx, meta)
		if err != nil {
			return nil, err
		}
		rep.Add(res)
	}
	v.logger.Info("validation finished",
		slog.Int("ledgers", len(rep.Ledgers)),
		slog.Int("violations", len(rep.Violations())))
	return rep, nil
}

// ValidateLedger checks a single ledger: schema first, then lifecycle,
// then commit integrity. A document that cannot be parsed yields exactly
// one violation.
func (v *Validator) ValidateLedger(ctx context.Context, meta models.LedgerMetadata) (report.LedgerResult, error) {
	res := report.LedgerResult{Path: meta.Path, Issue: meta.Issue, Checksum: meta.Checksum}

	data, err := v.store.Read(meta.Path)
	if err != nil {
		return res, err
	}
	doc, err := parser.Parse(meta.Name, data)
	if err != nil {
		v.logger.Debug("ledger parse failed", slog.String("path", meta.Path), slog.String("error", err.Error()))
		res.Violations = []string{fmt.Sprintf("%s: could not be parsed", meta.Path)}
		return res, nil
	}

	res.Violations = append(res.Violations, check.Schema(meta.Path, doc)...)
	if v.schema != nil && isMapping(doc) {
		res.Violations = append(res.Violations, v.schema.Check(meta.Path, doc)...)
	}
	res.Violations = append(res.Violations, check.LifecycleDoc(meta.Path, doc)...)
	res.Violations = append(res.Violations, check.CommitsDoc(ctx, meta.Path, doc, v.insp, v.logger)...)

	v.logger.Debug("ledger validated",
		slog.String("path", meta.Path),
		slog.Int("violations", len(res.Violations)))
	return res, nil
}

func isMapping(doc any) bool {
	_, ok := doc.(map[string]any)
	return ok
}
