// Package internal wires configuration, logging and the ledgerlint
// components into the commands exposed by cmd/app.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jedib0t/go-pretty/v6/table"
	"golang.org/x/sync/errgroup"

	"github.com/starford/ledgerlint/internal/api"
	"github.com/starford/ledgerlint/internal/apperr"
	"github.com/starford/ledgerlint/internal/check"
	"github.com/starford/ledgerlint/internal/gitinspect"
	"github.com/starford/ledgerlint/internal/index"
	"github.com/starford/ledgerlint/internal/ledger"
	"github.com/starford/ledgerlint/internal/ledgerservice"
	"github.com/starford/ledgerlint/internal/mcpserver"
	"github.com/starford/ledgerlint/internal/report"
	"github.com/starford/ledgerlint/internal/sse"
	"github.com/starford/ledgerlint/internal/storage"
	"github.com/starford/ledgerlint/internal/validator"
	"github.com/starford/ledgerlint/internal/watcher"
)

// ErrViolations is returned by Validate when at least one ledger failed a
// check. The report has already been written when it is returned.
var ErrViolations = apperr.ErrViolations

// runtime is the set of components every command builds from Config.
type runtime struct {
	app    *application
	cfg    *Config
	logger *slog.Logger
	store  *storage.FS
	v      *validator.Validator
	db     *index.DB
	svc    *ledgerservice.Service
}

func setup(opts []Option) (*runtime, error) {
	app := &application{stdout: os.Stdout, stderr: os.Stderr, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := app.config

	logger := newLogger(cfg.App, app.stderr)
	slog.SetDefault(logger)

	store, err := storage.NewFS(cfg.Repo.Root, cfg.Repo.LedgerDir)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	insp := gitinspect.NewGit(store.Root(),
		gitinspect.WithBinary(cfg.Git.Binary),
		gitinspect.WithTimeout(cfg.Git.Timeout))
	vopts := []validator.Option{validator.WithInspector(insp), validator.WithLogger(logger)}
	if cfg.Schema.Path != "" {
		ext, err := check.LoadExternalSchema(resolve(store.Root(), cfg.Schema.Path))
		if err != nil {
			return nil, fmt.Errorf("init schema: %w", err)
		}
		vopts = append(vopts, validator.WithExternalSchema(ext))
	}

	rt := &runtime{
		app:    app,
		cfg:    cfg,
		logger: logger,
		store:  store,
		v:      validator.New(store, vopts...),
	}

	// history stays a nil interface when disabled
	var history index.History
	if cfg.History.Enabled {
		path := resolve(store.Root(), cfg.History.Path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		db, err := index.Open(path)
		if err != nil {
			return nil, fmt.Errorf("init history: %w", err)
		}
		rt.db = db
		history = db
	}
	rt.svc = ledgerservice.NewService(rt.v, history, logger)

	logger.Info("Configuration loaded",
		slog.String("repo_root", store.Root()),
		slog.String("ledger_dir", store.Dir()),
		slog.String("git_binary", cfg.Git.Binary),
		slog.Bool("history", cfg.History.Enabled),
		slog.String("log_level", cfg.App.LogLevel.String()))
	return rt, nil
}

func (rt *runtime) close() {
	if rt.db != nil {
		if err := rt.db.Close(); err != nil {
			rt.logger.Warn("close history", slog.String("error", err.Error()))
		}
	}
}

func newLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatText {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// Validate checks the selected ledgers and writes the report to stdout.
// It returns ErrViolations when the report is not clean.
func Validate(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.close()

	rep, err := rt.svc.Validate(ctx, ledgerservice.SourceCLI, rt.app.issues...)
	if err != nil {
		return err
	}
	if err := rep.Write(rt.app.stdout, rt.cfg.Output.Format); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if !rep.OK() {
		return ErrViolations
	}
	return nil
}

// List prints the discovered ledgers with their task counts.
func List(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.close()

	items, err := rt.svc.ListLedgers(ctx, rt.app.issues...)
	if err != nil {
		return err
	}
	if rt.cfg.Output.Format == report.FormatJSON {
		return writeIndentedJSON(rt.app.stdout, items)
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(rt.app.stdout)
	tw.AppendHeader(table.Row{"Issue", "Ledger", "Branch", "Todo", "Doing", "Done", "In flight"})
	for _, it := range items {
		if it.Summary == nil {
			tw.AppendRow(table.Row{it.Issue, it.Path, "(unparsed)", "", "", "", ""})
			continue
		}
		s := it.Summary
		inFlight := ""
		if s.InFlight != nil {
			inFlight = s.InFlight.ID
		}
		tw.AppendRow(table.Row{it.Issue, it.Path, s.Branch,
			s.Counts[ledger.StatusTodo], s.Counts[ledger.StatusDoing], s.Counts[ledger.StatusDone], inFlight})
	}
	tw.Render()
	return nil
}

// History prints recent recorded runs, or the violations of one run when a
// run id is given.
func History(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.close()

	if !rt.svc.HistoryEnabled() {
		return fmt.Errorf("history: %w (set history.enabled or pass --record)", apperr.ErrDisabled)
	}

	if rt.app.runID != "" {
		run, err := rt.svc.Run(ctx, rt.app.runID)
		if err != nil {
			return err
		}
		if rt.cfg.Output.Format == report.FormatJSON {
			return writeIndentedJSON(rt.app.stdout, run)
		}
		tw := table.NewWriter()
		tw.SetOutputMirror(rt.app.stdout)
		tw.AppendHeader(table.Row{"#", "Ledger", "Violation"})
		for _, v := range run.Items {
			tw.AppendRow(table.Row{v.Position + 1, v.Ledger, v.Message})
		}
		tw.Render()
		return nil
	}

	runs, err := rt.svc.Runs(ctx, rt.app.limit)
	if err != nil {
		return err
	}
	if rt.cfg.Output.Format == report.FormatJSON {
		return writeIndentedJSON(rt.app.stdout, runs)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(rt.app.stdout)
	tw.AppendHeader(table.Row{"ID", "Started", "Source", "Ledgers", "Violations", "OK"})
	for _, r := range runs {
		tw.AppendRow(table.Row{r.ID, r.StartedAt.Local().Format(time.DateTime), r.Source, r.Ledgers, r.Violations, r.OK})
	}
	tw.Render()
	return nil
}

// Watch re-validates ledgers as they change until interrupted, printing
// the violations of every changed ledger.
func Watch(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.close()

	w := rt.newWatcher(func(ev watcher.Event) {
		if ev.Kind != watcher.KindValidated {
			return
		}
		rep := &report.Report{Ledgers: []report.LedgerResult{*ev.Result}}
		if err := rep.Write(rt.app.stdout, rt.cfg.Output.Format); err != nil {
			rt.logger.Warn("write report", slog.String("error", err.Error()))
		}
	})

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gCtx) })
	g.Go(func() error { return waitForSignal(gCtx, rt.logger) })
	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		return err
	}
	return nil
}

// Serve runs the HTTP API with live ledger events until interrupted.
func Serve(ctx context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg := rt.cfg
	logger := rt.logger

	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	apiRouter := api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := os.Stat(rt.store.Dir()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"ledger directory unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	w := rt.newWatcher(func(ev watcher.Event) {
		switch ev.Kind {
		case watcher.KindValidated:
			broker.PublishValidated(ev.Path, ev.Result.Violations)
		case watcher.KindRemoved:
			broker.PublishRemoved(ev.Path)
		}
	})

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error { return w.Run(gCtx) })

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		_ = waitForSignal(gCtx, logger)
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP runs the MCP server on stdin/stdout.
func ServeMCP(_ context.Context, opts ...Option) error {
	rt, err := setup(opts)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.logger.Info("MCP server starting", slog.String("version", rt.app.version))
	return mcpserver.New(rt.svc, rt.app.version).ServeStdio()
}

// newWatcher builds a watcher whose validations are also recorded when
// history is enabled. Checksums persist in the history database so a
// restart only re-validates ledgers that changed meanwhile.
func (rt *runtime) newWatcher(cb watcher.EventCallback) *watcher.Watcher {
	opts := []watcher.Option{watcher.WithLogger(rt.logger)}
	if rt.db != nil {
		opts = append(opts, watcher.WithState(rt.db))
	}
	return watcher.New(rt.v, func(ev watcher.Event) {
		if ev.Kind == watcher.KindValidated {
			rt.svc.Record(&report.Report{Ledgers: []report.LedgerResult{*ev.Result}}, ledgerservice.SourceWatch)
		}
		cb(ev)
	}, opts...)
}

// errShutdown ends the errgroup once a signal or cancellation arrives.
var errShutdown = errors.New("shutdown")

// waitForSignal blocks until SIGINT/SIGTERM or ctx is done and then returns
// errShutdown so sibling goroutines are cancelled.
func waitForSignal(ctx context.Context, logger *slog.Logger) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown")
	}
	return errShutdown
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
