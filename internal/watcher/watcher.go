// Package watcher re-validates ledgers as they change on disk.
package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ledgerlint/internal/index"
	"github.com/starford/ledgerlint/internal/report"
	"github.com/starford/ledgerlint/internal/storage"
	"github.com/starford/ledgerlint/internal/validator"
)

// Event kinds.
const (
	KindValidated = "validated"
	KindRemoved   = "removed"
)

// DefaultDebounce is how long the watcher waits for a burst of file
// events to settle before reconciling.
const DefaultDebounce = 200 * time.Millisecond

// Event describes one watcher-driven change.
type Event struct {
	Kind   string
	Path   string
	Result *report.LedgerResult // nil for KindRemoved
}

// EventCallback is called once per changed or removed ledger.
type EventCallback func(Event)

// Watcher validates ledgers whose checksum differs from the last one seen.
type Watcher struct {
	v        *validator.Validator
	state    index.ChecksumStore
	logger   *slog.Logger
	debounce time.Duration
	cb       EventCallback
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithState sets where last seen checksums are kept. Defaults to memory.
func WithState(s index.ChecksumStore) Option {
	return func(w *Watcher) { w.state = s }
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// New creates a Watcher that reports through cb (may be nil).
func New(v *validator.Validator, cb EventCallback, opts ...Option) *Watcher {
	w := &Watcher{v: v, cb: cb, debounce: DefaultDebounce}
	for _, opt := range opts {
		opt(w)
	}
	if w.state == nil {
		w.state = NewMemoryState()
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	return w
}

// Run reconciles once, then watches the ledger directory until ctx is
// cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	dir := w.v.Store().Dir()
	if err := fw.Add(dir); err != nil {
		return err
	}
	w.logger.Info("watcher: started", slog.String("dir", dir))

	w.Reconcile(ctx)

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(w.debounce)
			timerCh = timer.C
		} else {
			timer.Reset(w.debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			w.logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			w.Reconcile(ctx)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if _, isLedger := storage.IssueFromName(filepath.Base(ev.Name)); !isLedger {
				continue
			}
			w.logger.Debug("watcher: event", slog.String("path", ev.Name), slog.String("op", ev.Op.String()))
			schedule()

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// Reconcile validates every ledger whose checksum changed since it was last
// seen and forgets ledgers that disappeared from disk.
func (w *Watcher) Reconcile(ctx context.Context) {
	known, err := w.state.AllChecksums()
	if err != nil {
		w.logger.Warn("reconcile: all checksums failed", slog.String("error", err.Error()))
		return
	}
	metas, err := w.v.Store().List()
	if err != nil {
		w.logger.Warn("reconcile: list failed", slog.String("error", err.Error()))
		return
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		if known[m.Path] == m.Checksum {
			continue
		}
		res, err := w.v.ValidateLedger(ctx, m)
		if err != nil {
			w.logger.Warn("reconcile: validate failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if err := w.state.SetChecksum(m.Path, m.Checksum); err != nil {
			w.logger.Warn("reconcile: store checksum failed", slog.String("path", m.Path), slog.String("error", err.Error()))
		}
		w.logger.Info("watcher: validated",
			slog.String("path", m.Path),
			slog.Int("violations", len(res.Violations)))
		w.emit(Event{Kind: KindValidated, Path: m.Path, Result: &res})
	}

	for p := range known {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := w.state.DeleteChecksum(p); err != nil {
			w.logger.Warn("reconcile: delete checksum failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		w.logger.Info("watcher: removed", slog.String("path", p))
		w.emit(Event{Kind: KindRemoved, Path: p})
	}
}

func (w *Watcher) emit(ev Event) {
	if w.cb != nil {
		w.cb(ev)
	}
}

// MemoryState is an in-process ChecksumStore used when history is off.
type MemoryState struct {
	mu sync.Mutex
	m  map[string]string
}

// NewMemoryState returns an empty MemoryState.
func NewMemoryState() *MemoryState {
	return &MemoryState{m: make(map[string]string)}
}

func (s *MemoryState) AllChecksums() (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryState) SetChecksum(path, checksum string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[path] = checksum
	return nil
}

func (s *MemoryState) DeleteChecksum(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, path)
	return nil
}
