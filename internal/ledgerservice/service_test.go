package ledgerservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/starford/ledgerlint/internal/apperr"
	"github.com/starford/ledgerlint/internal/index"
	"github.com/starford/ledgerlint/internal/ledger"
	"github.com/starford/ledgerlint/internal/storage"
	"github.com/starford/ledgerlint/internal/testutil"
	"github.com/starford/ledgerlint/internal/validator"
)

func newService(t *testing.T, history index.History) (*Service, storage.Provider) {
	t.Helper()
	_, store := testutil.TestRepo(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	insp := testutil.NewFakeInspector().
		Add("abc1234", "src", storage.DefaultLedgerDir+"/issue-1-ledger.yml", "main.go")
	v := validator.New(store, validator.WithInspector(insp), validator.WithLogger(logger))
	return NewService(v, history, logger), store
}

func TestListLedgers(t *testing.T) {
	svc, store := newService(t, nil)
	testutil.WriteLedger(t, store, "issue-1-ledger.yml", testutil.ValidLedger)
	testutil.WriteLedger(t, store, "issue-2-ledger.yml", "- not a mapping\n")

	items, err := svc.ListLedgers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("len = %d, want 2", len(items))
	}
	first := items[0]
	if !first.Parsed || first.Summary == nil {
		t.Fatalf("item = %+v", first)
	}
	if first.Summary.Counts[ledger.StatusDone] != 1 || first.Summary.InFlight == nil || first.Summary.InFlight.ID != "t2" {
		t.Errorf("summary = %+v", first.Summary)
	}
	if items[1].Parsed || items[1].Summary != nil {
		t.Errorf("non-mapping ledger = %+v", items[1])
	}
}

func TestGetLedger(t *testing.T) {
	svc, store := newService(t, nil)
	path := testutil.WriteLedger(t, store, "issue-1-ledger.yml", testutil.ValidLedger)

	d, err := svc.GetLedger(context.Background(), "1")
	if err != nil {
		t.Fatal(err)
	}
	if d.Path != path || d.Content != testutil.ValidLedger {
		t.Errorf("detail = %+v", d)
	}
	if len(d.Violations) != 0 || d.Violations == nil {
		t.Errorf("violations = %#v, want empty list", d.Violations)
	}
	if d.Next == nil || d.Next.ID != "t2" {
		t.Errorf("next = %+v, want t2", d.Next)
	}
}

func TestGetLedger_NotFound(t *testing.T) {
	svc, _ := newService(t, nil)
	if _, err := svc.GetLedger(context.Background(), "404"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestValidate_RecordsRun(t *testing.T) {
	db := testutil.TestDB(t)
	svc, store := newService(t, db)
	testutil.WriteLedger(t, store, "issue-1-ledger.yml", testutil.ValidLedger)
	testutil.WriteLedger(t, store, "issue-2-ledger.yml", "version: 1\nissue: 2\nbase: main\nbranch: b\ntasks: []\n")

	rep, err := svc.Validate(context.Background(), SourceAPI)
	if err != nil {
		t.Fatal(err)
	}
	if rep.OK() {
		t.Fatal("expected violations")
	}

	runs, err := svc.Runs(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Source != SourceAPI || runs[0].Violations != 1 {
		t.Fatalf("runs = %+v", runs)
	}
	run, err := svc.Run(context.Background(), runs[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(run.Items) != 1 || run.Items[0].Message != rep.Violations()[0] {
		t.Errorf("run = %+v", run)
	}
}

func TestRuns_Disabled(t *testing.T) {
	svc, _ := newService(t, nil)
	if svc.HistoryEnabled() {
		t.Error("history should be disabled")
	}
	if _, err := svc.Runs(context.Background(), 5); !errors.Is(err, apperr.ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
	if _, err := svc.Run(context.Background(), "x"); !errors.Is(err, apperr.ErrDisabled) {
		t.Errorf("err = %v, want ErrDisabled", err)
	}
}
