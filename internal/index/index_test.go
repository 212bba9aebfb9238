package index

import (
	"errors"
	"os"
	"testing"

	"github.com/starford/ledgerlint/internal/apperr"
	"github.com/starford/ledgerlint/internal/report"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "ledgerlint-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleReport() *report.Report {
	rep := &report.Report{}
	rep.Add(report.LedgerResult{Path: "l/issue-1-ledger.yml", Issue: "1", Violations: []string{"first", "second"}})
	rep.Add(report.LedgerResult{Path: "l/issue-2-ledger.yml", Issue: "2"})
	rep.Add(report.LedgerResult{Path: "l/issue-3-ledger.yml", Issue: "3", Violations: []string{"third"}})
	return rep
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	for _, table := range []string{"runs", "violations", "ledger_checksums"} {
		var count int
		if err := db.conn.QueryRow(`SELECT count(*) FROM ` + table).Scan(&count); err != nil {
			t.Fatalf("%s table missing: %v", table, err)
		}
	}
}

func TestRecordRunAndViolations(t *testing.T) {
	db := testDB(t)
	run, err := db.RecordRun(sampleReport(), "cli")
	if err != nil {
		t.Fatalf("RecordRun: %v", err)
	}
	if run.ID == "" || run.OK || run.Ledgers != 3 || run.Violations != 3 {
		t.Errorf("run = %+v", run)
	}

	got, err := db.GetRun(run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Source != "cli" || got.Violations != 3 || got.OK {
		t.Errorf("stored run = %+v", got)
	}

	vs, err := db.RunViolations(run.ID)
	if err != nil {
		t.Fatalf("RunViolations: %v", err)
	}
	want := []string{"first", "second", "third"}
	if len(vs) != len(want) {
		t.Fatalf("violations = %+v", vs)
	}
	for i, v := range vs {
		if v.Message != want[i] || v.Position != i {
			t.Errorf("violations[%d] = %+v, want %q", i, v, want[i])
		}
	}
	if vs[2].Ledger != "l/issue-3-ledger.yml" {
		t.Errorf("ledger = %q, want %q", vs[2].Ledger, "l/issue-3-ledger.yml")
	}
}

func TestRecordRun_Clean(t *testing.T) {
	db := testDB(t)
	run, err := db.RecordRun(&report.Report{}, "watch")
	if err != nil {
		t.Fatal(err)
	}
	if !run.OK {
		t.Error("empty report should record as ok")
	}
	vs, err := db.RunViolations(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 0 {
		t.Errorf("violations = %+v, want none", vs)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	db := testDB(t)
	var ids []string
	for i := 0; i < 3; i++ {
		run, err := db.RecordRun(&report.Report{}, "cli")
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, run.ID)
	}
	runs, err := db.ListRuns(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("len = %d, want 2", len(runs))
	}
	if runs[0].ID != ids[2] || runs[1].ID != ids[1] {
		t.Errorf("order = %s, %s", runs[0].ID, runs[1].ID)
	}
	if runs[0].StartedAt.IsZero() {
		t.Error("started_at not scanned")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := testDB(t)
	if _, err := db.GetRun("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := db.RunViolations("missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestChecksums(t *testing.T) {
	db := testDB(t)
	if err := db.SetChecksum("a.yml", "abc"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetChecksum("a.yml", "def"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetChecksum("b.yml", "123"); err != nil {
		t.Fatal(err)
	}
	cs, _ := db.GetChecksum("a.yml")
	if cs != "def" {
		t.Errorf("checksum = %q, want %q", cs, "def")
	}
	if err := db.DeleteChecksum("b.yml"); err != nil {
		t.Fatal(err)
	}
	all, err := db.AllChecksums()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all["a.yml"] != "def" {
		t.Errorf("all = %v", all)
	}
	if cs, _ := db.GetChecksum("missing"); cs != "" {
		t.Errorf("missing checksum = %q, want empty", cs)
	}
}
