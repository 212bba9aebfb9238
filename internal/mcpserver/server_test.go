package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/ledgerlint/internal/ledgerservice"
	"github.com/starford/ledgerlint/internal/storage"
	"github.com/starford/ledgerlint/internal/testutil"
	"github.com/starford/ledgerlint/internal/validator"
)

func testServer(t *testing.T) (*Server, storage.Provider) {
	t.Helper()
	_, store := testutil.TestRepo(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	insp := testutil.NewFakeInspector().
		Add("abc1234", "src", storage.DefaultLedgerDir+"/issue-1-ledger.yml", "main.go")
	v := validator.New(store, validator.WithInspector(insp), validator.WithLogger(logger))
	return New(ledgerservice.NewService(v, nil, logger), "test"), store
}

func callTool(t *testing.T, srv *Server, name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	req := mcp.CallToolRequest{}
	req.Method = "tools/call"
	req.Params.Name = name
	req.Params.Arguments = args

	var result *mcp.CallToolResult
	var err error

	switch name {
	case "validate_ledgers":
		result, err = srv.validateLedgers(ctx, req)
	case "list_ledgers":
		result, err = srv.listLedgers(ctx, req)
	case "read_ledger":
		result, err = srv.readLedger(ctx, req)
	case "get_ledger_contract":
		result, err = srv.getLedgerContract(ctx, req)
	default:
		t.Fatalf("unknown tool: %s", name)
	}

	if err != nil {
		t.Fatalf("tool %s error: %v", name, err)
	}
	return result
}

func resultText(r *mcp.CallToolResult) string {
	if len(r.Content) > 0 {
		if tc, ok := r.Content[0].(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func TestValidateLedgers(t *testing.T) {
	srv, store := testServer(t)
	testutil.WriteLedger(t, store, "issue-1-ledger.yml", testutil.ValidLedger)
	path := testutil.WriteLedger(t, store, "issue-2-ledger.yml", "version: 1\nissue: 2\nbase: main\nbranch: b\ntasks: []\n")

	r := callTool(t, srv, "validate_ledgers", map[string]interface{}{})
	var got struct {
		OK      bool `json:"ok"`
		Ledgers []struct {
			Violations []string `json:"violations"`
		} `json:"ledgers"`
	}
	if err := json.Unmarshal([]byte(resultText(r)), &got); err != nil {
		t.Fatalf("decode %q: %v", resultText(r), err)
	}
	if got.OK || len(got.Ledgers) != 2 {
		t.Fatalf("report = %+v", got)
	}
	if v := got.Ledgers[1].Violations; len(v) != 1 || v[0] != path+": tasks must be a non-empty list" {
		t.Errorf("violations = %v", v)
	}

	r = callTool(t, srv, "validate_ledgers", map[string]interface{}{"issues": "1, "})
	if !strings.Contains(resultText(r), `"ok": true`) {
		t.Errorf("filtered result = %q", resultText(r))
	}
}

func TestListLedgers(t *testing.T) {
	srv, store := testServer(t)
	r := callTool(t, srv, "list_ledgers", map[string]interface{}{})
	if resultText(r) != "no ledgers found" {
		t.Errorf("empty list = %q", resultText(r))
	}

	testutil.WriteLedger(t, store, "issue-1-ledger.yml", testutil.ValidLedger)
	r = callTool(t, srv, "list_ledgers", map[string]interface{}{})
	if !strings.Contains(resultText(r), "issue-1-ledger.yml") {
		t.Errorf("list = %q", resultText(r))
	}
}

func TestReadLedger(t *testing.T) {
	srv, store := testServer(t)
	testutil.WriteLedger(t, store, "issue-1-ledger.yml", testutil.ValidLedger)

	r := callTool(t, srv, "read_ledger", map[string]interface{}{"issue": "1"})
	if r.IsError {
		t.Fatalf("unexpected error: %s", resultText(r))
	}
	var d ledgerservice.LedgerDetail
	if err := json.Unmarshal([]byte(resultText(r)), &d); err != nil {
		t.Fatal(err)
	}
	if d.Next == nil || d.Next.ID != "t2" {
		t.Errorf("next = %+v, want t2", d.Next)
	}
}

func TestReadLedgerMissing(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "read_ledger", map[string]interface{}{"issue": "7"})
	if !r.IsError {
		t.Error("expected error for missing ledger")
	}
	r = callTool(t, srv, "read_ledger", map[string]interface{}{})
	if !r.IsError {
		t.Error("expected error for missing issue argument")
	}
}

func TestLedgerContract(t *testing.T) {
	srv, _ := testServer(t)
	r := callTool(t, srv, "get_ledger_contract", nil)
	if resultText(r) != LedgerFormatContract {
		t.Error("contract tool returned unexpected text")
	}
	contents, err := srv.readContractResource(context.Background(), mcp.ReadResourceRequest{})
	if err != nil || len(contents) != 1 {
		t.Fatalf("resource = %v, %v", contents, err)
	}
	if tc, ok := contents[0].(mcp.TextResourceContents); !ok || tc.URI != ContractURI {
		t.Errorf("resource = %+v", contents[0])
	}
}
