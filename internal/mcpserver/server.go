// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes ledger validation tools for agents via stdio transport.
package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/ledgerlint/internal/apperr"
	"github.com/starford/ledgerlint/internal/ledgerservice"
	"github.com/starford/ledgerlint/internal/report"
)

// ContractURI is the resource URI of the ledger format contract.
const ContractURI = "ledgerlint://ledger-format"

// Server wraps the MCP server with ledger tools.
type Server struct {
	mcp *server.MCPServer
	svc *ledgerservice.Service
}

// New creates a new MCP server with all ledger tools registered.
func New(svc *ledgerservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"ledgerlint",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("validate_ledgers",
		mcp.WithDescription("Validate task ledgers and return every violation as JSON. "+
			"An empty violations list means the ledgers pass."),
		mcp.WithString("issues", mcp.Description("Optional comma-separated issue identifiers (empty for all)")),
	), s.validateLedgers)

	s.mcp.AddTool(mcp.NewTool("list_ledgers",
		mcp.WithDescription("List discovered ledgers with per-status task counts and the in-flight task."),
	), s.listLedgers)

	s.mcp.AddTool(mcp.NewTool("read_ledger",
		mcp.WithDescription("Read the ledger of one issue: raw content, parsed tasks, next task and current violations."),
		mcp.WithString("issue", mcp.Required(), mcp.Description("Issue identifier, e.g. 42")),
	), s.readLedger)

	s.mcp.AddTool(mcp.NewTool("get_ledger_contract",
		mcp.WithDescription("Returns the ledger format contract. "+
			"Call this before editing a ledger to keep it valid."),
	), s.getLedgerContract)

	s.mcp.AddResource(
		mcp.NewResource(ContractURI, "Ledger Format Contract",
			mcp.WithResourceDescription("Task ledger format and the rules ledgerlint enforces."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readContractResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func (s *Server) validateLedgers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var issues []string
	if raw, err := req.RequireString("issues"); err == nil {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				issues = append(issues, part)
			}
		}
	}
	rep, err := s.svc.Validate(ctx, ledgerservice.SourceMCP, issues...)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var buf bytes.Buffer
	if err := rep.Write(&buf, report.FormatJSON); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *Server) listLedgers(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	items, err := s.svc.ListLedgers(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(items) == 0 {
		return mcp.NewToolResultText("no ledgers found"), nil
	}
	out, _ := json.MarshalIndent(items, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readLedger(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	issue, err := req.RequireString("issue")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	d, err := s.svc.GetLedger(ctx, issue)
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("no ledger for issue %s", issue)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	out, _ := json.MarshalIndent(d, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getLedgerContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(LedgerFormatContract), nil
}

func (s *Server) readContractResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      ContractURI,
			MIMEType: "text/markdown",
			Text:     LedgerFormatContract,
		},
	}, nil
}
