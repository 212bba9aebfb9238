package mcpserver

// LedgerFormatContract describes the task ledger format and the rules
// validate_ledgers enforces.
const LedgerFormatContract = `# Task Ledger Contract

One ledger per issue, stored as ` + "`" + `.automation/ledgers/issue-<N>-ledger.<ext>` + "`" + `
(` + "`" + `.yml` + "`" + `, ` + "`" + `.yaml` + "`" + `, ` + "`" + `.json` + "`" + ` or ` + "`" + `.toml` + "`" + `).

## Structure

` + "```" + `yaml
version: 1                 # REQUIRED, must be 1
issue: 42                  # REQUIRED, integer
base: main                 # REQUIRED, non-empty string
branch: agent/issue-42     # REQUIRED, non-empty string
tasks:                     # REQUIRED, non-empty list
  - id: t1                 # REQUIRED, non-empty string
    title: Add parser      # REQUIRED, string
    status: done           # REQUIRED, one of todo, doing, done
    started_at: "2025-01-20T10:00:00Z"   # string or null
    finished_at: "2025-01-20T11:30:00Z"  # string or null
    commit: 1a2b3c4        # string or null
` + "```" + `

## Rules

1. ` + "`" + `finished_at` + "`" + ` stays null until the task is ` + "`" + `done` + "`" + `.
2. A ` + "`" + `todo` + "`" + ` task has no ` + "`" + `started_at` + "`" + `.
3. At most one task is ` + "`" + `doing` + "`" + ` at a time.
4. A ` + "`" + `done` + "`" + ` task that cites a commit must point at a commit that changed
   files other than the ledger itself. Commit the work, then record it.
5. Timestamps are free-form strings; ISO-8601 UTC is recommended.

## Workflow

- Pick the ` + "`" + `doing` + "`" + ` task, or the first ` + "`" + `todo` + "`" + ` when none is in flight.
- Set ` + "`" + `status: doing` + "`" + ` and ` + "`" + `started_at` + "`" + ` before starting.
- After committing the change set ` + "`" + `status: done` + "`" + `, ` + "`" + `finished_at` + "`" + ` and ` + "`" + `commit` + "`" + `.
- Run ` + "`" + `validate_ledgers` + "`" + ` and fix every violation before finishing.
`
