package check

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/ledgerlint/internal/gitinspect"
	"github.com/starford/ledgerlint/internal/ledger"
)

// Commits verifies that every done task citing a commit shipped changes
// besides the ledger at path. Inspector failures are reported as
// violations of their own.
func Commits(ctx context.Context, path string, tasks []any, insp gitinspect.Inspector, logger *slog.Logger) []string {
	var out []string
	for i, item := range tasks {
		task, ok := ledger.AsFields(item)
		if !ok {
			continue
		}
		if status, _ := task.Status(); status != ledger.StatusDone {
			continue
		}
		commit, ok := task.String("commit")
		if !ok || commit == "" {
			continue
		}

		files, err := insp.ChangedFiles(ctx, commit)
		if err != nil {
			out = append(out, fmt.Sprintf("%s: tasks[%d].commit %s could not be inspected: %v", path, i, commit, err))
			continue
		}
		subject, err := insp.Subject(ctx, commit)
		if err != nil {
			out = append(out, fmt.Sprintf("%s: tasks[%d].commit %s subject could not be read: %v", path, i, commit, err))
		}
		logger.Debug("commit inspected",
			slog.String("ledger", path),
			slog.String("commit", commit),
			slog.String("subject", subject),
			slog.Int("files", len(files)))

		if !touchesOtherThan(files, path) {
			out = append(out, fmt.Sprintf("%s: tasks[%d].commit %s must include non-ledger changes", path, i, commit))
		}
	}
	return out
}

// CommitsDoc runs Commits on the task list of a parsed document.
func CommitsDoc(ctx context.Context, path string, doc any, insp gitinspect.Inspector, logger *slog.Logger) []string {
	return Commits(ctx, path, tasksOf(doc), insp, logger)
}

func touchesOtherThan(files []string, ledgerPath string) bool {
	for _, f := range files {
		if f != ledgerPath {
			return true
		}
	}
	return false
}
