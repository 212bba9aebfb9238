package check

import (
	"fmt"

	"github.com/starford/ledgerlint/internal/ledger"
)

// Lifecycle enforces timestamp consistency per task and the single
// in-flight task rule across the ledger. Non-mapping tasks are skipped;
// Schema reports them.
func Lifecycle(path string, tasks []any) []string {
	var out []string
	doing := 0
	for i, item := range tasks {
		task, ok := ledger.AsFields(item)
		if !ok {
			continue
		}
		status, _ := task.Status()
		if status != ledger.StatusDone && task.Present("finished_at") {
			out = append(out, fmt.Sprintf("tasks[%d].finished_at must be null unless status is done", i))
		}
		if status == ledger.StatusTodo && task.Present("started_at") {
			out = append(out, fmt.Sprintf("tasks[%d].started_at must be null when status is todo", i))
		}
		if status == ledger.StatusDoing {
			doing++
		}
	}
	if doing > 1 {
		out = append(out, fmt.Sprintf("%s: at most one task may have status=doing (found %d)", path, doing))
	}
	return out
}

// LifecycleDoc runs Lifecycle on the task list of a parsed document.
func LifecycleDoc(path string, doc any) []string {
	return Lifecycle(path, tasksOf(doc))
}
