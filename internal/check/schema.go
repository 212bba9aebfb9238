// Package check implements the ledger rules: document schema, task
// lifecycle and commit integrity. Every checker returns all violations it
// finds, in document order, and never stops at the first one.
package check

import (
	"fmt"

	"github.com/starford/ledgerlint/internal/ledger"
)

// Schema verifies the top-level shape and per-task field types of doc.
// A non-mapping root yields a single violation and nothing else.
func Schema(path string, doc any) []string {
	root, ok := ledger.AsFields(doc)
	if !ok {
		return []string{path + ": top-level document must be a mapping"}
	}

	var out []string
	if v, ok := root.Int("version"); !ok || v != ledger.SchemaVersion {
		out = append(out, path+": version must be 1")
	}
	if _, ok := root.Int("issue"); !ok {
		out = append(out, path+": issue must be an integer")
	}
	if s, ok := root.String("base"); !ok || s == "" {
		out = append(out, path+": base must be a non-empty string")
	}
	if s, ok := root.String("branch"); !ok || s == "" {
		out = append(out, path+": branch must be a non-empty string")
	}
	tasks, ok := root.List("tasks")
	if !ok || len(tasks) == 0 {
		out = append(out, path+": tasks must be a non-empty list")
		return out
	}
	for i, item := range tasks {
		out = append(out, taskSchema(i, item)...)
	}
	return out
}

func taskSchema(i int, item any) []string {
	prefix := fmt.Sprintf("tasks[%d]", i)
	task, ok := ledger.AsFields(item)
	if !ok {
		return []string{prefix + " must be a mapping"}
	}

	var out []string
	if s, ok := task.String("id"); !ok || s == "" {
		out = append(out, prefix+".id must be a non-empty string")
	}
	if _, ok := task.String("title"); !ok {
		out = append(out, prefix+".title must be a string")
	}
	if st, ok := task.Status(); !ok || !st.Valid() {
		out = append(out, prefix+".status must be one of todo, doing, done")
	}
	for _, key := range []string{"started_at", "finished_at", "commit"} {
		if _, ok := task.OptionalString(key); !ok {
			out = append(out, prefix+"."+key+" must be a string or null")
		}
	}
	return out
}

// tasksOf returns the task list of doc, or nil when the document does not
// have one. Later checkers run on whatever tasks exist.
func tasksOf(doc any) []any {
	root, ok := ledger.AsFields(doc)
	if !ok {
		return nil
	}
	tasks, _ := root.List("tasks")
	return tasks
}
