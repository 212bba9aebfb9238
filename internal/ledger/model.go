package ledger

// Ledger is a best-effort typed view of a parsed ledger. It is used for
// summaries and API output only; validation works on the raw document.
type Ledger struct {
	Version int64  `json:"version"`
	Issue   int64  `json:"issue"`
	Base    string `json:"base"`
	Branch  string `json:"branch"`
	Tasks   []Task `json:"tasks"`
}

// Task is one step of a ledger.
type Task struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     Status `json:"status"`
	StartedAt  string `json:"started_at,omitempty"`
	FinishedAt string `json:"finished_at,omitempty"`
	Commit     string `json:"commit,omitempty"`
}

// Summary condenses a ledger for listings.
type Summary struct {
	Issue    int64          `json:"issue"`
	Branch   string         `json:"branch"`
	Total    int            `json:"total"`
	Counts   map[Status]int `json:"counts"`
	InFlight *Task          `json:"in_flight,omitempty"`
}

// Decode builds the typed view of doc. Fields of the wrong type are left
// zero; ok is false only when the root is not a mapping.
func Decode(doc any) (*Ledger, bool) {
	root, ok := AsFields(doc)
	if !ok {
		return nil, false
	}
	l := &Ledger{}
	l.Version, _ = root.Int("version")
	l.Issue, _ = root.Int("issue")
	l.Base, _ = root.String("base")
	l.Branch, _ = root.String("branch")

	items, _ := root.List("tasks")
	for _, item := range items {
		tf, ok := AsFields(item)
		if !ok {
			continue
		}
		var t Task
		t.ID, _ = tf.String("id")
		t.Title, _ = tf.String("title")
		t.Status, _ = tf.Status()
		t.StartedAt, _ = tf.OptionalString("started_at")
		t.FinishedAt, _ = tf.OptionalString("finished_at")
		t.Commit, _ = tf.OptionalString("commit")
		l.Tasks = append(l.Tasks, t)
	}
	return l, true
}

// Summarize counts tasks per status and picks the in-flight task. When
// several tasks are doing, the first one in ledger order is reported.
func (l *Ledger) Summarize() Summary {
	s := Summary{
		Issue:  l.Issue,
		Branch: l.Branch,
		Total:  len(l.Tasks),
		Counts: map[Status]int{StatusTodo: 0, StatusDoing: 0, StatusDone: 0},
	}
	for i := range l.Tasks {
		t := &l.Tasks[i]
		s.Counts[t.Status]++
		if t.Status == StatusDoing && s.InFlight == nil {
			s.InFlight = t
		}
	}
	return s
}

// Next returns the task an agent should work on: the in-flight task if
// any, otherwise the first todo. Nil when everything is done.
func (l *Ledger) Next() *Task {
	for i := range l.Tasks {
		if l.Tasks[i].Status == StatusDoing {
			return &l.Tasks[i]
		}
	}
	for i := range l.Tasks {
		if l.Tasks[i].Status == StatusTodo {
			return &l.Tasks[i]
		}
	}
	return nil
}
