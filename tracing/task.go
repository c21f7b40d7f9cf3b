package tracing

// A TaskStep represents a milestone in the processing of task
type TaskStep struct {
	Cycle uint64 `json:"cycle"`
	What  string `json:"what"`
}

// A Task is a piece of work observed at one place in the model, such as a bus
// transfer seen by the input stage of its master.
type Task struct {
	ID         string     `json:"id"`
	ParentID   string     `json:"parent_id"`
	Kind       string     `json:"kind"`
	What       string     `json:"what"`
	Where      string     `json:"where"`
	StartCycle uint64     `json:"start_cycle"`
	EndCycle   uint64     `json:"end_cycle"`
	Steps      []TaskStep `json:"steps"`
	Detail     any        `json:"-"`
}

// Cycles returns the number of cycles from the start to the end of the task.
func (t Task) Cycles() uint64 {
	return t.EndCycle - t.StartCycle
}

// TaskFilter is a function that can filter interesting tasks. If this function
// returns true, the task is considered useful.
type TaskFilter func(t Task) bool

// AllTasks is a TaskFilter that keeps every task.
func AllTasks(Task) bool {
	return true
}

// KindIs returns a TaskFilter that keeps tasks of one kind.
func KindIs(kind string) TaskFilter {
	return func(t Task) bool {
		return t.Kind == kind
	}
}
