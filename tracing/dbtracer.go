package tracing

import (
	"sync"
)

// A TraceWriter stores finished tasks.
type TraceWriter interface {
	Init()
	Write(task Task)
	Flush()
}

// DBTracer is a tracer that can store tasks into a database. DBTracers can
// connect with different backends so that the tasks can be stored in
// different types of files (CSV, SQLite, data recordings).
type DBTracer struct {
	mu      sync.Mutex
	backend TraceWriter
	filter  TaskFilter

	tracingTasks map[string]Task
}

// NewDBTracer creates a tracer that writes the tasks accepted by filter to
// backend. The backend is initialized here.
func NewDBTracer(backend TraceWriter, filter TaskFilter) *DBTracer {
	backend.Init()

	return &DBTracer{
		backend:      backend,
		filter:       filter,
		tracingTasks: make(map[string]Task),
	}
}

// StartTask marks the start of a task.
func (t *DBTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.tracingTasks[task.ID] = task
}

// StepTask appends the step to the task.
func (t *DBTracer) StepTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	original, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	original.Steps = append(original.Steps, task.Steps...)
	t.tracingTasks[task.ID] = original
}

// EndTask writes the task to the backend.
func (t *DBTracer) EndTask(task Task) {
	t.mu.Lock()
	defer t.mu.Unlock()

	original, ok := t.tracingTasks[task.ID]
	if !ok {
		return
	}

	original.EndCycle = task.EndCycle
	delete(t.tracingTasks, task.ID)

	t.backend.Write(original)
}

// Terminate flushes the backend. Tasks that have not ended are dropped.
func (t *DBTracer) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.tracingTasks = make(map[string]Task)
	t.backend.Flush()
}

func countSteps(task Task, what string) int {
	n := 0
	for _, s := range task.Steps {
		if s.What == what {
			n++
		}
	}

	return n
}
