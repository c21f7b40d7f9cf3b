package tracing

import (
	"github.com/sarchlab/ahbsim/datarecording"
)

// TraceTable is the table a RecorderTraceWriter writes to.
const TraceTable = "trace"

// TaskEntry is the row stored for one task.
type TaskEntry struct {
	ID         string
	ParentID   string
	Kind       string
	What       string
	Location   string
	StartCycle uint64
	EndCycle   uint64
	Denies     int
}

// RecorderTraceWriter writes tasks into a data recording, next to the other
// tables of a run.
type RecorderTraceWriter struct {
	recorder datarecording.DataRecorder
}

// NewRecorderTraceWriter creates a writer that stores into recorder.
func NewRecorderTraceWriter(
	recorder datarecording.DataRecorder,
) *RecorderTraceWriter {
	return &RecorderTraceWriter{recorder: recorder}
}

// Init creates the trace table.
func (w *RecorderTraceWriter) Init() {
	w.recorder.CreateTable(TraceTable, TaskEntry{})
}

// Write buffers a task in the recorder.
func (w *RecorderTraceWriter) Write(task Task) {
	w.recorder.InsertData(TraceTable, TaskEntry{
		ID:         task.ID,
		ParentID:   task.ParentID,
		Kind:       task.Kind,
		What:       task.What,
		Location:   task.Where,
		StartCycle: task.StartCycle,
		EndCycle:   task.EndCycle,
		Denies:     countSteps(task, StepDeny),
	})
}

// Flush flushes the recorder.
func (w *RecorderTraceWriter) Flush() {
	w.recorder.Flush()
}
