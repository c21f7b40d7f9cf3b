package tracing

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// CSVTraceWriter is a task tracer that can store the tasks into a CSV file.
type CSVTraceWriter struct {
	path string
	file *os.File
	w    *csv.Writer

	tasks      []Task
	bufferSize int
}

// NewCSVTraceWriter creates a writer for path.csv.
func NewCSVTraceWriter(path string) *CSVTraceWriter {
	return &CSVTraceWriter{
		path:       path,
		bufferSize: 1000,
	}
}

// Init creates the tracing csv file. It panics if the file already exists.
func (t *CSVTraceWriter) Init() {
	if t.path == "" {
		t.path = "ahbsim_trace_" + xid.New().String()
	}

	filename := t.path + ".csv"
	if _, err := os.Stat(filename); err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	file, err := os.Create(filename)
	if err != nil {
		panic(err)
	}

	t.file = file
	t.w = csv.NewWriter(file)
	t.mustWrite([]string{
		"ID", "ParentID", "Kind", "What", "Where",
		"StartCycle", "EndCycle", "Denies",
	})

	atexit.Register(func() { t.Close() })
}

// Write writes a task to the CSV file.
func (t *CSVTraceWriter) Write(task Task) {
	t.tasks = append(t.tasks, task)
	if len(t.tasks) >= t.bufferSize {
		t.Flush()
	}
}

// Flush flushes the tasks to the CSV file.
func (t *CSVTraceWriter) Flush() {
	if t.w == nil {
		return
	}

	for _, task := range t.tasks {
		t.mustWrite([]string{
			task.ID,
			task.ParentID,
			task.Kind,
			task.What,
			task.Where,
			strconv.FormatUint(task.StartCycle, 10),
			strconv.FormatUint(task.EndCycle, 10),
			strconv.Itoa(countSteps(task, StepDeny)),
		})
	}

	t.tasks = nil

	t.w.Flush()
	if err := t.w.Error(); err != nil {
		panic(err)
	}
}

// Close flushes and closes the file.
func (t *CSVTraceWriter) Close() {
	if t.file == nil {
		return
	}

	t.Flush()

	if err := t.file.Close(); err != nil {
		panic(err)
	}

	t.file = nil
	t.w = nil
}

func (t *CSVTraceWriter) mustWrite(record []string) {
	if err := t.w.Write(record); err != nil {
		panic(err)
	}
}
