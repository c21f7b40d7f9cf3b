package tracing

import (
	"sort"
	"sync"
)

type cycleSpan struct {
	start, end uint64
}

// BusyTimeTracer counts the cycles in which at least one matching task is in
// flight. Overlapping tasks count once.
type BusyTimeTracer struct {
	filter TaskFilter

	lock     sync.Mutex
	inflight map[string]uint64
	spans    []cycleSpan
}

// NewBusyTimeTracer creates a new BusyTimeTracer
func NewBusyTimeTracer(filter TaskFilter) *BusyTimeTracer {
	return &BusyTimeTracer{
		filter:   filter,
		inflight: make(map[string]uint64),
	}
}

// StartTask records the start cycle of the task.
func (t *BusyTimeTracer) StartTask(task Task) {
	if !t.filter(task) {
		return
	}

	t.lock.Lock()
	defer t.lock.Unlock()

	t.inflight[task.ID] = task.StartCycle
}

// StepTask does nothing
func (t *BusyTimeTracer) StepTask(_ Task) {}

// EndTask closes the span of the task.
func (t *BusyTimeTracer) EndTask(task Task) {
	t.lock.Lock()
	defer t.lock.Unlock()

	start, ok := t.inflight[task.ID]
	if !ok {
		return
	}

	delete(t.inflight, task.ID)
	t.spans = append(t.spans, cycleSpan{start: start, end: task.EndCycle})
}

// TerminateAllTasks ends every task still in flight at the given cycle.
func (t *BusyTimeTracer) TerminateAllTasks(cycle uint64) {
	t.lock.Lock()
	defer t.lock.Unlock()

	for id, start := range t.inflight {
		t.spans = append(t.spans, cycleSpan{start: start, end: cycle})
		delete(t.inflight, id)
	}
}

// BusyTime returns the number of cycles covered by the finished tasks.
func (t *BusyTimeTracer) BusyTime() uint64 {
	t.lock.Lock()
	defer t.lock.Unlock()

	spans := append([]cycleSpan(nil), t.spans...)
	sort.Slice(spans, func(i, j int) bool {
		return spans[i].start < spans[j].start
	})

	var busy uint64
	var cur cycleSpan
	open := false

	for _, s := range spans {
		switch {
		case !open:
			cur, open = s, true
		case s.start <= cur.end:
			cur.end = max(cur.end, s.end)
		default:
			busy += cur.end - cur.start
			cur = s
		}
	}

	if open {
		busy += cur.end - cur.start
	}

	return busy
}
