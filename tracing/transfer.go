package tracing

import (
	"fmt"

	"github.com/rs/xid"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/stages"
	"github.com/sarchlab/ahbsim/sim/hooking"
)

// Task kinds and steps reported by a TransferTracker.
const (
	KindRead  = "read"
	KindWrite = "write"

	StepDeny    = "deny"
	StepGranted = "granted"
	StepError   = "error"
)

type stageTasks struct {
	waiting string
	active  []string
}

// A TransferTracker watches input stages and reports every bus transfer as a
// task. A task starts when the master first presents its address phase. It
// receives a deny step for every cycle the master is held back, a granted
// step when the address phase is accepted, and ends with the data phase.
type TransferTracker struct {
	*hooking.HookableBase

	name   string
	stages map[string]*stageTasks
}

// NewTransferTracker creates a tracker. Tracers attach to it with
// CollectTrace.
func NewTransferTracker(name string) *TransferTracker {
	return &TransferTracker{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		stages:       make(map[string]*stageTasks),
	}
}

// Name returns the name of the tracker.
func (t *TransferTracker) Name() string {
	return t.name
}

// Watch starts tracking the transfers of the given input stages.
func (t *TransferTracker) Watch(domains ...hooking.Hookable) {
	for _, d := range domains {
		d.AcceptHook(t)
	}
}

// Func converts a transfer hook into task events.
func (t *TransferTracker) Func(ctx hooking.HookCtx) {
	ev, ok := ctx.Item.(stages.TransferEvent)
	if !ok {
		return
	}

	st := t.stages[ev.Stage]
	if st == nil {
		st = &stageTasks{}
		t.stages[ev.Stage] = st
	}

	switch ctx.Pos {
	case stages.HookPosDeny:
		id := t.waitingTask(st, ev)
		AddTaskStep(id, t, ev.Cycle, StepDeny)
	case stages.HookPosTransferStart:
		id := t.waitingTask(st, ev)
		st.waiting = ""
		st.active = append(st.active, id)
		AddTaskStep(id, t, ev.Cycle, StepGranted)
	case stages.HookPosTransferEnd:
		if len(st.active) == 0 {
			return
		}

		id := st.active[0]
		st.active = st.active[1:]

		if ev.Reply.Resp == bus.Error {
			AddTaskStep(id, t, ev.Cycle, StepError)
		}

		EndTask(id, t, ev.Cycle)
	}
}

func (t *TransferTracker) waitingTask(
	st *stageTasks,
	ev stages.TransferEvent,
) string {
	if st.waiting != "" {
		return st.waiting
	}

	kind := KindRead
	if ev.Meta.IsWrite() {
		kind = KindWrite
	}

	st.waiting = xid.New().String()
	StartTaskWithSpecificLocation(
		st.waiting,
		"",
		t,
		kind,
		fmt.Sprintf("%s@%s", ev.Meta.Size, ev.Meta.Addr),
		ev.Stage,
		ev.Cycle,
		ev.Meta,
	)

	return st.waiting
}

var _ hooking.Hook = (*TransferTracker)(nil)
