package power

import (
	"github.com/sarchlab/ahbsim/datarecording"
	"github.com/sarchlab/ahbsim/sim/hooking"
)

const (
	powerChangeTable = "power_changes"
	skipWindowTable  = "skip_windows"
)

type powerChangeRow struct {
	Cycle     uint64
	Node      int
	Name      string
	FromState string
	ToState   string
}

type skipWindowRow struct {
	Start  uint64
	Cycles uint64
	Node   int
	Name   string
}

// RecordingHook stores power changes and skip windows into a data recorder.
type RecordingHook struct {
	recorder datarecording.DataRecorder
}

// NewRecordingHook creates the tables it writes to and returns the hook.
func NewRecordingHook(recorder datarecording.DataRecorder) *RecordingHook {
	recorder.CreateTable(powerChangeTable, powerChangeRow{})
	recorder.CreateTable(skipWindowTable, skipWindowRow{})

	return &RecordingHook{recorder: recorder}
}

// Func records the hook item.
func (h *RecordingHook) Func(ctx hooking.HookCtx) {
	switch item := ctx.Item.(type) {
	case PowerChange:
		h.recorder.InsertData(powerChangeTable, powerChangeRow{
			Cycle:     item.Cycle,
			Node:      int(item.Node),
			Name:      item.Name,
			FromState: item.From.String(),
			ToState:   item.To.String(),
		})
	case SkipWindow:
		h.recorder.InsertData(skipWindowTable, skipWindowRow{
			Start:  item.Start,
			Cycles: item.Cycles,
			Node:   int(item.Node),
			Name:   item.Name,
		})
	}
}
