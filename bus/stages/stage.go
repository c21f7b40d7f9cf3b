// Package stages provides the pipeline stages that sit between masters,
// the interconnect and slaves.
//
// InputStage terminates the traffic of one master. LineBuffer, WriteBuffer
// and Aligner wrap a slave and are clocked nodes on their own.
package stages

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/sim/power"
)

// outputStage is what the slave-side stages have in common.
type outputStage struct {
	name string
	down bus.Slave
	gate power.Gate
}

func newOutputStage(name string, down bus.Slave) outputStage {
	if down == nil {
		panic("stages: " + name + " has no downstream slave")
	}

	return outputStage{
		name: name,
		down: down,
		gate: power.Gate{ID: power.NoNode},
	}
}

// Name returns the name of the stage.
func (s *outputStage) Name() string {
	return s.name
}

// BindNode ties the stage to its node in the clock tree.
func (s *outputStage) BindNode(id power.NodeID) {
	s.gate.ID = id
}

// Downstream returns the wrapped slave.
func (s *outputStage) Downstream() bus.Slave {
	return s.down
}

// Tick does nothing. Output stages react to the wires they are handed.
func (s *outputStage) Tick(*power.Context) {}

// CatchUp does nothing. An idle stage holds no state that evolves.
func (s *outputStage) CatchUp(*power.Context, uint64) {}

func (s *outputStage) settle(ctx *power.Context, idle bool) {
	if s.gate.ID == power.NoNode {
		return
	}

	if idle {
		ctx.SetPowerState(s.gate.ID, power.Gated)
	} else {
		ctx.SetPowerState(s.gate.ID, power.Active)
	}
}

func skippable(idle bool) uint64 {
	if idle {
		return power.SkipForever
	}

	return 0
}

// withMeta re-labels a downstream reply with the upstream transfer.
func withMeta(r bus.SlaveToMasterWires, meta bus.TransferMeta) bus.SlaveToMasterWires {
	r.Meta = meta
	return r
}
