package countdown

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/slavedriver"
	"github.com/sarchlab/ahbsim/sim/power"
)

// Builder can build timers.
type Builder struct {
	base       bus.Address
	node       power.NodeID
	waitStates int
}

// MakeBuilder returns a builder for a zero wait-state timer at address 0.
func MakeBuilder() Builder {
	return Builder{node: power.NoNode}
}

// WithBase sets the address of the register block.
func (b Builder) WithBase(base bus.Address) Builder {
	b.base = base
	return b
}

// WithNodeID sets the clock-tree node of the timer.
func (b Builder) WithNodeID(id power.NodeID) Builder {
	b.node = id
	return b
}

// WithWaitStates sets the wait-states of a register access.
func (b Builder) WithWaitStates(n int) Builder {
	b.waitStates = n
	return b
}

// Build creates a timer with the given name.
func (b Builder) Build(name string) *Timer {
	t := &Timer{
		name: name,
		node: b.node,
		base: b.base,
	}

	t.driver = slavedriver.NewDriver(name, registers{t: t}, slavedriver.Config{
		NativeSize: bus.SizeWord,
		WaitStates: b.waitStates,
		Writable:   true,
	})
	t.driver.BindNode(b.node)

	return t
}
