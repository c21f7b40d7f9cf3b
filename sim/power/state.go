// Package power implements the clock tree of a simulated SoC: a flat table of
// per-node power states and the scheduler that runs every node through a
// tick/tock cycle, skipping gated nodes while they have nothing to do.
package power

import "math"

// NodeID identifies a node in the clock tree. SoCs enumerate their node IDs
// as constants and register them in order.
type NodeID int

// NoNode marks a component that is not registered in a table.
const NoNode NodeID = -1

// State is the power state of a node.
type State int

// The power states.
const (
	Active State = iota
	Gated
)

func (s State) String() string {
	switch s {
	case Active:
		return "Active"
	case Gated:
		return "Gated"
	default:
		return "Unknown"
	}
}

// Phase is the half of the cycle being evaluated.
type Phase int

// The evaluation phases. Between events the context is idle.
const (
	PhaseIdle Phase = iota
	PhaseTick
	PhaseTock
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseTick:
		return "Tick"
	case PhaseTock:
		return "Tock"
	default:
		return "Unknown"
	}
}

// SkipForever is returned by SkippableCycles when a node can sleep until it
// is woken.
const SkipForever uint64 = math.MaxUint64

// Node is a clocked component.
type Node interface {
	// Tick evaluates the combinational logic of the cycle.
	Tick(ctx *Context)

	// Tock commits the state of the cycle.
	Tock(ctx *Context)
}

// Gateable is implemented by nodes that may enter the Gated state.
type Gateable interface {
	CanBeGated() bool
}

// Skippable is implemented by gated nodes that can fast-forward over cycles
// in which they receive no input.
type Skippable interface {
	// SkippableCycles returns how many upcoming cycles may be skipped.
	SkippableCycles() uint64

	// CatchUp brings the node to the state it would have after n tick/tock
	// pairs with no external input.
	CatchUp(ctx *Context, n uint64)
}

// Waker receives the payload of an external wakeup.
type Waker interface {
	Wake(ctx *Context, payload any)
}

// Replayable nodes can be cloned so that a catch-up can be checked against
// cycle-by-cycle evaluation.
type Replayable interface {
	Node
	Skippable
	Clone() Replayable
}

// NodeFunc adapts a pair of functions to the Node interface.
type NodeFunc struct {
	TickFunc func(ctx *Context)
	TockFunc func(ctx *Context)
}

// Tick calls TickFunc if set.
func (n *NodeFunc) Tick(ctx *Context) {
	if n.TickFunc != nil {
		n.TickFunc(ctx)
	}
}

// Tock calls TockFunc if set.
func (n *NodeFunc) Tock(ctx *Context) {
	if n.TockFunc != nil {
		n.TockFunc(ctx)
	}
}

// Gate guards the wire entry points of a component that can be skipped.
type Gate struct {
	ID NodeID
}

// Enter reports whether the component should process the wires it has been
// handed. Idle wires reaching a skipped node are dropped. Active wires wake
// it first.
func (g Gate) Enter(ctx *Context, active bool) bool {
	if !ctx.Skipping(g.ID) {
		return true
	}

	if !active {
		return false
	}

	ctx.Wake(g.ID)

	return true
}
