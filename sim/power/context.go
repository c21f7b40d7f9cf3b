package power

import (
	"log"

	"github.com/sarchlab/ahbsim/sim/timing"
)

// Context is handed to every tick and tock. It is the only route by which a
// node reaches the event queue and the power table.
type Context struct {
	events  timing.EventScheduler
	table   *Table
	cycle   uint64
	phase   Phase
	current NodeID
	replay  bool
}

// NewContext creates a context outside of any cycle.
func NewContext(events timing.EventScheduler, table *Table) *Context {
	return &Context{
		events:  events,
		table:   table,
		current: NoNode,
	}
}

// Events returns the event queue.
func (c *Context) Events() timing.EventScheduler {
	return c.events
}

// Table returns the power table.
func (c *Context) Table() *Table {
	return c.table
}

// Cycle returns the cycle being evaluated.
func (c *Context) Cycle() uint64 {
	return c.cycle
}

// Phase returns the half of the cycle being evaluated.
func (c *Context) Phase() Phase {
	return c.phase
}

// Current returns the node whose tick or tock is running.
func (c *Context) Current() NodeID {
	return c.current
}

// Now returns the current simulated time.
func (c *Context) Now() timing.VTimeInPs {
	if c.events == nil {
		return 0
	}

	return c.events.CurrentTime()
}

// Skipping reports whether the node is inside a skip window.
func (c *Context) Skipping(id NodeID) bool {
	if c.replay || c.table == nil {
		return false
	}

	return c.table.Skipping(id)
}

// Wake ends the skip window of a node, catching it up to the current cycle.
func (c *Context) Wake(id NodeID) {
	if c.replay || c.table == nil {
		return
	}

	c.table.wake(c, id)
}

// SetPowerState changes the power state of a node. Only the node itself may
// do so, during its own tock. Entering the Gated state is refused unless the
// node reports CanBeGated. The return value tells whether the node is now in
// the requested state.
func (c *Context) SetPowerState(id NodeID, s State) bool {
	if c.replay {
		return true
	}

	if c.phase != PhaseTock || c.current != id {
		log.Panicf(
			"power: node %d changed its power state outside its own tock "+
				"(cycle %d, phase %s, running node %d)",
			id, c.cycle, c.phase, c.current)
	}

	return c.table.setState(c, id, s)
}

func (c *Context) enter(id NodeID) NodeID {
	prev := c.current
	c.current = id

	return prev
}
