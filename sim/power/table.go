package power

import (
	"fmt"
	"log"
	"reflect"
	"sync"

	"github.com/sarchlab/ahbsim/sim/hooking"
)

// HookPosPowerChange fires when a node changes its power state. The item is
// a PowerChange.
var HookPosPowerChange = &hooking.HookPos{Name: "PowerChange"}

// HookPosSkip fires when a skip window closes. The item is a SkipWindow.
var HookPosSkip = &hooking.HookPos{Name: "Skip"}

// PowerChange records a power state transition.
type PowerChange struct {
	Node  NodeID
	Name  string
	Cycle uint64
	From  State
	To    State
}

// SkipWindow records a run of cycles a node was not evaluated for.
type SkipWindow struct {
	Node   NodeID
	Name   string
	Start  uint64
	Cycles uint64
}

// NodeStatus is a snapshot of one table entry.
type NodeStatus struct {
	ID       NodeID
	Name     string
	State    State
	Skipping bool
}

// SkipMismatch is the panic value raised when a catch-up does not reproduce
// cycle-by-cycle evaluation.
type SkipMismatch struct {
	Node   NodeID
	Name   string
	Start  uint64
	Cycles uint64
}

func (m *SkipMismatch) Error() string {
	return fmt.Sprintf(
		"power: node %s (%d) catch-up over %d cycles from cycle %d "+
			"does not match cycle-by-cycle evaluation",
		m.Name, m.Node, m.Cycles, m.Start)
}

// maxVerifiedCycles bounds the replay done by skip verification.
const maxVerifiedCycles = 1 << 16

type entry struct {
	name       string
	node       Node
	state      State
	skipping   bool
	skipStart  uint64
	skipUntil  uint64
	lastTicked uint64
}

func (e *entry) tickedIn(cycle uint64) bool {
	return e.lastTicked == cycle+1
}

// Table is the flat per-node power table, indexed by NodeID.
type Table struct {
	*hooking.HookableBase

	lock        sync.RWMutex
	entries     []entry
	verifySkips bool
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{HookableBase: hooking.NewHookableBase()}
}

// Name returns the name of the table.
func (t *Table) Name() string {
	return "PowerTable"
}

// Register adds a node. IDs must be registered densely, in order.
func (t *Table) Register(id NodeID, name string, node Node) {
	t.lock.Lock()
	defer t.lock.Unlock()

	if int(id) != len(t.entries) {
		log.Panicf("power: node %s registered as %d, expected %d",
			name, id, len(t.entries))
	}

	t.entries = append(t.entries, entry{name: name, node: node})
}

// EnableSkipVerification makes every catch-up of a Replayable node be
// checked against cycle-by-cycle evaluation of a clone.
func (t *Table) EnableSkipVerification() {
	t.verifySkips = true
}

// Len returns the number of registered nodes.
func (t *Table) Len() int {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return len(t.entries)
}

// State returns the power state of a node.
func (t *Table) State(id NodeID) State {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.entries[id].state
}

// Skipping reports whether a node is inside a skip window.
func (t *Table) Skipping(id NodeID) bool {
	t.lock.RLock()
	defer t.lock.RUnlock()

	if id < 0 || int(id) >= len(t.entries) {
		return false
	}

	return t.entries[id].skipping
}

// Node returns the node registered under id.
func (t *Table) Node(id NodeID) Node {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.entries[id].node
}

// Snapshot returns the status of every node.
func (t *Table) Snapshot() []NodeStatus {
	t.lock.RLock()
	defer t.lock.RUnlock()

	out := make([]NodeStatus, len(t.entries))
	for i, e := range t.entries {
		out[i] = NodeStatus{
			ID:       NodeID(i),
			Name:     e.name,
			State:    e.state,
			Skipping: e.skipping,
		}
	}

	return out
}

func (t *Table) setState(ctx *Context, id NodeID, s State) bool {
	t.lock.Lock()
	e := &t.entries[id]

	if e.state == s {
		t.lock.Unlock()
		return true
	}

	if s == Gated {
		g, ok := e.node.(Gateable)
		if !ok || !g.CanBeGated() {
			t.lock.Unlock()
			return false
		}
	}

	change := PowerChange{
		Node:  id,
		Name:  e.name,
		Cycle: ctx.cycle,
		From:  e.state,
		To:    s,
	}
	e.state = s
	t.lock.Unlock()

	t.InvokeHook(hooking.HookCtx{
		Domain: t,
		Pos:    HookPosPowerChange,
		Item:   change,
	})

	return true
}

// beginSkip opens a skip window for a node that has just been tocked in
// cycle. It reports whether the node is now skipping.
func (t *Table) beginSkip(id NodeID, cycle uint64) bool {
	t.lock.Lock()
	defer t.lock.Unlock()

	e := &t.entries[id]
	if e.skipping {
		return true
	}

	if e.state != Gated {
		return false
	}

	sk, ok := e.node.(Skippable)
	if !ok {
		return false
	}

	n := sk.SkippableCycles()
	if n == 0 {
		return false
	}

	e.skipping = true
	e.skipStart = cycle + 1
	e.skipUntil = saturatingAdd(cycle+1, n)

	return true
}

// catchUp closes the skip window of a node so that it resumes at cycle.
func (t *Table) catchUp(ctx *Context, id NodeID, resume uint64) {
	t.lock.Lock()
	e := &t.entries[id]
	if !e.skipping {
		t.lock.Unlock()
		return
	}

	e.skipping = false
	window := SkipWindow{
		Node:   id,
		Name:   e.name,
		Start:  e.skipStart,
		Cycles: resume - e.skipStart,
	}
	node := e.node
	t.lock.Unlock()

	if window.Cycles == 0 {
		return
	}

	prev := ctx.enter(id)
	if t.verifySkips {
		t.verifiedCatchUp(ctx, node, window)
	} else {
		node.(Skippable).CatchUp(ctx, window.Cycles)
	}
	ctx.current = prev

	t.InvokeHook(hooking.HookCtx{
		Domain: t,
		Pos:    HookPosSkip,
		Item:   window,
	})
}

func (t *Table) verifiedCatchUp(ctx *Context, node Node, w SkipWindow) {
	r, ok := node.(Replayable)
	if !ok || w.Cycles > maxVerifiedCycles {
		node.(Skippable).CatchUp(ctx, w.Cycles)
		return
	}

	if err := VerifyCatchUp(r, w.Start, w.Cycles); err != nil {
		panic(&SkipMismatch{
			Node:   w.Node,
			Name:   w.Name,
			Start:  w.Start,
			Cycles: w.Cycles,
		})
	}

	r.CatchUp(ctx, w.Cycles)
}

// wake is called from within a cycle when a skipping node receives input.
func (t *Table) wake(ctx *Context, id NodeID) {
	if !t.Skipping(id) {
		return
	}

	if ctx.phase == PhaseTock {
		log.Panicf("power: node %d woken during tock of cycle %d",
			id, ctx.cycle)
	}

	t.catchUp(ctx, id, ctx.cycle)

	// Nodes after the running one are ticked by the tick pass itself.
	if ctx.phase != PhaseTick || id > ctx.current {
		return
	}

	t.lock.Lock()
	e := &t.entries[id]
	ticked := e.tickedIn(ctx.cycle)
	e.lastTicked = ctx.cycle + 1
	node := e.node
	t.lock.Unlock()

	if ticked {
		return
	}

	prev := ctx.enter(id)
	node.Tick(ctx)
	ctx.current = prev
}

// VerifyCatchUp checks that CatchUp(n) on a node leaves it in the same state
// as n tick/tock pairs. The node itself is left untouched.
func VerifyCatchUp(node Replayable, start, n uint64) error {
	stepped := node.Clone()
	caught := node.Clone()

	replayCtx := &Context{current: NoNode, replay: true}
	for i := uint64(0); i < n; i++ {
		replayCtx.cycle = start + i
		replayCtx.phase = PhaseTick
		stepped.Tick(replayCtx)
		replayCtx.phase = PhaseTock
		stepped.Tock(replayCtx)
	}

	replayCtx.phase = PhaseIdle
	caught.CatchUp(replayCtx, n)

	if !reflect.DeepEqual(stepped, caught) {
		return &SkipMismatch{Start: start, Cycles: n}
	}

	return nil
}

func saturatingAdd(a, b uint64) uint64 {
	if a > SkipForever-b {
		return SkipForever
	}

	return a + b
}

func (t *Table) entrySnapshot(id NodeID) entry {
	t.lock.RLock()
	defer t.lock.RUnlock()

	return t.entries[id]
}

// claimTick marks the node as ticked in cycle and returns it, unless the
// node is skipping or was already ticked.
func (t *Table) claimTick(id NodeID, cycle uint64) (Node, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	e := &t.entries[id]
	if e.skipping || e.tickedIn(cycle) {
		return nil, false
	}

	e.lastTicked = cycle + 1

	return e.node, true
}
