package power

import (
	"github.com/sarchlab/ahbsim/sim/timing"
)

// Engine is the part of the event engine the scheduler drives.
type Engine interface {
	timing.EventScheduler
	StepUntil(t timing.VTimeInPs) error
}

type cycleEvent struct {
	cycle uint64
	phase Phase
	gen   uint64
}

type wakeupEvent struct {
	node    NodeID
	payload any
}

// Scheduler runs the registered nodes through two-phase cycles on a single
// clock. Every cycle, all nodes are ticked in registration order, then all
// nodes that were ticked are tocked. Gated nodes that report skippable cycles
// are left out until their window closes, and when every node is skipping
// the scheduler jumps to the end of the earliest window.
type Scheduler struct {
	engine Engine
	clock  timing.Clock
	table  *Table
	ctx    *Context

	gen         uint64
	started     bool
	tockPending bool
	quiescent   bool
	lastCycle   uint64
	ranAny      bool
}

// NewScheduler creates a scheduler for the table, clocked by clock.
func NewScheduler(engine Engine, clock timing.Clock, table *Table) *Scheduler {
	return &Scheduler{
		engine: engine,
		clock:  clock,
		table:  table,
		ctx:    NewContext(engine, table),
	}
}

// Name returns the name of the scheduler.
func (s *Scheduler) Name() string {
	return "PowerScheduler"
}

// Table returns the power table the scheduler drives.
func (s *Scheduler) Table() *Table {
	return s.table
}

// Clock returns the clock of the scheduler.
func (s *Scheduler) Clock() timing.Clock {
	return s.clock
}

// Register adds a node to the clock tree.
func (s *Scheduler) Register(id NodeID, name string, node Node) {
	s.table.Register(id, name, node)
}

// LastCycle returns the most recent cycle that was evaluated.
func (s *Scheduler) LastCycle() uint64 {
	return s.lastCycle
}

// Quiescent reports whether every node sleeps until woken.
func (s *Scheduler) Quiescent() bool {
	return s.quiescent
}

// Start schedules the first cycle at the first rising edge not earlier than
// the current time.
func (s *Scheduler) Start() {
	if s.started {
		return
	}

	s.started = true
	s.scheduleTick(s.clock.CycleAtOrAfter(s.engine.CurrentTime()))
}

// RunThrough processes events up to and including the tock of cycle.
func (s *Scheduler) RunThrough(cycle uint64) error {
	return s.engine.StepUntil(s.clock.CycleMid(cycle))
}

// InjectWakeup delivers an external wakeup to a node at the current time.
func (s *Scheduler) InjectWakeup(node NodeID, payload any) {
	s.InjectWakeupAt(s.engine.CurrentTime(), node, payload)
}

// InjectWakeupAt delivers an external wakeup to a node at time t.
func (s *Scheduler) InjectWakeupAt(t timing.VTimeInPs, node NodeID, payload any) {
	s.engine.Schedule(timing.ScheduledEvent{
		Event:    &wakeupEvent{node: node, payload: payload},
		Time:     t,
		Handler:  s,
		IsWakeup: true,
	})
}

// Handle processes the scheduler's own events.
func (s *Scheduler) Handle(evt any) error {
	switch e := evt.(type) {
	case *cycleEvent:
		if e.gen != s.gen {
			return nil
		}

		switch e.phase {
		case PhaseTick:
			s.tick(e.cycle)
		case PhaseTock:
			s.tock(e.cycle)
		}
	case *wakeupEvent:
		s.wakeup(e)
	default:
		panic("power: unknown event")
	}

	return nil
}

func (s *Scheduler) scheduleTick(cycle uint64) {
	s.gen++
	s.quiescent = false
	s.engine.Schedule(timing.ScheduledEvent{
		Event:   &cycleEvent{cycle: cycle, phase: PhaseTick, gen: s.gen},
		Time:    s.clock.CycleStart(cycle),
		Handler: s,
	})
}

func (s *Scheduler) tick(cycle uint64) {
	ctx := s.ctx
	ctx.cycle = cycle
	ctx.phase = PhaseTick

	n := s.table.Len()
	for i := 0; i < n; i++ {
		id := NodeID(i)
		e := s.table.entrySnapshot(id)
		if e.skipping && e.skipUntil <= cycle {
			s.table.catchUp(ctx, id, cycle)
		}
	}

	for i := 0; i < n; i++ {
		id := NodeID(i)
		node, ok := s.table.claimTick(id, cycle)
		if !ok {
			continue
		}

		prev := ctx.enter(id)
		node.Tick(ctx)
		ctx.current = prev
	}

	ctx.phase = PhaseIdle
	s.lastCycle = cycle
	s.ranAny = true
	s.tockPending = true

	s.engine.Schedule(timing.ScheduledEvent{
		Event:   &cycleEvent{cycle: cycle, phase: PhaseTock, gen: s.gen},
		Time:    s.clock.CycleMid(cycle),
		Handler: s,
	})
}

func (s *Scheduler) tock(cycle uint64) {
	ctx := s.ctx
	ctx.cycle = cycle
	ctx.phase = PhaseTock

	n := s.table.Len()
	for i := 0; i < n; i++ {
		id := NodeID(i)
		e := s.table.entrySnapshot(id)
		if e.skipping || !e.tickedIn(cycle) {
			continue
		}

		prev := ctx.enter(id)
		e.node.Tock(ctx)
		ctx.current = prev
	}

	ctx.phase = PhaseIdle
	s.tockPending = false
	s.planNext(cycle)
}

func (s *Scheduler) planNext(cycle uint64) {
	allSkipping := true
	earliest := SkipForever

	n := s.table.Len()
	for i := 0; i < n; i++ {
		id := NodeID(i)
		if !s.table.beginSkip(id, cycle) {
			allSkipping = false
			continue
		}

		until := s.table.entrySnapshot(id).skipUntil
		if until < earliest {
			earliest = until
		}
	}

	switch {
	case !allSkipping:
		s.scheduleTick(cycle + 1)
	case earliest == SkipForever:
		s.gen++
		s.quiescent = true
	default:
		s.scheduleTick(earliest)
	}
}

// wakeup closes every skip window, hands the payload to the target and
// re-plans from scratch. Remaining skip budgets are discarded.
func (s *Scheduler) wakeup(e *wakeupEvent) {
	now := s.engine.CurrentTime()
	wakeCycle := s.clock.CycleAtOrAfter(now)
	if s.ranAny && wakeCycle <= s.lastCycle {
		wakeCycle = s.lastCycle + 1
	}

	ctx := s.ctx
	ctx.cycle = wakeCycle
	ctx.phase = PhaseIdle

	n := s.table.Len()
	for i := 0; i < n; i++ {
		id := NodeID(i)
		if s.table.entrySnapshot(id).skipping {
			s.table.catchUp(ctx, id, wakeCycle)
		}
	}

	if e.node >= 0 && int(e.node) < n {
		if w, ok := s.table.Node(e.node).(Waker); ok {
			prev := ctx.enter(e.node)
			w.Wake(ctx, e.payload)
			ctx.current = prev
		}
	}

	if !s.started {
		return
	}

	if s.tockPending {
		return
	}

	s.scheduleTick(wakeCycle)
}
