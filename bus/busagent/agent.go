// Package busagent provides a scripted bus master for driving an
// interconnect in tests and from the command line.
package busagent

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/sim/power"
)

// Transfer is one scripted access.
type Transfer struct {
	Addr bus.Address
	Size bus.Size
	Dir  bus.Direction
	Data bus.Data
	Lock bool

	// Delay is the number of idle cycles the agent waits before presenting
	// the address phase.
	Delay int
}

// Read returns a read transfer.
func Read(addr bus.Address, size bus.Size) Transfer {
	return Transfer{Addr: addr, Size: size, Dir: bus.Read}
}

// Write returns a write transfer.
func Write(addr bus.Address, size bus.Size, data bus.Data) Transfer {
	return Transfer{Addr: addr, Size: size, Dir: bus.Write, Data: data}
}

// WriteWord returns a 32-bit write.
func WriteWord(addr bus.Address, v uint32) Transfer {
	return Write(addr, bus.SizeWord, bus.DataFromUint32(v, bus.SizeWord))
}

// Locked returns a copy of the transfer with the lock asserted.
func (t Transfer) Locked() Transfer {
	t.Lock = true
	return t
}

// After returns a copy of the transfer issued after n idle cycles.
func (t Transfer) After(n int) Transfer {
	t.Delay = n
	return t
}

// Result is a completed transfer.
type Result struct {
	Transfer Transfer
	Reply    bus.SlaveToMasterWires
	Issued   uint64
	Done     uint64
}

// TraceEntry records the wires the agent saw in one cycle: the address phase
// it drove and the reply of its data phase.
type TraceEntry struct {
	Cycle    uint64
	AddrKind bus.TransferKind
	Addr     bus.Address
	Ready    bool
	Resp     bus.RespKind
	Data     bus.Data
}

// Port is the side of an interconnect a master drives.
type Port interface {
	Drive(ctx *power.Context, ap bus.MasterToSlaveAddrPhase,
		dp bus.MasterToSlaveDataPhase)
	Reply() bus.SlaveToMasterWires
}

// An Agent is a master that issues a list of transfers back to back. It
// holds each address phase until it is accepted.
type Agent struct {
	name string
	id   power.NodeID
	port Port

	queue  []Transfer
	next   int
	delay  int
	data   int
	issued []uint64

	ap bus.MasterToSlaveAddrPhase

	trace   []TraceEntry
	results []Result
}

// NewAgent creates an agent that drives port. id is the node of the agent
// in the clock tree, or power.NoNode.
func NewAgent(name string, id power.NodeID, port Port) *Agent {
	return &Agent{
		name: name,
		id:   id,
		port: port,
		data: -1,
	}
}

// Name returns the name of the agent.
func (a *Agent) Name() string {
	return a.name
}

// Enqueue appends transfers to the script. An agent that already went to
// sleep must be woken, typically by delivering the transfers as the payload
// of a wakeup.
func (a *Agent) Enqueue(ts ...Transfer) {
	if len(ts) == 0 {
		return
	}

	if a.next == len(a.queue) {
		a.delay = ts[0].Delay
	}

	a.queue = append(a.queue, ts...)
}

// Wake enqueues the transfers carried by a wakeup payload.
func (a *Agent) Wake(_ *power.Context, payload any) {
	switch p := payload.(type) {
	case []Transfer:
		a.Enqueue(p...)
	case Transfer:
		a.Enqueue(p)
	}
}

// Done reports whether every transfer has completed.
func (a *Agent) Done() bool {
	return a.next >= len(a.queue) && a.data < 0
}

// Results returns the completed transfers in completion order.
func (a *Agent) Results() []Result {
	return a.results
}

// Trace returns one entry per cycle the agent was clocked.
func (a *Agent) Trace() []TraceEntry {
	return a.trace
}

// Tick drives the wires of the cycle.
func (a *Agent) Tick(ctx *power.Context) {
	a.ap = bus.IdlePhase()
	a.ap.Lock = a.lockedGap()

	if a.delay == 0 && a.next < len(a.queue) {
		t := a.queue[a.next]
		a.ap = bus.NonSeqPhase(bus.TransferMeta{
			Addr: t.Addr,
			Size: t.Size,
			Dir:  t.Dir,
		})
		a.ap.Lock = t.Lock

		for len(a.issued) <= a.next {
			a.issued = append(a.issued, ctx.Cycle())
		}
	}

	var dp bus.MasterToSlaveDataPhase
	if a.data >= 0 && a.queue[a.data].Dir == bus.Write {
		dp.Data = a.queue[a.data].Data
	}

	a.port.Drive(ctx, a.ap, dp)
}

// lockedGap reports whether the agent waits between two locked transfers.
// The lock stays asserted on the idle phases of the gap.
func (a *Agent) lockedGap() bool {
	return a.delay > 0 &&
		a.next > 0 && a.next < len(a.queue) &&
		a.queue[a.next-1].Lock && a.queue[a.next].Lock
}

// Tock samples the reply of the cycle.
func (a *Agent) Tock(ctx *power.Context) {
	r := a.port.Reply()

	a.trace = append(a.trace, TraceEntry{
		Cycle:    ctx.Cycle(),
		AddrKind: a.ap.Kind,
		Addr:     a.ap.Meta.Addr,
		Ready:    r.Ready,
		Resp:     r.Resp,
		Data:     r.Data,
	})

	if r.Ready {
		a.complete(ctx, r)
	}

	if !a.ap.IsAddressValid() && a.delay > 0 {
		a.delay--
	}

	if a.id == power.NoNode {
		return
	}

	if a.Done() {
		ctx.SetPowerState(a.id, power.Gated)
	} else {
		ctx.SetPowerState(a.id, power.Active)
	}
}

func (a *Agent) complete(ctx *power.Context, r bus.SlaveToMasterWires) {
	if a.data >= 0 {
		a.results = append(a.results, Result{
			Transfer: a.queue[a.data],
			Reply:    r,
			Issued:   a.issued[a.data],
			Done:     ctx.Cycle(),
		})
		a.data = -1
	}

	if !a.ap.IsAddressValid() {
		return
	}

	a.data = a.next
	a.next++

	if a.next < len(a.queue) {
		a.delay = a.queue[a.next].Delay
	}
}

// CanBeGated reports whether the script is finished.
func (a *Agent) CanBeGated() bool {
	return a.Done()
}

// SkippableCycles returns SkipForever once the script is finished.
func (a *Agent) SkippableCycles() uint64 {
	if a.Done() {
		return power.SkipForever
	}

	return 0
}

// CatchUp does nothing. A finished agent has no state that evolves.
func (a *Agent) CatchUp(*power.Context, uint64) {}

var (
	_ power.Skippable = (*Agent)(nil)
	_ power.Waker     = (*Agent)(nil)
)
