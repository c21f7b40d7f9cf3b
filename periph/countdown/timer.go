// Package countdown provides a SysTick-like countdown timer peripheral.
package countdown

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/slavedriver"
	"github.com/sarchlab/ahbsim/sim/power"
)

// Register offsets.
const (
	RegCtrl bus.Address = 0x0
	RegLoad bus.Address = 0x4
	RegVal  bus.Address = 0x8
	RegFlag bus.Address = 0xc

	// Span is the size of the register block.
	Span = 0x10
)

// CtrlEnable is the enable bit of CTRL.
const CtrlEnable = 1 << 0

// LoadMask keeps the implemented bits of LOAD.
const LoadMask = 0x00ff_ffff

// Timer counts down once per cycle while enabled. Counting down to zero
// reloads the counter from LOAD and sets FLAG, which is cleared by writing 1
// to it. Writing VAL clears both the counter and FLAG.
//
// The timer sleeps between wraps: while counting it can skip VAL-1 cycles,
// and while disabled it sleeps until it is addressed.
type Timer struct {
	counter

	name   string
	node   power.NodeID
	base   bus.Address
	driver *slavedriver.Driver
}

// Name returns the name of the timer.
func (t *Timer) Name() string {
	return t.name
}

// Range returns the address range of the register block.
func (t *Timer) Range() bus.Range {
	return bus.Range{Start: t.base, Size: Span}
}

// Driver returns the slave driver in front of the registers.
func (t *Timer) Driver() *slavedriver.Driver {
	return t.driver
}

// Enabled reports whether the timer counts.
func (t *Timer) Enabled() bool {
	return t.enabled
}

// Value returns the current counter value.
func (t *Timer) Value() uint32 {
	return t.val
}

// Flag reports whether the counter wrapped since the flag was cleared.
func (t *Timer) Flag() bool {
	return t.flag
}

// Wraps returns the number of times the counter reached zero.
func (t *Timer) Wraps() uint64 {
	return t.wraps
}

// Reply implements bus.Slave.
func (t *Timer) Reply(
	ctx *power.Context,
	dp bus.MasterToSlaveDataPhase,
) bus.SlaveToMasterWires {
	return t.driver.Reply(ctx, dp)
}

// AddrPhase implements bus.Slave.
func (t *Timer) AddrPhase(ctx *power.Context, ap bus.MasterToSlaveAddrPhase) {
	t.driver.AddrPhase(ctx, ap)
}

// Tick does nothing.
func (t *Timer) Tick(*power.Context) {}

// Tock commits the bus cycle and advances the counter.
func (t *Timer) Tock(ctx *power.Context) {
	if t.driver != nil {
		t.driver.Tock(ctx)
	}

	t.step()

	if t.node == power.NoNode {
		return
	}

	if t.CanBeGated() {
		ctx.SetPowerState(t.node, power.Gated)
	} else {
		ctx.SetPowerState(t.node, power.Active)
	}
}

// CanBeGated reports whether no register access is in flight.
func (t *Timer) CanBeGated() bool {
	return t.driver == nil || t.driver.Idle()
}

// SkippableCycles returns the cycles left before the next wrap, or
// SkipForever while the timer is stopped.
func (t *Timer) SkippableCycles() uint64 {
	if !t.CanBeGated() {
		return 0
	}

	n := t.quietCycles()
	if n == ^uint64(0) {
		return power.SkipForever
	}

	return n
}

// CatchUp advances the counter over n skipped cycles.
func (t *Timer) CatchUp(_ *power.Context, n uint64) {
	if t.driver != nil {
		t.driver.CatchUp(n)
	}

	t.advance(n)
}

// Clone returns a copy of the counter without its bus side, for checking
// catch-ups against cycle-by-cycle evaluation.
func (t *Timer) Clone() power.Replayable {
	return &Timer{
		counter: t.counter,
		name:    t.name,
		node:    power.NoNode,
		base:    t.base,
	}
}

type registers struct {
	t *Timer
}

func (r registers) check(addr bus.Address) slavedriver.AccessStatus {
	if addr.Offset(r.t.base) >= Span {
		return slavedriver.AccessError
	}

	return slavedriver.AccessOk
}

func (r registers) PreRead(
	_ *power.Context,
	addr bus.Address,
	_ bus.Size,
) slavedriver.AccessStatus {
	return r.check(addr)
}

func (r registers) PreWrite(
	_ *power.Context,
	addr bus.Address,
	_ bus.Size,
) slavedriver.AccessStatus {
	return r.check(addr)
}

func (r registers) Write(_ *power.Context, addr bus.Address, data bus.Data) {
	v := data.Uint32()
	c := &r.t.counter

	switch bus.Address(addr.Offset(r.t.base)) {
	case RegCtrl:
		c.enabled = v&CtrlEnable != 0
	case RegLoad:
		c.load = v & LoadMask
	case RegVal:
		c.val = 0
		c.flag = false
	case RegFlag:
		if v&1 != 0 {
			c.flag = false
		}
	}
}

func (r registers) Read(_ *power.Context, addr bus.Address) bus.Data {
	c := &r.t.counter

	var v uint32

	switch bus.Address(addr.Offset(r.t.base)) {
	case RegCtrl:
		if c.enabled {
			v = CtrlEnable
		}
	case RegLoad:
		v = c.load
	case RegVal:
		v = c.val
	case RegFlag:
		if c.flag {
			v = 1
		}
	}

	return bus.DataFromUint32(v, bus.SizeWord)
}

var (
	_ bus.Slave        = (*Timer)(nil)
	_ power.Replayable = (*Timer)(nil)
)
