package interconnect

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/phase"
	"github.com/sarchlab/ahbsim/sim/power"
)

// responder is the clocking shared by the slaves that answer on their own.
type responder struct {
	name  string
	gate  power.Gate
	track *phase.StateTrack
}

func newResponder(name string) responder {
	return responder{
		name:  name,
		gate:  power.Gate{ID: power.NoNode},
		track: phase.NewStateTrack(name),
	}
}

// Name returns the name of the responder.
func (r *responder) Name() string {
	return r.name
}

// BindNode ties the responder to its node in the clock tree.
func (r *responder) BindNode(id power.NodeID) {
	r.gate.ID = id
}

// AddrPhase records the address phase of the cycle.
func (r *responder) AddrPhase(ctx *power.Context, ap bus.MasterToSlaveAddrPhase) {
	if !r.gate.Enter(ctx, ap.IsAddressValid()) {
		return
	}

	r.track.SetLastAddr(ctx, ap)
}

// Tick does nothing.
func (r *responder) Tick(*power.Context) {}

// Idle reports whether no transfer is outstanding.
func (r *responder) Idle() bool {
	return !r.track.HasDataPhase()
}

// CanBeGated reports whether the responder is idle.
func (r *responder) CanBeGated() bool {
	return r.Idle()
}

// SkippableCycles returns SkipForever while idle.
func (r *responder) SkippableCycles() uint64 {
	if r.Idle() {
		return power.SkipForever
	}

	return 0
}

// CatchUp does nothing.
func (r *responder) CatchUp(*power.Context, uint64) {}

func (r *responder) settle(ctx *power.Context) {
	if r.gate.ID == power.NoNode {
		return
	}

	if r.Idle() {
		ctx.SetPowerState(r.gate.ID, power.Gated)
	} else {
		ctx.SetPowerState(r.gate.ID, power.Active)
	}
}

// ErrorSlave answers every transfer with a two-cycle error response. It is
// the usual NoMatch handler.
type ErrorSlave struct {
	responder
	second bool
	errors uint64
}

// NewErrorSlave creates an error responder.
func NewErrorSlave(name string) *ErrorSlave {
	return &ErrorSlave{responder: newResponder(name)}
}

// Errors returns the number of transfers answered.
func (s *ErrorSlave) Errors() uint64 {
	return s.errors
}

// Reply returns the error response.
func (s *ErrorSlave) Reply(
	ctx *power.Context,
	_ bus.MasterToSlaveDataPhase,
) bus.SlaveToMasterWires {
	meta, ok := s.track.DataPhase()
	if !ok {
		bus.Violate(ctx, s.name, "reply requested without a data phase")
	}

	r := bus.ErrorFirst(meta)
	if s.second {
		r = bus.ErrorSecond(meta)
	}

	s.track.SetLastReply(ctx, r)

	return r
}

// Tock commits the cycle.
func (s *ErrorSlave) Tock(ctx *power.Context) {
	r, hadReply := s.track.PeekReply()
	res := s.track.Update()

	s.second = hadReply && r.Resp == bus.Error && !r.Ready

	if res.Advanced && res.HasDataPh {
		s.errors++
	}

	s.settle(ctx)
}

// FixedSlave completes every transfer without wait-states. Reads return a
// constant pattern and writes are dropped. It stands in for peripherals that
// are not modelled.
type FixedSlave struct {
	responder
	value  uint64
	reads  uint64
	writes uint64
}

// NewFixedSlave creates a responder whose reads return value, repeated over
// wide beats.
func NewFixedSlave(name string, value uint64) *FixedSlave {
	return &FixedSlave{
		responder: newResponder(name),
		value:     value,
	}
}

// Reads returns the number of reads answered.
func (s *FixedSlave) Reads() uint64 {
	return s.reads
}

// Writes returns the number of writes dropped.
func (s *FixedSlave) Writes() uint64 {
	return s.writes
}

// Reply completes the outstanding transfer.
func (s *FixedSlave) Reply(
	ctx *power.Context,
	_ bus.MasterToSlaveDataPhase,
) bus.SlaveToMasterWires {
	meta, ok := s.track.DataPhase()
	if !ok {
		bus.Violate(ctx, s.name, "reply requested without a data phase")
	}

	var r bus.SlaveToMasterWires
	if meta.IsWrite() {
		s.writes++
		r = bus.Success(meta, bus.Data{})
	} else {
		s.reads++
		r = bus.Success(meta, s.pattern(meta.Size))
	}

	s.track.SetLastReply(ctx, r)

	return r
}

func (s *FixedSlave) pattern(size bus.Size) bus.Data {
	if size.Bytes() <= 8 {
		return bus.DataFromUint64(s.value, size)
	}

	word := bus.DataFromUint64(s.value, bus.SizeDoubleword)

	return word.Concat(word)
}

// Tock commits the cycle.
func (s *FixedSlave) Tock(ctx *power.Context) {
	s.track.Update()
	s.settle(ctx)
}

var (
	_ bus.Slave       = (*ErrorSlave)(nil)
	_ power.Skippable = (*ErrorSlave)(nil)
	_ bus.Slave       = (*FixedSlave)(nil)
	_ power.Skippable = (*FixedSlave)(nil)
)
