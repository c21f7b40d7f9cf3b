package slavedriver

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/phase"
	"github.com/sarchlab/ahbsim/sim/power"
)

type stagedWrite struct {
	meta bus.TransferMeta
	data bus.Data
}

// Driver implements bus.Slave on top of an AlignedHandler. It inserts the
// configured wait-states, splits wide accesses into native beats, and turns
// narrow writes into read-modify-write.
//
// The driver is not a node on its own. Its owner calls Tock once per cycle
// and decides the power state from Idle.
type Driver struct {
	name    string
	cfg     Config
	handler AlignedHandler
	gate    power.Gate
	track   *phase.StateTrack

	waitLeft    int
	errorSecond bool
	staged      []stagedWrite

	accesses   uint64
	idleCycles uint64
}

// NewDriver creates a driver for the handler.
func NewDriver(name string, handler AlignedHandler, cfg Config) *Driver {
	cfg.NativeSize.MustBeValid()

	if cfg.WaitStates < 0 {
		panic("slavedriver: negative wait-states")
	}

	return &Driver{
		name:    name,
		cfg:     cfg,
		handler: handler,
		gate:    power.Gate{ID: power.NoNode},
		track:   phase.NewStateTrack(name),
	}
}

// BindNode ties the driver to the node that owns it, so that idle wires are
// dropped and active wires wake the owner while it is skipped.
func (d *Driver) BindNode(id power.NodeID) {
	d.gate.ID = id
}

// Name returns the name of the driver.
func (d *Driver) Name() string {
	return d.name
}

// Config returns the configuration of the driver.
func (d *Driver) Config() Config {
	return d.cfg
}

// Idle reports whether no transfer is in flight.
func (d *Driver) Idle() bool {
	return !d.track.HasDataPhase() && len(d.staged) == 0 && !d.errorSecond
}

// Accesses returns the number of transfers accepted so far.
func (d *Driver) Accesses() uint64 {
	return d.accesses
}

// IdleCycles returns the number of cycles spent without a transfer,
// including skipped ones.
func (d *Driver) IdleCycles() uint64 {
	return d.idleCycles
}

// CatchUp accounts for n skipped idle cycles.
func (d *Driver) CatchUp(n uint64) {
	d.idleCycles += n
}

// ForEachStaged calls fn for every registered write waiting for the tock.
func (d *Driver) ForEachStaged(fn func(meta bus.TransferMeta, data bus.Data)) {
	for _, w := range d.staged {
		fn(w.meta, w.data)
	}
}

// SetWaitStates changes the wait-states of transfers accepted from now on.
func (d *Driver) SetWaitStates(n int) {
	d.cfg.WaitStates = n
}

// AddrPhase records the address phase of the cycle.
func (d *Driver) AddrPhase(ctx *power.Context, ap bus.MasterToSlaveAddrPhase) {
	if !d.gate.Enter(ctx, ap.IsAddressValid()) {
		return
	}

	if ap.IsAddressValid() && ap.ReadyIn {
		d.mustBeAligned(ctx, ap)
	}

	d.track.SetLastAddr(ctx, ap)
}

func (d *Driver) mustBeAligned(ctx *power.Context, ap bus.MasterToSlaveAddrPhase) {
	if !ap.Meta.Size.IsValid() {
		bus.Violate(ctx, d.name, "undefined transfer size", ap)
	}

	if !ap.Meta.Addr.IsAligned(ap.Meta.Size) {
		bus.Violate(ctx, d.name, "unaligned transfer reached a slave", ap)
	}
}

// Reply returns the data-phase reply of the cycle.
func (d *Driver) Reply(
	ctx *power.Context,
	dp bus.MasterToSlaveDataPhase,
) bus.SlaveToMasterWires {
	meta, ok := d.track.DataPhase()
	if !ok {
		bus.Violate(ctx, d.name, "reply requested without a data phase", dp)
	}

	var r bus.SlaveToMasterWires

	switch {
	case d.errorSecond:
		r = bus.ErrorSecond(meta)
	case d.waitLeft > 0:
		r = bus.Pending(meta)
	case meta.Dir == bus.Read:
		r = d.read(ctx, meta)
	default:
		r = d.write(ctx, meta, dp.Data)
	}

	d.track.SetLastReply(ctx, r)

	return r
}

func (d *Driver) read(ctx *power.Context, meta bus.TransferMeta) bus.SlaveToMasterWires {
	if pr, ok := d.handler.(PreReader); ok {
		switch pr.PreRead(ctx, meta.Addr, meta.Size) {
		case AccessWait:
			return bus.Pending(meta)
		case AccessError:
			return bus.ErrorFirst(meta)
		}
	}

	native := d.cfg.NativeSize.Bytes()
	size := meta.Size.Bytes()

	if size <= native {
		aligned := meta.Addr.AlignDown(d.cfg.NativeSize)
		word := d.handler.Read(ctx, aligned)

		return bus.Success(meta, word.Slice(meta.Addr.Offset(aligned), size))
	}

	var data bus.Data
	for off := uint32(0); off < size; off += native {
		data = data.Concat(d.handler.Read(ctx, meta.Addr.Add(off)))
	}

	return bus.Success(meta, data)
}

func (d *Driver) write(
	ctx *power.Context,
	meta bus.TransferMeta,
	data bus.Data,
) bus.SlaveToMasterWires {
	if data.Len() != meta.Size.Bytes() {
		bus.Violate(ctx, d.name, "write data does not match the size",
			meta, data)
	}

	if !d.cfg.Writable {
		return bus.ErrorFirst(meta)
	}

	switch d.handler.PreWrite(ctx, meta.Addr, meta.Size) {
	case AccessWait:
		return bus.Pending(meta)
	case AccessError:
		return bus.ErrorFirst(meta)
	}

	if d.cfg.WriteMode == Registered {
		d.staged = append(d.staged, stagedWrite{meta: meta, data: data})
	} else {
		d.commit(ctx, meta, data)
	}

	return bus.Success(meta, bus.Data{})
}

func (d *Driver) commit(ctx *power.Context, meta bus.TransferMeta, data bus.Data) {
	native := d.cfg.NativeSize.Bytes()
	size := meta.Size.Bytes()

	switch {
	case size == native:
		d.handler.Write(ctx, meta.Addr, data)
	case size > native:
		for off := uint32(0); off < size; off += native {
			d.handler.Write(ctx, meta.Addr.Add(off), data.Slice(off, native))
		}
	default:
		d.readModifyWrite(ctx, meta, data)
	}
}

func (d *Driver) readModifyWrite(
	ctx *power.Context,
	meta bus.TransferMeta,
	data bus.Data,
) {
	aligned := meta.Addr.AlignDown(d.cfg.NativeSize)
	off := meta.Addr.Offset(aligned)

	before := d.handler.Read(ctx, aligned)
	word := before.Splice(off, data)
	d.handler.Write(ctx, aligned, word)

	if !bus.DebugChecks {
		return
	}

	after := d.handler.Read(ctx, aligned)
	if after.Splice(off, data) != word {
		bus.Violate(ctx, d.name,
			"narrow write disturbed bytes outside the transfer",
			meta, before, after)
	}
}

// Tock commits the cycle.
func (d *Driver) Tock(ctx *power.Context) {
	reply, hadReply := d.track.PeekReply()

	if d.track.HasDataPhase() && !hadReply {
		meta, _ := d.track.DataPhase()
		bus.Violate(ctx, d.name, "data phase left without a reply", meta)
	}

	for _, w := range d.staged {
		d.commit(ctx, w.meta, w.data)
	}
	d.staged = d.staged[:0]

	wasIdle := !d.track.HasDataPhase()
	r := d.track.Update()

	if hadReply {
		d.errorSecond = reply.Resp == bus.Error && !reply.Ready
	}

	switch {
	case r.Advanced && r.HasDataPh:
		d.waitLeft = d.cfg.WaitStates
		d.accesses++
	case hadReply && reply.IsPending() && d.waitLeft > 0:
		d.waitLeft--
	}

	if wasIdle && !r.HasDataPh {
		d.idleCycles++
	}
}

var _ bus.Slave = (*Driver)(nil)
