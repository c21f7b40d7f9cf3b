package stages

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/phase"
	"github.com/sarchlab/ahbsim/sim/hooking"
	"github.com/sarchlab/ahbsim/sim/power"
)

// HookPosPostedWriteError marks a posted write that the slave answered with
// an error. The item is the failed bus.TransferMeta.
var HookPosPostedWriteError = &hooking.HookPos{Name: "PostedWriteError"}

// WritePolicy tells when a write buffer lets a write complete upstream.
type WritePolicy int

// The write policies.
const (
	// Fast posts writes to bufferable ranges and completes them at once.
	Fast WritePolicy = iota

	// Conservative forwards every access and completes it when the slave
	// does.
	Conservative
)

type wbMode int

const (
	wbNone wbMode = iota
	wbPosted
	wbForward
)

type postedWrite struct {
	valid   bool
	hasData bool
	issued  bool
	meta    bus.TransferMeta
	data    bus.Data
}

type forwardedAccess struct {
	valid  bool
	issued bool
	ap     bus.MasterToSlaveAddrPhase
}

// WriteBuffer holds one posted write. A posted write completes upstream
// without wait-states and drains to the slave afterwards. Every other access
// waits for the buffer to drain before it reaches the slave, so reads never
// see stale data.
//
// The buffer drives its slave from its own tick, after the interconnect
// evaluated the cycle.
type WriteBuffer struct {
	outputStage
	*hooking.HookableBase

	policy     WritePolicy
	bufferable []bus.Range
	track      *phase.StateTrack

	next   wbMode
	nextAP bus.MasterToSlaveAddrPhase
	cur    wbMode

	entry  postedWrite
	fwd    forwardedAccess
	downPh wbMode

	polled     bool
	polledKind wbMode
	downReply  bus.SlaveToMasterWires
	issue      wbMode
	issueReady bool

	posted       uint64
	postedErrors uint64
}

// NewWriteBuffer creates a write buffer in front of down. With no
// bufferable ranges given, every write may be posted.
func NewWriteBuffer(
	name string,
	down bus.Slave,
	policy WritePolicy,
	bufferable ...bus.Range,
) *WriteBuffer {
	return &WriteBuffer{
		outputStage:  newOutputStage(name, down),
		HookableBase: hooking.NewHookableBase(),
		policy:       policy,
		bufferable:   bufferable,
		track:        phase.NewStateTrack(name),
		downReply:    bus.IdleReply(),
	}
}

// Name returns the name of the buffer.
func (b *WriteBuffer) Name() string {
	return b.name
}

// SetPolicy changes the policy for address phases from now on.
func (b *WriteBuffer) SetPolicy(p WritePolicy) {
	b.policy = p
}

// PostedWrites returns the number of writes that were posted.
func (b *WriteBuffer) PostedWrites() uint64 {
	return b.posted
}

// PostedWriteErrors returns the number of posted writes the slave refused.
// These errors cannot be reported to the master that issued the write.
func (b *WriteBuffer) PostedWriteErrors() uint64 {
	return b.postedErrors
}

// Draining reports whether a posted write has not reached the slave yet.
func (b *WriteBuffer) Draining() bool {
	return b.entry.valid
}

func (b *WriteBuffer) canPost(meta bus.TransferMeta) bool {
	if b.policy != Fast || !meta.IsWrite() || b.entry.valid {
		return false
	}

	if len(b.bufferable) == 0 {
		return true
	}

	span := spanOf(meta)
	for _, r := range b.bufferable {
		if r.ContainsSpan(span.Start, span.Size) {
			return true
		}
	}

	return false
}

// poll settles the downstream data phase once per cycle, whichever of
// Reply, AddrPhase and Tick comes first.
func (b *WriteBuffer) poll(ctx *power.Context, dp bus.MasterToSlaveDataPhase) {
	if b.polled {
		return
	}

	b.polled = true
	b.polledKind = b.downPh

	switch b.downPh {
	case wbPosted:
		b.downReply = b.down.Reply(ctx,
			bus.MasterToSlaveDataPhase{Data: b.entry.data})
	case wbForward:
		b.downReply = b.down.Reply(ctx, dp)
	default:
		b.downReply = bus.IdleReply()
	}

	if !b.downReply.Ready {
		return
	}

	switch b.downPh {
	case wbPosted:
		if b.downReply.Resp == bus.Error {
			b.postedErrors++
			b.InvokeHook(hooking.HookCtx{
				Domain: b,
				Pos:    HookPosPostedWriteError,
				Item:   b.entry.meta,
			})
		}
		b.entry = postedWrite{}
	case wbForward:
		b.fwd = forwardedAccess{}
	}

	b.downPh = wbNone
}

// Reply implements bus.Slave.
func (b *WriteBuffer) Reply(
	ctx *power.Context,
	dp bus.MasterToSlaveDataPhase,
) bus.SlaveToMasterWires {
	meta, ok := b.track.DataPhase()
	if !ok {
		bus.Violate(ctx, b.name, "reply requested without a data phase", dp)
	}

	b.poll(ctx, dp)

	var r bus.SlaveToMasterWires

	switch {
	case b.cur == wbPosted:
		if dp.Data.Len() != meta.Size.Bytes() {
			bus.Violate(ctx, b.name, "write data does not match the size",
				meta, dp.Data)
		}

		b.entry.data = dp.Data
		b.entry.hasData = true
		r = bus.Success(meta, bus.Data{})
	case b.polledKind == wbForward:
		r = withMeta(b.downReply, meta)
	default:
		r = bus.Pending(meta)
	}

	b.track.SetLastReply(ctx, r)

	return r
}

// AddrPhase implements bus.Slave.
func (b *WriteBuffer) AddrPhase(ctx *power.Context, ap bus.MasterToSlaveAddrPhase) {
	if !b.gate.Enter(ctx, ap.IsAddressValid()) {
		return
	}

	b.poll(ctx, bus.MasterToSlaveDataPhase{})
	b.track.SetLastAddr(ctx, ap)

	b.next = wbNone
	if !ap.IsAddressValid() || !ap.ReadyIn {
		return
	}

	b.nextAP = ap
	if b.canPost(ap.Meta) {
		b.next = wbPosted
	} else {
		b.next = wbForward
	}
}

// Tick drives the slave for the cycle: a posted write drains first, then a
// waiting access is issued.
func (b *WriteBuffer) Tick(ctx *power.Context) {
	b.poll(ctx, bus.MasterToSlaveDataPhase{})

	ready := b.downReply.Ready
	ap := bus.NoSelPhase(ready)
	b.issue = wbNone

	switch {
	case b.entry.valid && b.entry.hasData && !b.entry.issued:
		ap = bus.NonSeqPhase(b.entry.meta)
		b.issue = wbPosted
	case b.entry.valid:
		// Nothing passes a posted write.
	case b.fwd.valid && !b.fwd.issued:
		ap = b.fwd.ap
		b.issue = wbForward
	case b.next == wbForward:
		ap = b.nextAP
		b.issue = wbForward
	}

	ap.ReadyIn = ready
	b.issueReady = ready
	b.down.AddrPhase(ctx, ap)
}

// Tock commits the cycle.
func (b *WriteBuffer) Tock(ctx *power.Context) {
	ap, hadAddr := b.track.PeekAddr()
	res := b.track.Update()

	switch {
	case res.Advanced && hadAddr && ap.IsAddressValid():
		b.cur = b.next
		b.accept()
	case !res.HasDataPh:
		b.cur = wbNone
	}

	if b.issue != wbNone && b.issueReady {
		b.downPh = b.issue
		if b.issue == wbPosted {
			b.entry.issued = true
		} else {
			b.fwd.issued = true
		}
	}

	b.polled = false
	b.polledKind = wbNone
	b.downReply = bus.IdleReply()
	b.issue = wbNone
	b.issueReady = false
	b.next = wbNone

	b.settle(ctx, b.idle())
}

func (b *WriteBuffer) accept() {
	switch b.cur {
	case wbPosted:
		b.entry = postedWrite{valid: true, meta: b.nextAP.Meta}
		b.posted++
	case wbForward:
		b.fwd = forwardedAccess{valid: true, ap: b.nextAP}
	}
}

func (b *WriteBuffer) idle() bool {
	return !b.entry.valid && !b.fwd.valid && b.downPh == wbNone &&
		!b.track.HasDataPhase()
}

// CanBeGated reports whether the buffer is empty and nothing is in flight.
func (b *WriteBuffer) CanBeGated() bool {
	return b.idle()
}

// SkippableCycles lets an empty buffer sleep until it is addressed.
func (b *WriteBuffer) SkippableCycles() uint64 {
	return skippable(b.idle())
}

var (
	_ bus.Slave       = (*WriteBuffer)(nil)
	_ power.Node      = (*WriteBuffer)(nil)
	_ power.Gateable  = (*WriteBuffer)(nil)
	_ power.Skippable = (*WriteBuffer)(nil)
)
