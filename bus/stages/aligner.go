package stages

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/phase"
	"github.com/sarchlab/ahbsim/sim/power"
)

// AlignPolicy tells an aligner what to do with an unaligned access.
type AlignPolicy int

// The alignment policies.
const (
	// PassThrough forwards unaligned accesses untouched.
	PassThrough AlignPolicy = iota

	// StronglyOrdered treats an unaligned access as a protocol violation.
	StronglyOrdered

	// Truncate aligns the address down and performs a single beat.
	Truncate

	// Split performs the access as a locked sequence of aligned beats.
	Split
)

// AlignRule applies a policy to a range of addresses.
type AlignRule struct {
	Range  bus.Range
	Policy AlignPolicy
}

type beat struct {
	meta bus.TransferMeta
	off  uint32
}

type splitAccess struct {
	active bool
	meta   bus.TransferMeta
	beats  []beat
	issued int
	inData int
	data   bus.Data
	failed bool
}

// Aligner applies alignment policies to the accesses reaching a slave.
// Aligned accesses pass through without added latency.
type Aligner struct {
	outputStage

	rules []AlignRule
	track *phase.StateTrack

	split      splitAccess
	nextSplit  splitAccess
	issuedBeat int
	issueReady bool
	beatReply  bus.SlaveToMasterWires
	beatDone   bool

	splits uint64
}

// NewAligner creates an aligner in front of down. Addresses outside every
// rule pass through.
func NewAligner(name string, down bus.Slave, rules ...AlignRule) *Aligner {
	return &Aligner{
		outputStage: newOutputStage(name, down),
		rules:       rules,
		track:       phase.NewStateTrack(name),
		issuedBeat:  -1,
	}
}

// Splits returns the number of accesses performed as several beats.
func (a *Aligner) Splits() uint64 {
	return a.splits
}

func (a *Aligner) policyOf(addr bus.Address) AlignPolicy {
	for _, r := range a.rules {
		if r.Range.Contains(addr) {
			return r.Policy
		}
	}

	return PassThrough
}

// Reply implements bus.Slave.
func (a *Aligner) Reply(
	ctx *power.Context,
	dp bus.MasterToSlaveDataPhase,
) bus.SlaveToMasterWires {
	meta, ok := a.track.DataPhase()
	if !ok {
		bus.Violate(ctx, a.name, "reply requested without a data phase", dp)
	}

	var r bus.SlaveToMasterWires
	if a.split.active {
		r = a.replySplit(ctx, meta, dp)
	} else {
		r = withMeta(a.down.Reply(ctx, dp), meta)
	}

	a.track.SetLastReply(ctx, r)

	return r
}

func (a *Aligner) replySplit(
	ctx *power.Context,
	meta bus.TransferMeta,
	dp bus.MasterToSlaveDataPhase,
) bus.SlaveToMasterWires {
	s := &a.split
	b := s.beats[s.inData]

	var wdata bus.MasterToSlaveDataPhase
	if meta.IsWrite() {
		wdata.Data = dp.Data.Slice(b.off, b.meta.Size.Bytes())
	}

	r := a.down.Reply(ctx, wdata)
	a.beatReply = r

	switch {
	case r.Resp == bus.Error:
		s.failed = true
		a.beatDone = r.Ready
		return withMeta(r, meta)
	case !r.Ready:
		return bus.Pending(meta)
	}

	a.beatDone = true
	if !meta.IsWrite() {
		s.data = s.data.Concat(r.Data)
	}

	if s.inData < len(s.beats)-1 {
		return bus.Pending(meta)
	}

	if meta.IsWrite() {
		return bus.Success(meta, bus.Data{})
	}

	return bus.Success(meta, s.data)
}

// AddrPhase implements bus.Slave.
func (a *Aligner) AddrPhase(ctx *power.Context, ap bus.MasterToSlaveAddrPhase) {
	if !a.gate.Enter(ctx, ap.IsAddressValid() || a.split.active) {
		return
	}

	a.track.SetLastAddr(ctx, ap)

	ending := a.split.failed && a.beatDone
	if a.split.active && a.split.issued < len(a.split.beats) && !ending {
		ready := a.split.inData < 0 || a.beatReply.Ready
		if a.split.failed {
			a.down.AddrPhase(ctx, bus.NoSelPhase(ready))
			return
		}

		a.issueBeat(ctx, a.split.issued, ready)

		return
	}

	if !ap.IsAddressValid() || ap.Meta.Addr.IsAligned(ap.Meta.Size) {
		a.down.AddrPhase(ctx, ap)
		return
	}

	switch a.policyOf(ap.Meta.Addr) {
	case StronglyOrdered:
		bus.Violate(ctx, a.name,
			"unaligned access to a strongly-ordered region", ap)
	case Truncate:
		ap.Meta.Addr = ap.Meta.Addr.AlignDown(ap.Meta.Size)
		a.down.AddrPhase(ctx, ap)
	case Split:
		a.startSplit(ctx, ap)
	default:
		a.down.AddrPhase(ctx, ap)
	}
}

func (a *Aligner) startSplit(ctx *power.Context, ap bus.MasterToSlaveAddrPhase) {
	a.nextSplit = splitAccess{
		active: true,
		meta:   ap.Meta,
		beats:  splitBeats(ap.Meta),
		inData: -1,
	}

	first := a.nextSplit.beats[0]
	down := bus.NonSeqPhase(first.meta)
	down.Lock = true
	down.ReadyIn = ap.ReadyIn
	a.down.AddrPhase(ctx, down)

	a.issuedBeat = 0
	a.issueReady = ap.ReadyIn
}

func (a *Aligner) issueBeat(ctx *power.Context, i int, ready bool) {
	b := a.split.beats[i]
	down := bus.NonSeqPhase(b.meta)
	down.Lock = true
	down.ReadyIn = ready
	a.down.AddrPhase(ctx, down)

	a.issuedBeat = i
	a.issueReady = ready
}

// splitBeats cuts an access into naturally aligned beats, largest first.
func splitBeats(meta bus.TransferMeta) []beat {
	var beats []beat

	addr := meta.Addr
	left := meta.Size.Bytes()
	off := uint32(0)

	for left > 0 {
		n := uint32(1)
		for n*2 <= left && addr.IsAligned(sizeOf(n*2)) {
			n *= 2
		}

		m := meta
		m.Addr = addr
		m.Size = sizeOf(n)
		beats = append(beats, beat{meta: m, off: off})

		addr = addr.Add(n)
		off += n
		left -= n
	}

	return beats
}

func sizeOf(n uint32) bus.Size {
	s, ok := bus.SizeOf(n)
	if !ok {
		panic("stages: no transfer size for a beat")
	}

	return s
}

// Tock commits the cycle.
func (a *Aligner) Tock(ctx *power.Context) {
	ap, hadAddr := a.track.PeekAddr()
	res := a.track.Update()

	if a.split.active && a.beatDone {
		a.split.inData = -1
		if a.split.failed || res.Finished {
			a.split = splitAccess{}
		}
	}

	if a.issuedBeat >= 0 && a.issueReady {
		if !a.split.active && a.nextSplit.active &&
			res.Advanced && hadAddr && ap.IsAddressValid() {
			a.split = a.nextSplit
			a.splits++
		}

		if a.split.active {
			a.split.inData = a.issuedBeat
			a.split.issued = a.issuedBeat + 1
		}
	}

	a.nextSplit = splitAccess{}
	a.issuedBeat = -1
	a.issueReady = false
	a.beatReply = bus.SlaveToMasterWires{}
	a.beatDone = false

	a.settle(ctx, a.idle())
}

func (a *Aligner) idle() bool {
	return !a.split.active && !a.track.HasDataPhase()
}

// CanBeGated reports whether no transfer is in flight.
func (a *Aligner) CanBeGated() bool {
	return a.idle()
}

// SkippableCycles lets an idle aligner sleep until it is addressed.
func (a *Aligner) SkippableCycles() uint64 {
	return skippable(a.idle())
}

var (
	_ bus.Slave       = (*Aligner)(nil)
	_ power.Node      = (*Aligner)(nil)
	_ power.Gateable  = (*Aligner)(nil)
	_ power.Skippable = (*Aligner)(nil)
)
