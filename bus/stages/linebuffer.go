package stages

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/phase"
	"github.com/sarchlab/ahbsim/sim/power"
)

type lineMode int

const (
	linePass lineMode = iota
	lineHit
	lineMiss
)

// LineBuffer upsizes narrow reads to the line width of a wider slave and
// keeps the last line it read. Reads that hit the line are answered without
// wait-states and without touching the slave.
type LineBuffer struct {
	outputStage

	lineSize bus.Size
	track    *phase.StateTrack

	enabled   bool
	lineValid bool
	lineBase  bus.Address
	line      bus.Data

	next lineMode
	cur  lineMode

	hits   uint64
	misses uint64
}

// NewLineBuffer creates a line buffer in front of down, whose lines are
// lineSize wide.
func NewLineBuffer(name string, down bus.Slave, lineSize bus.Size) *LineBuffer {
	lineSize.MustBeValid()

	return &LineBuffer{
		outputStage: newOutputStage(name, down),
		lineSize:    lineSize,
		track:       phase.NewStateTrack(name),
		enabled:     true,
	}
}

// SetEnabled turns the buffer on or off. The change applies to address
// phases from now on. A disabled buffer is a plain wire and forgets its line.
func (b *LineBuffer) SetEnabled(enabled bool) {
	b.enabled = enabled
	if !enabled {
		b.lineValid = false
	}
}

// Enabled reports whether the buffer is on.
func (b *LineBuffer) Enabled() bool {
	return b.enabled
}

// Hits returns the number of reads served from the line.
func (b *LineBuffer) Hits() uint64 {
	return b.hits
}

// Invalidate forgets the held line if it overlaps r. Whoever changes the
// slave's contents behind the bus must call it.
func (b *LineBuffer) Invalidate(r bus.Range) {
	if b.lineValid && b.lineRange().Overlaps(r) {
		b.lineValid = false
	}
}

// Misses returns the number of reads that fetched a line.
func (b *LineBuffer) Misses() uint64 {
	return b.misses
}

func (b *LineBuffer) covers(meta bus.TransferMeta) bool {
	return b.lineValid &&
		meta.Addr.AlignDown(b.lineSize) == b.lineBase &&
		meta.Addr.Offset(b.lineBase)+meta.Size.Bytes() <= b.lineSize.Bytes()
}

func (b *LineBuffer) modeOf(meta bus.TransferMeta) lineMode {
	switch {
	case !b.enabled, meta.IsWrite(), meta.Size.Bytes() >= b.lineSize.Bytes():
		return linePass
	case b.covers(meta):
		return lineHit
	default:
		return lineMiss
	}
}

// Reply implements bus.Slave.
func (b *LineBuffer) Reply(
	ctx *power.Context,
	dp bus.MasterToSlaveDataPhase,
) bus.SlaveToMasterWires {
	meta, ok := b.track.DataPhase()
	if !ok {
		bus.Violate(ctx, b.name, "reply requested without a data phase", dp)
	}

	var r bus.SlaveToMasterWires

	switch b.cur {
	case lineHit:
		r = bus.Success(meta, b.extract(meta))
	case lineMiss:
		r = b.down.Reply(ctx, bus.MasterToSlaveDataPhase{})
		if r.IsSuccess() {
			b.lineBase = meta.Addr.AlignDown(b.lineSize)
			b.line = r.Data
			b.lineValid = true
			r.Data = b.extract(meta)
		}
		r = withMeta(r, meta)
	default:
		r = withMeta(b.down.Reply(ctx, dp), meta)
	}

	b.track.SetLastReply(ctx, r)

	return r
}

func (b *LineBuffer) extract(meta bus.TransferMeta) bus.Data {
	return b.line.Slice(meta.Addr.Offset(b.lineBase), meta.Size.Bytes())
}

// AddrPhase implements bus.Slave.
func (b *LineBuffer) AddrPhase(ctx *power.Context, ap bus.MasterToSlaveAddrPhase) {
	if !b.gate.Enter(ctx, ap.IsAddressValid()) {
		return
	}

	b.track.SetLastAddr(ctx, ap)
	b.next = linePass

	if !ap.IsAddressValid() {
		b.down.AddrPhase(ctx, ap)
		return
	}

	b.next = b.modeOf(ap.Meta)

	switch b.next {
	case lineHit:
		b.down.AddrPhase(ctx, bus.NoSelPhase(ap.ReadyIn))
	case lineMiss:
		wide := ap
		wide.Meta.Addr = ap.Meta.Addr.AlignDown(b.lineSize)
		wide.Meta.Size = b.lineSize
		b.down.AddrPhase(ctx, wide)
	default:
		b.down.AddrPhase(ctx, ap)
	}
}

// Tock commits the cycle.
func (b *LineBuffer) Tock(ctx *power.Context) {
	ap, hadAddr := b.track.PeekAddr()
	res := b.track.Update()

	if res.Advanced && hadAddr && ap.IsAddressValid() {
		b.cur = b.next
		b.count(ap.Meta)
	} else if !res.HasDataPh {
		b.cur = linePass
	}

	b.next = linePass
	b.settle(ctx, b.idle())
}

func (b *LineBuffer) count(meta bus.TransferMeta) {
	switch b.cur {
	case lineHit:
		b.hits++
	case lineMiss:
		b.misses++
	default:
		if meta.IsWrite() {
			b.Invalidate(spanOf(meta))
		}
	}
}

func (b *LineBuffer) lineRange() bus.Range {
	return bus.Range{Start: b.lineBase, Size: uint64(b.lineSize.Bytes())}
}

func spanOf(meta bus.TransferMeta) bus.Range {
	return bus.Range{Start: meta.Addr, Size: uint64(meta.Size.Bytes())}
}

func (b *LineBuffer) idle() bool {
	return !b.track.HasDataPhase()
}

// CanBeGated reports whether no transfer is in flight.
func (b *LineBuffer) CanBeGated() bool {
	return b.idle()
}

// SkippableCycles lets an idle buffer sleep until it is addressed.
func (b *LineBuffer) SkippableCycles() uint64 {
	return skippable(b.idle())
}

var (
	_ bus.Slave       = (*LineBuffer)(nil)
	_ power.Node      = (*LineBuffer)(nil)
	_ power.Gateable  = (*LineBuffer)(nil)
	_ power.Skippable = (*LineBuffer)(nil)
)
