package bus

import "fmt"

// Size is the width of a single transfer beat (HSIZE).
type Size uint8

// The transfer sizes.
const (
	SizeByte Size = iota
	SizeHalfword
	SizeWord
	SizeDoubleword
	SizeQuadword
)

// Bytes returns the number of bytes in a beat.
func (s Size) Bytes() uint32 {
	s.MustBeValid()
	return 1 << s
}

// IsValid reports whether the size is one of the defined sizes.
func (s Size) IsValid() bool {
	return s <= SizeQuadword
}

// MustBeValid panics on an undefined size.
func (s Size) MustBeValid() {
	if !s.IsValid() {
		panic(fmt.Sprintf("bus: invalid transfer size %d", uint8(s)))
	}
}

// SizeOf returns the size whose beat holds n bytes.
func SizeOf(n uint32) (Size, bool) {
	switch n {
	case 1:
		return SizeByte, true
	case 2:
		return SizeHalfword, true
	case 4:
		return SizeWord, true
	case 8:
		return SizeDoubleword, true
	case 16:
		return SizeQuadword, true
	default:
		return 0, false
	}
}

func (s Size) String() string {
	switch s {
	case SizeByte:
		return "Byte"
	case SizeHalfword:
		return "Halfword"
	case SizeWord:
		return "Word"
	case SizeDoubleword:
		return "Doubleword"
	case SizeQuadword:
		return "Quadword"
	default:
		return fmt.Sprintf("Size(%d)", uint8(s))
	}
}

// Direction tells reads from writes.
type Direction uint8

// The directions.
const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	if d == Write {
		return "Write"
	}

	return "Read"
}

// Burst is the burst type of a transfer (HBURST).
type Burst uint8

// The burst types.
const (
	Single Burst = iota
	Incr
	Wrap4
	Incr4
	Wrap8
	Incr8
	Wrap16
	Incr16
)

// MasterTag identifies a master. Each SoC enumerates its masters as a small
// closed set below MaxMasters.
type MasterTag uint8

// MaxMasters bounds the number of masters on one interconnect.
const MaxMasters = 8

// TransferMeta describes one transfer.
type TransferMeta struct {
	Addr  Address
	Size  Size
	Dir   Direction
	Burst Burst
	Tag   MasterTag
}

// IsWrite reports whether the transfer writes.
func (m TransferMeta) IsWrite() bool {
	return m.Dir == Write
}

func (m TransferMeta) String() string {
	return fmt.Sprintf("%s %s @%s by M%d", m.Dir, m.Size, m.Addr, m.Tag)
}

// TransferKind is the HTRANS value of an address phase, with NoSel standing
// for a slave that is not selected at all.
type TransferKind uint8

// The transfer kinds.
const (
	NoSel TransferKind = iota
	Idle
	Seq
	NonSeq
)

func (k TransferKind) String() string {
	switch k {
	case NoSel:
		return "NoSel"
	case Idle:
		return "Idle"
	case Seq:
		return "Seq"
	case NonSeq:
		return "NonSeq"
	default:
		return fmt.Sprintf("TransferKind(%d)", uint8(k))
	}
}

// MasterToSlaveAddrPhase carries the address-phase wires of one cycle.
type MasterToSlaveAddrPhase struct {
	Kind    TransferKind
	Meta    TransferMeta
	Lock    bool
	ReadyIn bool
}

// IsAddressValid reports whether the phase starts a transfer.
func (ap MasterToSlaveAddrPhase) IsAddressValid() bool {
	return ap.Kind == Seq || ap.Kind == NonSeq
}

func (ap MasterToSlaveAddrPhase) String() string {
	if !ap.IsAddressValid() {
		return fmt.Sprintf("{%s lock=%t ready=%t}", ap.Kind, ap.Lock, ap.ReadyIn)
	}

	return fmt.Sprintf("{%s %s lock=%t ready=%t}",
		ap.Kind, ap.Meta, ap.Lock, ap.ReadyIn)
}

// NoSelPhase returns an address phase that selects nothing.
func NoSelPhase(readyIn bool) MasterToSlaveAddrPhase {
	return MasterToSlaveAddrPhase{Kind: NoSel, ReadyIn: readyIn}
}

// IdlePhase returns an idle address phase.
func IdlePhase() MasterToSlaveAddrPhase {
	return MasterToSlaveAddrPhase{Kind: Idle}
}

// NonSeqPhase returns the address phase that starts a single transfer.
func NonSeqPhase(meta TransferMeta) MasterToSlaveAddrPhase {
	return MasterToSlaveAddrPhase{Kind: NonSeq, Meta: meta}
}

// MasterToSlaveDataPhase carries the write data of a data phase.
type MasterToSlaveDataPhase struct {
	Data Data
}
