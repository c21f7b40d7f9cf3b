// Package slavedriver turns a component that only understands aligned,
// native-width accesses into a full AHB-Lite slave.
package slavedriver

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/sim/power"
)

// AccessStatus is the verdict of a handler on an access about to happen.
type AccessStatus int

// The access verdicts.
const (
	AccessOk AccessStatus = iota
	AccessWait
	AccessError
)

// AlignedHandler is implemented by memories and peripherals. Every address
// it receives is aligned to the native size, and every Data value is
// exactly one native beat.
type AlignedHandler interface {
	// PreWrite is asked before each write is committed.
	PreWrite(ctx *power.Context, addr bus.Address, size bus.Size) AccessStatus

	// Write commits one native beat.
	Write(ctx *power.Context, addr bus.Address, data bus.Data)

	// Read returns one native beat. Reading must have no side effect on
	// bytes other than the ones requested, so that narrow writes can be done
	// as read-modify-write.
	Read(ctx *power.Context, addr bus.Address) bus.Data
}

// PreReader is implemented by handlers that can stall or refuse reads.
type PreReader interface {
	PreRead(ctx *power.Context, addr bus.Address, size bus.Size) AccessStatus
}

// WriteMode tells when a write becomes visible.
type WriteMode int

// The write modes.
const (
	// Combinational writes are visible in the cycle they complete.
	Combinational WriteMode = iota

	// Registered writes are committed at the tock of the cycle they
	// complete.
	Registered
)

// Config describes the timing and capabilities of a slave.
type Config struct {
	NativeSize bus.Size
	WaitStates int
	WriteMode  WriteMode
	Writable   bool
}
