// Package phase tracks the pipeline of one AHB-Lite connection: which
// transfer owns the data phase, and whether the connection advanced this
// cycle.
package phase

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/sim/power"
)

// Result is what Update learned about the cycle.
type Result struct {
	// Advanced is set when the address phase of the cycle was accepted.
	Advanced bool

	// Finished is set when the outstanding data phase completed.
	Finished bool

	// HasDataPh is set when a data phase is outstanding after the cycle.
	HasDataPh bool
}

// StateTrack records the wires seen on a connection during one cycle and
// folds them into the connection state once per cycle.
type StateTrack struct {
	conn string

	addr    bus.MasterToSlaveAddrPhase
	addrSet bool

	reply    bus.SlaveToMasterWires
	replySet bool

	deny    bool
	denySet bool

	dataPh    bus.TransferMeta
	hasDataPh bool
}

// NewStateTrack creates a tracker for the named connection.
func NewStateTrack(conn string) *StateTrack {
	return &StateTrack{conn: conn}
}

// Conn returns the name of the connection.
func (t *StateTrack) Conn() string {
	return t.conn
}

// SetLastAddr records the address phase of this cycle.
func (t *StateTrack) SetLastAddr(ctx *power.Context, ap bus.MasterToSlaveAddrPhase) {
	if t.addrSet {
		bus.Violate(ctx, t.conn, "address phase driven twice in one cycle",
			t.addr, ap)
	}

	t.addr = ap
	t.addrSet = true
}

// SetLastReply records the data-phase reply of this cycle.
func (t *StateTrack) SetLastReply(ctx *power.Context, r bus.SlaveToMasterWires) {
	if t.replySet {
		bus.Violate(ctx, t.conn, "reply driven twice in one cycle",
			t.reply, r)
	}

	t.reply = r
	t.replySet = true
}

// SetLastDeny records whether the address phase of this cycle was denied.
func (t *StateTrack) SetLastDeny(ctx *power.Context, denied bool) {
	if t.denySet {
		bus.Violate(ctx, t.conn, "grant driven twice in one cycle",
			!t.deny, !denied)
	}

	t.deny = denied
	t.denySet = true
}

// PeekAddr returns the address phase recorded this cycle.
func (t *StateTrack) PeekAddr() (bus.MasterToSlaveAddrPhase, bool) {
	return t.addr, t.addrSet
}

// PeekReply returns the reply recorded this cycle.
func (t *StateTrack) PeekReply() (bus.SlaveToMasterWires, bool) {
	return t.reply, t.replySet
}

// ReadyIn returns the HREADY seen by the connection this cycle, as far as it
// is known from the wires recorded so far.
func (t *StateTrack) ReadyIn() bool {
	if t.addrSet && !t.addr.ReadyIn {
		return false
	}

	if t.replySet && !t.reply.Ready {
		return false
	}

	return true
}

// DataPhase returns the transfer that owns the data phase.
func (t *StateTrack) DataPhase() (bus.TransferMeta, bool) {
	return t.dataPh, t.hasDataPh
}

// HasDataPhase reports whether a data phase is outstanding.
func (t *StateTrack) HasDataPhase() bool {
	return t.hasDataPh
}

// Update folds the wires of the cycle into the connection state and clears
// them for the next cycle. It is called once per cycle, in tock.
func (t *StateTrack) Update() Result {
	readyIn := t.ReadyIn()
	advanced := readyIn && !(t.denySet && t.deny)
	finished := readyIn && t.hasDataPh

	switch {
	case advanced && t.addrSet && t.addr.IsAddressValid():
		t.dataPh = t.addr.Meta
		t.hasDataPh = true
	case readyIn:
		t.dataPh = bus.TransferMeta{}
		t.hasDataPh = false
	}

	t.addr = bus.MasterToSlaveAddrPhase{}
	t.addrSet = false
	t.reply = bus.SlaveToMasterWires{}
	t.replySet = false
	t.deny = false
	t.denySet = false

	return Result{
		Advanced:  advanced,
		Finished:  finished,
		HasDataPh: t.hasDataPh,
	}
}
