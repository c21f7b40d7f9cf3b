package bus

import "github.com/sarchlab/ahbsim/sim/power"

// Slave is the slave side of one connection. Every cycle, the party driving
// it calls Reply (only while a data phase is outstanding) and then AddrPhase
// exactly once.
type Slave interface {
	// Reply returns the data-phase reply for this cycle. dp carries the
	// write data of a write data phase.
	Reply(ctx *power.Context, dp MasterToSlaveDataPhase) SlaveToMasterWires

	// AddrPhase presents the address-phase wires of this cycle.
	AddrPhase(ctx *power.Context, ap MasterToSlaveAddrPhase)
}

// Granter observes the grant decision made for a master each cycle.
type Granter interface {
	Grant(ctx *power.Context, tag MasterTag, granted bool)
}

// GranterFunc adapts a function to the Granter interface.
type GranterFunc func(ctx *power.Context, tag MasterTag, granted bool)

// Grant calls f.
func (f GranterFunc) Grant(ctx *power.Context, tag MasterTag, granted bool) {
	f(ctx, tag, granted)
}
