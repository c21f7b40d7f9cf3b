package arbitration

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/sim/power"
)

// None serves a port that only one master can reach. Two requesters in the
// same cycle is a wiring bug.
type None struct {
	conn string
}

// NewNone creates an arbiter for the named port.
func NewNone(conn string) *None {
	return &None{conn: conn}
}

// Arbitrate grants the only requester.
func (a *None) Arbitrate(
	ctx *power.Context,
	reqs *RequestSet,
) (bus.MasterTag, bool) {
	requesters := reqs.Requesters()

	switch len(requesters) {
	case 0:
		return 0, false
	case 1:
		return requesters[0], true
	default:
		wires := make([]any, 0, len(requesters))
		for _, m := range requesters {
			wires = append(wires, reqs.Get(m).Addr)
		}

		bus.Violate(ctx, a.conn,
			"contention on a port without an arbiter", wires...)

		return 0, false
	}
}

// Commit does nothing.
func (a *None) Commit(bus.MasterTag, bool) {}
