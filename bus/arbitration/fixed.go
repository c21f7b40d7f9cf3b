package arbitration

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/sim/power"
)

// Fixed grants the requesting master that comes first in a fixed priority
// order.
type Fixed struct {
	lockState
	order []bus.MasterTag
}

// NewFixed creates a fixed-priority arbiter. The first master has the
// highest priority.
func NewFixed(order ...bus.MasterTag) *Fixed {
	return &Fixed{order: append([]bus.MasterTag(nil), order...)}
}

// Masters returns the priority order.
func (a *Fixed) Masters() []bus.MasterTag {
	return a.order
}

// Arbitrate picks the highest-priority requester, unless a locked sequence
// holds the port.
func (a *Fixed) Arbitrate(
	_ *power.Context,
	reqs *RequestSet,
) (bus.MasterTag, bool) {
	if w, ok := a.lockedWinner(reqs); ok {
		return w, true
	}

	if a.reserved(reqs) {
		return 0, false
	}

	for _, m := range a.order {
		if reqs.Requesting(m) {
			return m, true
		}
	}

	return 0, false
}

// Commit records the lock holder.
func (a *Fixed) Commit(winner bus.MasterTag, accepted bool) {
	a.commit(winner, accepted)
}
