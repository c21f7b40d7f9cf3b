package arbitration

import (
	"fmt"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/sim/power"
)

// RoundRobin rotates the grant among its masters. A winner whose address
// phase was not accepted is retried first; otherwise the scan resumes after
// the last accepted winner.
type RoundRobin struct {
	lockState
	masters []bus.MasterTag
	last    int
	pending int
}

// NewRoundRobin creates a round-robin arbiter over the masters, in ring
// order. The first scan starts with the first master.
func NewRoundRobin(masters ...bus.MasterTag) *RoundRobin {
	if len(masters) == 0 {
		panic("arbitration: round robin needs at least one master")
	}

	return &RoundRobin{
		masters: append([]bus.MasterTag(nil), masters...),
		last:    len(masters) - 1,
		pending: -1,
	}
}

// WithLastWinner sets the master the rotation continues after.
func (a *RoundRobin) WithLastWinner(tag bus.MasterTag) *RoundRobin {
	a.last = a.indexOf(tag)
	return a
}

// Masters returns the ring order.
func (a *RoundRobin) Masters() []bus.MasterTag {
	return a.masters
}

func (a *RoundRobin) indexOf(tag bus.MasterTag) int {
	for i, m := range a.masters {
		if m == tag {
			return i
		}
	}

	panic(fmt.Sprintf("arbitration: master %d is not in the ring", tag))
}

// Arbitrate picks the next master in the rotation.
func (a *RoundRobin) Arbitrate(
	_ *power.Context,
	reqs *RequestSet,
) (bus.MasterTag, bool) {
	if w, ok := a.lockedWinner(reqs); ok {
		return w, true
	}

	if a.reserved(reqs) {
		return 0, false
	}

	if a.pending >= 0 && reqs.Requesting(a.masters[a.pending]) {
		return a.masters[a.pending], true
	}

	n := len(a.masters)
	for i := 1; i <= n; i++ {
		m := a.masters[(a.last+i)%n]
		if reqs.Requesting(m) {
			return m, true
		}
	}

	return 0, false
}

// Commit advances the rotation when the winner was accepted and remembers
// it for a retry when it was not.
func (a *RoundRobin) Commit(winner bus.MasterTag, accepted bool) {
	a.commit(winner, accepted)

	idx := a.indexOf(winner)
	if accepted {
		a.last = idx
		a.pending = -1

		return
	}

	a.pending = idx
}
