// Package arbitration decides which master drives a shared slave port each
// cycle.
package arbitration

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/sim/power"
)

// Request is what one master presents to an arbiter in a cycle.
type Request struct {
	Requesting bool
	Addr       bus.MasterToSlaveAddrPhase
}

// RequestSet holds the requests of every master for one cycle. It is built
// fresh each cycle.
type RequestSet struct {
	reqs [bus.MaxMasters]Request
	held [bus.MaxMasters]bool
}

// Add registers the address phase of a master as a request.
func (s *RequestSet) Add(tag bus.MasterTag, ap bus.MasterToSlaveAddrPhase) {
	s.reqs[tag] = Request{Requesting: true, Addr: ap}
}

// HoldLock records that a master drives an idle address phase with the lock
// asserted, keeping a locked sequence open between its transfers.
func (s *RequestSet) HoldLock(tag bus.MasterTag) {
	s.held[tag] = true
}

// HoldsLock reports whether a master keeps the lock without requesting.
func (s *RequestSet) HoldsLock(tag bus.MasterTag) bool {
	return s.held[tag]
}

// Get returns the request of a master.
func (s *RequestSet) Get(tag bus.MasterTag) Request {
	return s.reqs[tag]
}

// Requesting reports whether a master requests this cycle.
func (s *RequestSet) Requesting(tag bus.MasterTag) bool {
	return s.reqs[tag].Requesting
}

// Requesters returns the requesting masters in tag order.
func (s *RequestSet) Requesters() []bus.MasterTag {
	var out []bus.MasterTag

	for i := range s.reqs {
		if s.reqs[i].Requesting {
			out = append(out, bus.MasterTag(i))
		}
	}

	return out
}

// Arbiter picks the master granted a slave port.
type Arbiter interface {
	// Arbitrate picks the master to grant this cycle.
	Arbitrate(ctx *power.Context, reqs *RequestSet) (bus.MasterTag, bool)

	// Commit reports whether the granted address phase was accepted by the
	// port this cycle.
	Commit(winner bus.MasterTag, accepted bool)
}

// MasterLister is implemented by arbiters that serve a fixed set of masters.
type MasterLister interface {
	Masters() []bus.MasterTag
}

// lockState keeps a master on the port while its address phases assert the
// lock.
type lockState struct {
	holder    bus.MasterTag
	hasHolder bool
}

func (l *lockState) lockedWinner(reqs *RequestSet) (bus.MasterTag, bool) {
	if !l.hasHolder {
		return 0, false
	}

	req := reqs.Get(l.holder)
	if req.Requesting && req.Addr.Lock {
		return l.holder, true
	}

	return 0, false
}

// reserved reports whether the lock holder idles with the lock asserted.
// No other master may be granted then.
func (l *lockState) reserved(reqs *RequestSet) bool {
	return l.hasHolder &&
		!reqs.Requesting(l.holder) &&
		reqs.HoldsLock(l.holder)
}

func (l *lockState) commit(winner bus.MasterTag, accepted bool) {
	if accepted {
		l.holder = winner
		l.hasHolder = true
	}
}
