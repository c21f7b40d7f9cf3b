package interconnect

import (
	"fmt"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/arbitration"
	"github.com/sarchlab/ahbsim/bus/stages"
	"github.com/sarchlab/ahbsim/sim/power"
)

// SlavePort describes one slave of the matrix.
type SlavePort struct {
	Tag   SlaveTag
	Slave bus.Slave

	// Arbiter may be nil when a single master reaches the port.
	Arbiter arbitration.Arbiter

	// Masters lists the masters wired to the port. Empty means all of them.
	// The NoMatch port is always reachable from every master.
	Masters []bus.MasterTag
}

type port struct {
	tag     SlaveTag
	slave   bus.Slave
	arbiter arbitration.Arbiter
	wired   [bus.MaxMasters]bool

	reqs      arbitration.RequestSet
	ready     bool
	winner    bus.MasterTag
	hasWinner bool
	accepted  bool

	owner    bus.MasterTag
	hasOwner bool
}

// Comp is a bus matrix. Every master reaches it through an InputStage, and
// every slave port has its own arbiter, so masters heading for different
// slaves proceed in parallel.
type Comp struct {
	name    string
	node    power.NodeID
	decoder Decoder

	stages  []*stages.InputStage
	byTag   [bus.MaxMasters]*stages.InputStage
	routes  [bus.MaxMasters]int
	last    [bus.MaxMasters]int
	ports   []*port
	portOf  map[SlaveTag]int
	noMatch int

	cycles     uint64
	idleCycles uint64
}

// Name returns the name of the interconnect.
func (c *Comp) Name() string {
	return c.name
}

// Stage returns the input stage of a master.
func (c *Comp) Stage(tag bus.MasterTag) *stages.InputStage {
	if tag >= bus.MaxMasters || c.byTag[tag] == nil {
		panic(fmt.Sprintf("interconnect: %s has no master M%d", c.name, tag))
	}

	return c.byTag[tag]
}

// Stages returns the input stages in the order the masters were added.
func (c *Comp) Stages() []*stages.InputStage {
	return append([]*stages.InputStage(nil), c.stages...)
}

// Slave returns the slave wired to a port.
func (c *Comp) Slave(tag SlaveTag) (bus.Slave, bool) {
	i, ok := c.portOf[tag]
	if !ok {
		return nil, false
	}

	return c.ports[i].slave, true
}

// Decoder returns the address decoder.
func (c *Comp) Decoder() Decoder {
	return c.decoder
}

// Cycles returns the number of cycles the interconnect has been clocked,
// skipped cycles included.
func (c *Comp) Cycles() uint64 {
	return c.cycles
}

// IdleCycles returns the number of cycles the interconnect carried nothing.
func (c *Comp) IdleCycles() uint64 {
	return c.idleCycles
}

// Tick evaluates the matrix for one cycle.
func (c *Comp) Tick(ctx *power.Context) {
	c.resolveReplies(ctx)
	c.computeReadiness()
	c.route()
	c.arbitrate(ctx)
	c.grant(ctx)
}

func (c *Comp) resolveReplies(ctx *power.Context) {
	for _, s := range c.stages {
		var down bus.Slave
		if i, ok := s.Outstanding(); ok {
			down = c.ports[i].slave
		}

		s.ResolveReply(ctx, down)
	}
}

// computeReadiness decides, for each port, whether the data phase in
// progress on it ends this cycle. Only then may a new address phase be
// accepted.
func (c *Comp) computeReadiness() {
	for _, p := range c.ports {
		p.ready = !p.hasOwner || c.byTag[p.owner].ReadyIn()
	}
}

func (c *Comp) route() {
	for _, p := range c.ports {
		p.reqs = arbitration.RequestSet{}
	}

	for _, s := range c.stages {
		tag := s.Tag()
		c.routes[tag] = -1

		ap := s.AddrPhase()
		if !ap.IsAddressValid() {
			if i := c.last[tag]; ap.Lock && i >= 0 {
				c.ports[i].reqs.HoldLock(tag)
			}

			continue
		}

		i := c.decode(tag, &ap)
		ap.Meta.Tag = tag

		c.routes[tag] = i
		s.Route(i, ap)
		c.ports[i].reqs.Add(tag, ap)
	}
}

func (c *Comp) decode(m bus.MasterTag, ap *bus.MasterToSlaveAddrPhase) int {
	tag, addr := c.decoder.Decode(ap.Meta.Addr)

	i, ok := c.portOf[tag]
	if !ok || !c.ports[i].wired[m] {
		return c.noMatch
	}

	ap.Meta.Addr = addr

	return i
}

func (c *Comp) arbitrate(ctx *power.Context) {
	for _, p := range c.ports {
		p.hasWinner = false
		p.accepted = false

		if !p.ready {
			p.slave.AddrPhase(ctx, bus.NoSelPhase(false))
			continue
		}

		w, ok := p.arbiter.Arbitrate(ctx, &p.reqs)
		if !ok {
			p.slave.AddrPhase(ctx, bus.NoSelPhase(true))
			continue
		}

		if !p.reqs.Requesting(w) {
			bus.Violate(ctx, c.name+"."+p.tag.String(),
				"arbiter granted a master that does not request", w)
		}

		p.winner = w
		p.hasWinner = true
		p.accepted = c.byTag[w].ReadyIn()

		if !p.accepted {
			p.slave.AddrPhase(ctx, bus.NoSelPhase(true))
			continue
		}

		ap := p.reqs.Get(w).Addr
		ap.ReadyIn = true
		p.slave.AddrPhase(ctx, ap)
	}
}

func (c *Comp) grant(ctx *power.Context) {
	for _, s := range c.stages {
		tag := s.Tag()
		granted := true

		if i := c.routes[tag]; i >= 0 {
			p := c.ports[i]
			granted = p.hasWinner && p.winner == tag
		}

		s.Grant(ctx, granted)
	}
}

// Tock commits the data-phase ownership and arbiter state of the cycle.
func (c *Comp) Tock(ctx *power.Context) {
	c.cycles++

	for i, p := range c.ports {
		if p.hasWinner {
			p.arbiter.Commit(p.winner, p.accepted)
		}

		if p.ready {
			p.hasOwner = false
		}

		if p.hasWinner && p.accepted {
			p.owner = p.winner
			p.hasOwner = true
			c.last[p.winner] = i
		}
	}

	for _, s := range c.stages {
		s.Tock(ctx)
	}

	if bus.DebugChecks {
		c.checkOwnership(ctx)
	}

	idle := c.Idle()
	if idle {
		c.idleCycles++
	}

	if c.node == power.NoNode {
		return
	}

	if idle {
		ctx.SetPowerState(c.node, power.Gated)
	} else {
		ctx.SetPowerState(c.node, power.Active)
	}
}

func (c *Comp) checkOwnership(ctx *power.Context) {
	for _, s := range c.stages {
		i, ok := s.Outstanding()
		if !ok {
			continue
		}

		p := c.ports[i]
		if !p.hasOwner || p.owner != s.Tag() {
			bus.Violate(ctx, s.Name(),
				"data phase is not owned by the port it was issued to",
				p.tag, p.owner)
		}
	}
}

// Idle reports whether no transfer is in flight anywhere in the matrix.
func (c *Comp) Idle() bool {
	for _, p := range c.ports {
		if p.hasOwner {
			return false
		}
	}

	for _, s := range c.stages {
		if !s.Idle() {
			return false
		}
	}

	return true
}

// CanBeGated reports whether the interconnect is idle.
func (c *Comp) CanBeGated() bool {
	return c.Idle()
}

// SkippableCycles returns SkipForever while idle. The interconnect sleeps
// until a master drives a transfer.
func (c *Comp) SkippableCycles() uint64 {
	if c.Idle() {
		return power.SkipForever
	}

	return 0
}

// CatchUp accounts for skipped idle cycles.
func (c *Comp) CatchUp(_ *power.Context, n uint64) {
	c.cycles += n
	c.idleCycles += n
}

var _ power.Skippable = (*Comp)(nil)
