package stages

import (
	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/phase"
	"github.com/sarchlab/ahbsim/sim/hooking"
	"github.com/sarchlab/ahbsim/sim/power"
)

// Hook positions of an input stage.
var (
	HookPosTransferStart = &hooking.HookPos{Name: "TransferStart"}
	HookPosTransferEnd   = &hooking.HookPos{Name: "TransferEnd"}
	HookPosDeny          = &hooking.HookPos{Name: "Deny"}
)

// TransferEvent is the item of the hooks raised by an input stage.
type TransferEvent struct {
	Stage string
	Tag   bus.MasterTag
	Cycle uint64
	Meta  bus.TransferMeta
	Reply bus.SlaveToMasterWires
}

// InputStage sits behind one master. It makes sure the master sees exactly
// one reply per address phase, answers idle traffic itself and reflects
// denies as wait-states.
//
// The master calls Drive during its tick and Reply during its tock. The
// interconnect calls the remaining methods, in the order ResolveReply,
// AddrPhase, Route, Grant, and finally Tock.
type InputStage struct {
	*hooking.HookableBase

	name    string
	tag     bus.MasterTag
	gate    power.Gate
	granter bus.Granter
	track   *phase.StateTrack

	ap        bus.MasterToSlaveAddrPhase
	dp        bus.MasterToSlaveDataPhase
	driven    bool
	evaluated bool

	downReply bus.SlaveToMasterWires
	routed    int
	routedAP  bus.MasterToSlaveAddrPhase
	granted   bool
	up        bus.SlaveToMasterWires

	down    int
	held    bus.SlaveToMasterWires
	holding bool
}

// NewInputStage creates an input stage for the master with the given tag.
func NewInputStage(name string, tag bus.MasterTag) *InputStage {
	if tag >= bus.MaxMasters {
		panic("stages: master tag out of range")
	}

	s := &InputStage{
		HookableBase: hooking.NewHookableBase(),
		name:         name,
		tag:          tag,
		gate:         power.Gate{ID: power.NoNode},
		track:        phase.NewStateTrack(name),
		down:         -1,
	}
	s.reset()

	return s
}

// Name returns the name of the stage.
func (s *InputStage) Name() string {
	return s.name
}

// Tag returns the tag of the master behind the stage.
func (s *InputStage) Tag() bus.MasterTag {
	return s.tag
}

// BindNode ties the stage to the node of the interconnect that owns it, so
// that a master driving a transfer wakes a sleeping interconnect.
func (s *InputStage) BindNode(id power.NodeID) {
	s.gate.ID = id
}

// SetGranter sets the hook that observes every grant decision.
func (s *InputStage) SetGranter(g bus.Granter) {
	s.granter = g
}

// Drive presents the wires of the master for this cycle. dp carries the
// write data of the outstanding data phase.
func (s *InputStage) Drive(
	ctx *power.Context,
	ap bus.MasterToSlaveAddrPhase,
	dp bus.MasterToSlaveDataPhase,
) {
	if s.driven {
		bus.Violate(ctx, s.name, "master drove its wires twice in one cycle",
			s.ap, ap)
	}

	if s.evaluated {
		bus.Violate(ctx, s.name,
			"master drove its wires after the interconnect evaluated them", ap)
	}

	if !s.gate.Enter(ctx, ap.IsAddressValid() || ap.Lock || !s.Idle()) {
		return
	}

	s.ap = ap
	s.dp = dp
	s.driven = true
}

// Reply returns the reply the master sees this cycle.
func (s *InputStage) Reply() bus.SlaveToMasterWires {
	return s.up
}

// Idle reports whether the master has nothing in flight.
func (s *InputStage) Idle() bool {
	return !s.track.HasDataPhase() && s.down < 0 && !s.holding
}

// Outstanding returns the slave port that owns the downstream data phase.
func (s *InputStage) Outstanding() (int, bool) {
	return s.down, s.down >= 0
}

// Holding reports whether a finished reply waits to be replayed.
func (s *InputStage) Holding() bool {
	return s.holding
}

// ResolveReply settles the data phase of the cycle. downstream is the slave
// owning the downstream data phase, or nil. It returns the ready seen by the
// master's data phase before arbitration is taken into account.
func (s *InputStage) ResolveReply(ctx *power.Context, downstream bus.Slave) bool {
	switch {
	case s.holding:
		s.downReply = s.held
	case s.down >= 0:
		if downstream == nil {
			bus.Violate(ctx, s.name, "outstanding data phase has no slave")
		}

		s.downReply = downstream.Reply(ctx, s.dp)
	default:
		meta, ok := s.track.DataPhase()
		if ok {
			bus.Violate(ctx, s.name, "data phase lost its slave", meta)
		}

		s.downReply = bus.IdleReply()
	}

	return s.downReply.Ready
}

// ReadyIn returns the ready resolved for the data phase of the cycle.
func (s *InputStage) ReadyIn() bool {
	return s.downReply.Ready
}

// AddrPhase returns the address phase driven by the master.
func (s *InputStage) AddrPhase() bus.MasterToSlaveAddrPhase {
	return s.ap
}

// Route records the slave port an address phase was decoded to, with the
// address already normalized.
func (s *InputStage) Route(port int, ap bus.MasterToSlaveAddrPhase) {
	s.routed = port
	s.routedAP = ap
}

// Grant delivers the arbitration result of the cycle and settles the reply
// shown to the master.
func (s *InputStage) Grant(ctx *power.Context, granted bool) {
	s.evaluated = true
	s.granted = granted

	s.up = s.downReply
	s.up.Ready = s.downReply.Ready && granted

	if bus.DebugChecks {
		s.checkBackpressure(ctx)
	}

	ap := s.ap
	ap.ReadyIn = true
	s.track.SetLastAddr(ctx, ap)
	s.track.SetLastReply(ctx, s.up)
	s.track.SetLastDeny(ctx, !granted)

	if !s.ap.IsAddressValid() {
		return
	}

	if s.granter != nil {
		s.granter.Grant(ctx, s.tag, granted)
	}

	if !granted {
		s.invoke(ctx, HookPosDeny, s.routedAP.Meta, s.up)
	}
}

func (s *InputStage) checkBackpressure(ctx *power.Context) {
	if s.up.Ready && (!s.downReply.Ready || !s.granted) {
		bus.Violate(ctx, s.name, "ready passed upstream while held downstream",
			s.downReply, s.up)
	}

	if s.holding && s.down >= 0 {
		bus.Violate(ctx, s.name,
			"replayed reply while the slave still owns the data phase",
			s.held, s.down)
	}
}

// Tock commits the cycle.
func (s *InputStage) Tock(ctx *power.Context) {
	meta, hadDataPh := s.track.DataPhase()
	res := s.track.Update()

	if res.Finished && hadDataPh {
		s.invoke(ctx, HookPosTransferEnd, meta, s.up)
	}

	if s.downReply.Ready {
		switch {
		case s.holding:
			s.holding = !s.granted
		case s.down >= 0:
			s.down = -1
			if !s.granted {
				s.held = s.downReply
				s.holding = true
			}
		}
	}

	if res.Advanced && s.ap.IsAddressValid() {
		if s.routed < 0 {
			bus.Violate(ctx, s.name, "accepted address phase was not routed",
				s.ap)
		}

		s.down = s.routed
		s.invoke(ctx, HookPosTransferStart, s.routedAP.Meta,
			bus.SlaveToMasterWires{})
	}

	s.reset()
}

func (s *InputStage) reset() {
	s.ap = bus.IdlePhase()
	s.dp = bus.MasterToSlaveDataPhase{}
	s.driven = false
	s.evaluated = false
	s.downReply = bus.IdleReply()
	s.routed = -1
	s.routedAP = bus.MasterToSlaveAddrPhase{}
	s.granted = true
	s.up = bus.IdleReply()
}

func (s *InputStage) invoke(
	ctx *power.Context,
	pos *hooking.HookPos,
	meta bus.TransferMeta,
	r bus.SlaveToMasterWires,
) {
	if s.NumHooks() == 0 {
		return
	}

	s.InvokeHook(hooking.HookCtx{
		Domain: s,
		Pos:    pos,
		Item: TransferEvent{
			Stage: s.name,
			Tag:   s.tag,
			Cycle: ctx.Cycle(),
			Meta:  meta,
			Reply: r,
		},
	})
}
