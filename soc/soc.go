// Package soc assembles a microcontroller bus fabric: three masters, a bus
// matrix, flash behind a line buffer, SRAM behind a write buffer, ROM,
// general purpose RAM that can be switched to cache RAM, a countdown timer on
// the private peripheral bus, and a bus-error responder.
package soc

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/arbitration"
	"github.com/sarchlab/ahbsim/bus/busagent"
	"github.com/sarchlab/ahbsim/bus/interconnect"
	"github.com/sarchlab/ahbsim/bus/stages"
	"github.com/sarchlab/ahbsim/mem/memory"
	"github.com/sarchlab/ahbsim/periph/countdown"
	"github.com/sarchlab/ahbsim/sim/hooking"
	"github.com/sarchlab/ahbsim/sim/power"
	"github.com/sarchlab/ahbsim/sim/timing"
)

// SoC is an assembled system.
type SoC struct {
	name   string
	cfg    Config
	engine *timing.SerialEngine
	table  *power.Table
	sched  *power.Scheduler

	amap      *interconnect.AddressMap
	cacheMode atomic.Bool

	Matrix  *interconnect.Comp
	Masters [NumMasters]*busagent.Agent

	Flash           *memory.Comp
	FlashLineBuffer *stages.LineBuffer
	SRAM            *memory.Comp
	SRAMWriteBuffer *stages.WriteBuffer
	ROM             *memory.Comp
	GPRAM           *memory.Comp
	CacheRAM        *memory.Comp
	PPBAligner      *stages.Aligner
	SysTick         *countdown.Timer
	BusError        *interconnect.ErrorSlave
}

// Builder can build SoCs.
type Builder struct {
	cfg     Config
	engine  *timing.SerialEngine
	granter bus.Granter
}

// MakeBuilder returns a builder for the default configuration.
func MakeBuilder() Builder {
	return Builder{cfg: DefaultConfig()}
}

// WithConfig sets the configuration.
func (b Builder) WithConfig(cfg Config) Builder {
	b.cfg = cfg
	return b
}

// WithEngine sets the event engine. A fresh engine is created otherwise.
func (b Builder) WithEngine(e *timing.SerialEngine) Builder {
	b.engine = e
	return b
}

// WithGranter sets a hook that observes every grant decision of the matrix.
func (b Builder) WithGranter(g bus.Granter) Builder {
	b.granter = g
	return b
}

// Build creates the SoC.
func (b Builder) Build(name string) (*SoC, error) {
	cfg := b.cfg
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "soc %s", name)
	}

	clock, err := timing.NewClock(timing.FreqInHz(cfg.FreqMHz)*timing.MHz, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "soc %s", name)
	}

	s := &SoC{
		name:   name,
		cfg:    cfg,
		engine: b.engine,
		table:  power.NewTable(),
	}

	if s.engine == nil {
		s.engine = timing.NewSerialEngine()
	}

	if cfg.VerifySkips {
		s.table.EnableSkipVerification()
	}

	s.sched = power.NewScheduler(s.engine, clock, s.table)

	if err := s.buildSlaves(); err != nil {
		return nil, errors.Wrapf(err, "soc %s", name)
	}

	s.amap = s.addressMap()
	if err := s.amap.Validate(); err != nil {
		return nil, errors.Wrapf(err, "soc %s", name)
	}

	mb := interconnect.MakeBuilder().
		WithDecoder(interconnect.DecoderFunc(s.decode)).
		WithNodeID(NodeMatrix).
		WithGranter(b.granter)
	for i := 0; i < NumMasters; i++ {
		mb = mb.WithMaster(masterNames[i], bus.MasterTag(i))
	}

	for _, p := range s.slavePorts() {
		mb = mb.WithSlave(p)
	}

	if err := mb.Validate(); err != nil {
		return nil, errors.Wrapf(err, "soc %s", name)
	}

	s.Matrix = mb.Build(name + ".Matrix")

	for i := 0; i < NumMasters; i++ {
		tag := bus.MasterTag(i)
		s.Masters[i] = busagent.NewAgent(
			name+"."+masterNames[i], masterNodes[i], s.Matrix.Stage(tag))
	}

	s.register()

	return s, nil
}

func (s *SoC) buildSlaves() error {
	cfg := s.cfg

	policy, err := cfg.writePolicy()
	if err != nil {
		return err
	}

	s.Flash = memory.MakeBuilder().
		WithRange(bus.Address(cfg.Flash.Base), cfg.Flash.Size).
		WithNativeSize(cfg.lineSize()).
		WithWaitStates(cfg.Flash.WaitStates).
		WithWritable(false).
		WithFill(0xff).
		WithNodeID(NodeFlash).
		Build(s.name + ".Flash")
	s.FlashLineBuffer = stages.NewLineBuffer(
		s.name+".FlashLineBuffer", s.Flash, cfg.lineSize())
	s.FlashLineBuffer.BindNode(NodeFlashLineBuffer)
	s.FlashLineBuffer.SetEnabled(cfg.LineBuffer)

	s.SRAM = memory.MakeBuilder().
		WithRange(bus.Address(cfg.SRAM.Base), cfg.SRAM.Size).
		WithWaitStates(cfg.SRAM.WaitStates).
		WithNodeID(NodeSRAM).
		Build(s.name + ".SRAM")
	s.SRAMWriteBuffer = stages.NewWriteBuffer(
		s.name+".SRAMWriteBuffer", s.SRAM, policy, cfg.SRAM.Range())
	s.SRAMWriteBuffer.BindNode(NodeSRAMWriteBuffer)

	s.ROM = memory.MakeBuilder().
		WithRange(bus.Address(cfg.ROM.Base), cfg.ROM.Size).
		WithWaitStates(cfg.ROM.WaitStates).
		WithWritable(false).
		WithNodeID(NodeROM).
		Build(s.name + ".ROM")

	s.GPRAM = memory.MakeBuilder().
		WithRange(bus.Address(cfg.GPRAM.Base), cfg.GPRAM.Size).
		WithWaitStates(cfg.GPRAM.WaitStates).
		WithNodeID(NodeGPRAM).
		Build(s.name + ".GPRAM")
	s.CacheRAM = memory.MakeBuilder().
		WithRange(bus.Address(cfg.CacheRAM.Base), cfg.CacheRAM.Size).
		WithWaitStates(cfg.CacheRAM.WaitStates).
		WithNodeID(NodeCacheRAM).
		Build(s.name + ".CacheRAM")

	s.SysTick = countdown.MakeBuilder().
		WithBase(bus.Address(cfg.SysTickBase)).
		WithNodeID(NodeSysTick).
		Build(s.name + ".SysTick")
	s.PPBAligner = stages.NewAligner(s.name+".PPBAligner", s.SysTick,
		stages.AlignRule{Range: s.ppbRange(), Policy: stages.StronglyOrdered})
	s.PPBAligner.BindNode(NodePPBAligner)

	s.BusError = interconnect.NewErrorSlave(s.name + ".BusError")
	s.BusError.BindNode(NodeBusError)

	return nil
}

func (s *SoC) ppbRange() bus.Range {
	return bus.Range{Start: bus.Address(s.cfg.PPBBase), Size: s.cfg.PPBSize}
}

func (s *SoC) addressMap() *interconnect.AddressMap {
	cfg := s.cfg

	m := interconnect.NewAddressMap().
		Map(SlaveFlash, bus.Address(cfg.Flash.Base), cfg.Flash.Size).
		Map(SlaveROM, bus.Address(cfg.ROM.Base), cfg.ROM.Size).
		Map(SlaveSRAM, bus.Address(cfg.SRAM.Base), cfg.SRAM.Size).
		Map(SlaveGPRAM, bus.Address(cfg.GPRAM.Base), cfg.GPRAM.Size).
		Map(SlavePPB, bus.Address(cfg.PPBBase), cfg.PPBSize)

	if cfg.FlashAlias != cfg.Flash.Base {
		m.Alias(SlaveFlash, bus.Address(cfg.FlashAlias), cfg.Flash.Size,
			bus.Address(cfg.Flash.Base))
	}

	return m
}

// decode routes the GPRAM window to the cache RAM while cache mode is on.
func (s *SoC) decode(addr bus.Address) (interconnect.SlaveTag, bus.Address) {
	tag, norm := s.amap.Decode(addr)
	if tag == SlaveGPRAM && s.cacheMode.Load() {
		tag = SlaveCacheRAM
	}

	return tag, norm
}

func (s *SoC) slavePorts() []interconnect.SlavePort {
	all := []bus.MasterTag{MasterCode, MasterSys, MasterDMA}
	code := []bus.MasterTag{MasterCode, MasterSys}

	port := func(
		tag interconnect.SlaveTag,
		slave bus.Slave,
		masters []bus.MasterTag,
	) interconnect.SlavePort {
		return interconnect.SlavePort{
			Tag:     tag,
			Slave:   slave,
			Arbiter: s.arbiter(masters),
			Masters: masters,
		}
	}

	return []interconnect.SlavePort{
		port(SlaveFlash, s.FlashLineBuffer, all),
		port(SlaveSRAM, s.SRAMWriteBuffer, all),
		port(SlaveROM, s.ROM, code),
		port(SlaveGPRAM, s.GPRAM, all),
		port(SlaveCacheRAM, s.CacheRAM, all),
		port(SlavePPB, s.PPBAligner, []bus.MasterTag{MasterSys}),
		port(interconnect.NoMatch, s.BusError, all),
	}
}

func (s *SoC) arbiter(masters []bus.MasterTag) arbitration.Arbiter {
	if len(masters) == 1 {
		return nil
	}

	if s.cfg.Arbitration == "fixed" {
		var order []bus.MasterTag
		for _, m := range []bus.MasterTag{MasterSys, MasterCode, MasterDMA} {
			for _, w := range masters {
				if w == m {
					order = append(order, m)
				}
			}
		}

		return arbitration.NewFixed(order...)
	}

	return arbitration.NewRoundRobin(masters...)
}

func (s *SoC) register() {
	nodes := []struct {
		id   power.NodeID
		name string
		node power.Node
	}{
		{NodeMasterCode, "Code", s.Masters[MasterCode]},
		{NodeMasterSys, "Sys", s.Masters[MasterSys]},
		{NodeMasterDMA, "DMA", s.Masters[MasterDMA]},
		{NodeMatrix, "Matrix", s.Matrix},
		{NodeFlashLineBuffer, "FlashLineBuffer", s.FlashLineBuffer},
		{NodeSRAMWriteBuffer, "SRAMWriteBuffer", s.SRAMWriteBuffer},
		{NodePPBAligner, "PPBAligner", s.PPBAligner},
		{NodeFlash, "Flash", s.Flash},
		{NodeSRAM, "SRAM", s.SRAM},
		{NodeROM, "ROM", s.ROM},
		{NodeGPRAM, "GPRAM", s.GPRAM},
		{NodeCacheRAM, "CacheRAM", s.CacheRAM},
		{NodeSysTick, "SysTick", s.SysTick},
		{NodeBusError, "BusError", s.BusError},
	}

	for _, n := range nodes {
		s.sched.Register(n.id, n.name, n.node)
	}
}

// Name returns the name of the SoC.
func (s *SoC) Name() string {
	return s.name
}

// Config returns the configuration the SoC was built from.
func (s *SoC) Config() Config {
	return s.cfg
}

// Engine returns the event engine.
func (s *SoC) Engine() *timing.SerialEngine {
	return s.engine
}

// Table returns the power table.
func (s *SoC) Table() *power.Table {
	return s.table
}

// Scheduler returns the clock scheduler.
func (s *SoC) Scheduler() *power.Scheduler {
	return s.sched
}

// Components returns the named nodes of the SoC, in node order.
func (s *SoC) Components() []hooking.Named {
	comps := make([]hooking.Named, 0, NumNodes)
	for id := power.NodeID(0); int(id) < s.table.Len(); id++ {
		if c, ok := s.table.Node(id).(hooking.Named); ok {
			comps = append(comps, c)
		}
	}

	return comps
}

// AddressMap returns the address map of the matrix.
func (s *SoC) AddressMap() *interconnect.AddressMap {
	return s.amap
}

// SetCacheMode switches the GPRAM window between the general purpose RAM and
// the cache RAM. It takes effect with the next address phase.
func (s *SoC) SetCacheMode(on bool) {
	s.cacheMode.Store(on)
}

// CacheMode reports whether the GPRAM window addresses the cache RAM.
func (s *SoC) CacheMode() bool {
	return s.cacheMode.Load()
}

// Submit hands transfers to a master. The master is woken to issue them.
func (s *SoC) Submit(tag bus.MasterTag, ts ...busagent.Transfer) {
	s.sched.InjectWakeup(masterNodes[tag], ts)
}

// Run simulates until every node is asleep.
func (s *SoC) Run() error {
	s.sched.Start()
	return s.engine.Run()
}

// RunThrough simulates up to and including the given cycle.
func (s *SoC) RunThrough(cycle uint64) error {
	s.sched.Start()
	return s.sched.RunThrough(cycle)
}
