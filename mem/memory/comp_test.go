package memory

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/slavedriver"
	"github.com/sarchlab/ahbsim/sim/power"
	"github.com/sarchlab/ahbsim/sim/timing"
)

func nonSeq(addr bus.Address, size bus.Size, dir bus.Direction) bus.MasterToSlaveAddrPhase {
	ap := bus.NonSeqPhase(bus.TransferMeta{Addr: addr, Size: size, Dir: dir})
	ap.ReadyIn = true

	return ap
}

// busCycle plays the master side of one cycle against the memory.
func busCycle(
	ctx *power.Context,
	m *Comp,
	outstanding bool,
	ap bus.MasterToSlaveAddrPhase,
	wdata bus.Data,
) bus.SlaveToMasterWires {
	r := bus.IdleReply()
	if outstanding {
		r = m.Reply(ctx, bus.MasterToSlaveDataPhase{Data: wdata})
		ap.ReadyIn = r.Ready
	}

	m.AddrPhase(ctx, ap)
	m.Tock(ctx)

	return r
}

var _ = Describe("Comp", func() {
	var (
		ctx *power.Context
		m   *Comp
	)

	BeforeEach(func() {
		ctx = power.NewContext(nil, nil)
		m = MakeBuilder().
			WithRange(0x2000_0000, 0x1000).
			WithWaitStates(0).
			Build("SRAM")
	})

	It("should write and read back a word over the bus", func() {
		busCycle(ctx, m, false,
			nonSeq(0x2000_0010, bus.SizeWord, bus.Write), bus.Data{})
		r := busCycle(ctx, m, true,
			nonSeq(0x2000_0010, bus.SizeWord, bus.Read),
			bus.DataFromUint32(0xcafe_f00d, bus.SizeWord))
		Expect(r.IsSuccess()).To(BeTrue())

		r = busCycle(ctx, m, true, bus.IdlePhase(), bus.Data{})
		Expect(r.IsSuccess()).To(BeTrue())
		Expect(r.Data.Uint32()).To(Equal(uint32(0xcafe_f00d)))
	})

	It("should expose bus writes to the host", func() {
		busCycle(ctx, m, false,
			nonSeq(0x2000_0021, bus.SizeByte, bus.Write), bus.Data{})
		busCycle(ctx, m, true, bus.IdlePhase(),
			bus.DataFromUint32(0xab, bus.SizeByte))

		b, err := m.ReadMemory(0x2000_0020, 4)
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(Equal([]byte{0, 0xab, 0, 0}))
	})

	It("should serve host writes over the bus", func() {
		Expect(m.WriteMemory(0x2000_0100, []byte{1, 2, 3, 4})).To(Succeed())

		busCycle(ctx, m, false,
			nonSeq(0x2000_0102, bus.SizeHalfword, bus.Read), bus.Data{})
		r := busCycle(ctx, m, true, bus.IdlePhase(), bus.Data{})

		Expect(r.Data.Bytes()).To(Equal([]byte{3, 4}))
	})

	It("should refuse host accesses outside its range", func() {
		Expect(m.WriteMemory(0x2000_0ffe, []byte{1, 2, 3})).ToNot(Succeed())

		_, err := m.ReadMemory(0x1fff_fffc, 4)
		Expect(err).To(HaveOccurred())
	})

	It("should show registered writes before they are committed", func() {
		m = MakeBuilder().
			WithRange(0x2000_0000, 0x1000).
			WithWriteMode(slavedriver.Registered).
			Build("SRAM")

		busCycle(ctx, m, false,
			nonSeq(0x2000_0004, bus.SizeWord, bus.Write), bus.Data{})
		r := m.Reply(ctx, bus.MasterToSlaveDataPhase{
			Data: bus.DataFromUint32(0x1122_3344, bus.SizeWord),
		})
		Expect(r.IsSuccess()).To(BeTrue())

		b, err := m.ReadMemory(0x2000_0004, 4)
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(Equal([]byte{0x44, 0x33, 0x22, 0x11}))

		stored, _ := m.Storage().Read(4, 4)
		Expect(stored).To(Equal([]byte{0, 0, 0, 0}))
	})

	It("should answer writes to a read-only memory with an error", func() {
		rom := MakeBuilder().
			WithRange(0x1fff_0000, 0x100).
			WithWritable(false).
			Build("ROM")

		busCycle(ctx, rom, false,
			nonSeq(0x1fff_0000, bus.SizeWord, bus.Write), bus.Data{})
		r := busCycle(ctx, rom, true, bus.IdlePhase(),
			bus.DataFromUint32(1, bus.SizeWord))

		Expect(r.Resp).To(Equal(bus.Error))
		Expect(r.Ready).To(BeFalse())

		r = busCycle(ctx, rom, true, bus.IdlePhase(), bus.Data{})
		Expect(r.Resp).To(Equal(bus.Error))
		Expect(r.Ready).To(BeTrue())
	})

	It("should read erased flash as all ones", func() {
		flash := MakeBuilder().
			WithRange(0x0800_0000, 0x1000).
			WithNativeSize(bus.SizeQuadword).
			WithFill(0xff).
			Build("Flash")

		busCycle(ctx, flash, false,
			nonSeq(0x0800_0040, bus.SizeWord, bus.Read), bus.Data{})
		r := busCycle(ctx, flash, true, bus.IdlePhase(), bus.Data{})

		Expect(r.Data.Uint32()).To(Equal(uint32(0xffff_ffff)))
	})
})

var _ = Describe("Comp on the clock tree", func() {
	const (
		nodeMaster power.NodeID = iota
		nodeMemory
	)

	var (
		engine *timing.SerialEngine
		sched  *power.Scheduler
		m      *Comp
		reply  bus.SlaveToMasterWires
	)

	BeforeEach(func() {
		engine = timing.NewSerialEngine()
		clock, err := timing.NewClock(100*timing.MHz, 0)
		Expect(err).ToNot(HaveOccurred())

		sched = power.NewScheduler(engine, clock, power.NewTable())
		m = MakeBuilder().
			WithRange(0x2000_0000, 0x1000).
			WithWaitStates(2).
			WithNodeID(nodeMemory).
			Build("SRAM")

		outstanding := false
		master := &power.NodeFunc{
			TickFunc: func(ctx *power.Context) {
				ap := bus.IdlePhase()
				ap.ReadyIn = true

				if outstanding {
					reply = m.Reply(ctx, bus.MasterToSlaveDataPhase{})
					ap.ReadyIn = reply.Ready
					if reply.Ready {
						outstanding = false
					}
				}

				if ctx.Cycle() == 10 {
					ap = nonSeq(0x2000_0000, bus.SizeWord, bus.Read)
					outstanding = true
				}

				m.AddrPhase(ctx, ap)
			},
		}

		sched.Register(nodeMaster, "Master", master)
		sched.Register(nodeMemory, "SRAM", m)
		sched.Start()
	})

	It("should sleep while idle and wake when addressed", func() {
		Expect(sched.RunThrough(5)).To(Succeed())
		Expect(sched.Table().Skipping(nodeMemory)).To(BeTrue())
		Expect(sched.Table().State(nodeMemory)).To(Equal(power.Gated))

		Expect(sched.RunThrough(11)).To(Succeed())
		Expect(sched.Table().State(nodeMemory)).To(Equal(power.Active))
		Expect(reply.IsPending()).To(BeTrue())

		Expect(sched.RunThrough(13)).To(Succeed())
		Expect(reply.IsSuccess()).To(BeTrue())
		Expect(m.Driver().Accesses()).To(Equal(uint64(1)))

		Expect(sched.RunThrough(15)).To(Succeed())
		Expect(sched.Table().Skipping(nodeMemory)).To(BeTrue())
		Expect(m.Driver().IdleCycles()).To(BeNumerically(">=", uint64(10)))
	})
})
