package soc

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/busagent"
	"github.com/sarchlab/ahbsim/periph/countdown"
)

var _ = Describe("SoC", func() {
	var (
		cfg   Config
		s     *SoC
		flash bus.Address
		sram  bus.Address
		gpram bus.Address
	)

	build := func() {
		var err error
		s, err = MakeBuilder().WithConfig(cfg).Build("SoC")
		Expect(err).ToNot(HaveOccurred())

		flash = bus.Address(cfg.Flash.Base)
		sram = bus.Address(cfg.SRAM.Base)
		gpram = bus.Address(cfg.GPRAM.Base)
	}

	run := func() {
		Expect(s.Run()).To(Succeed())
		Expect(s.Scheduler().Quiescent()).To(BeTrue())
	}

	BeforeEach(func() {
		cfg = DefaultConfig()
		cfg.VerifySkips = true
	})

	It("should register every node", func() {
		build()
		Expect(s.Table().Len()).To(Equal(NumNodes))
	})

	It("should list its components in node order", func() {
		build()

		comps := s.Components()
		Expect(comps).To(HaveLen(NumNodes))
		Expect(comps[NodeMatrix].Name()).To(Equal(s.Matrix.Name()))
		Expect(comps[NodeSysTick].Name()).To(Equal(s.SysTick.Name()))
	})

	It("should refuse an invalid configuration", func() {
		cfg.Arbitration = "lottery"
		_, err := MakeBuilder().WithConfig(cfg).Build("SoC")
		Expect(err).To(MatchError(ContainSubstring("unknown arbitration")))
	})

	It("should refuse an unknown write policy when building the slaves", func() {
		cfg.SRAMWritePolicy = "eager"
		s = &SoC{name: "SoC", cfg: cfg}

		Expect(s.buildSlaves()).To(
			MatchError(ContainSubstring("unknown sram_write_policy")))
		Expect(s.SRAM).To(BeNil())
	})

	It("should refuse overlapping memories", func() {
		cfg.ROM.Base = cfg.SRAM.Base
		_, err := MakeBuilder().WithConfig(cfg).Build("SoC")
		Expect(err).To(MatchError(ContainSubstring("overlaps")))
	})

	It("should add the wait-states of the memory to a write", func() {
		cfg.GPRAM.WaitStates = 2
		cfg.CacheRAM.WaitStates = 2
		build()

		s.Submit(MasterDMA, busagent.WriteWord(gpram.Add(0x10), 0xdead_beef))
		run()

		trace := s.Masters[MasterDMA].Trace()
		Expect(trace).To(HaveLen(4))
		Expect(trace[0].AddrKind).To(Equal(bus.NonSeq))
		Expect(trace[0].Ready).To(BeTrue())
		Expect(trace[1].Ready).To(BeFalse())
		Expect(trace[2].Ready).To(BeFalse())
		Expect(trace[3].Ready).To(BeTrue())
		Expect(trace[3].Resp).To(Equal(bus.Okay))

		b, err := s.ReadMemory(gpram.Add(0x10), 4)
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(Equal([]byte{0xef, 0xbe, 0xad, 0xde}))

		s.Submit(MasterDMA, busagent.Read(gpram.Add(0x10), bus.SizeWord))
		run()

		res := s.Masters[MasterDMA].Results()
		Expect(res).To(HaveLen(2))
		Expect(res[1].Reply.Data.Uint32()).To(Equal(uint32(0xdead_beef)))
	})

	DescribeTable("should read back SRAM writes",
		func(policy string) {
			cfg.SRAMWritePolicy = policy
			build()

			s.Submit(MasterSys,
				busagent.WriteWord(sram.Add(8), 0x1234_5678),
				busagent.Read(sram.Add(8), bus.SizeWord),
				busagent.Read(sram.Add(10), bus.SizeHalfword),
			)
			run()

			res := s.Masters[MasterSys].Results()
			Expect(res).To(HaveLen(3))
			for _, r := range res {
				Expect(r.Reply.IsSuccess()).To(BeTrue())
			}
			Expect(res[1].Reply.Data.Uint32()).To(Equal(uint32(0x1234_5678)))
			Expect(res[2].Reply.Data.Uint32()).To(Equal(uint32(0x1234)))

			b, err := s.ReadMemory(sram.Add(8), 4)
			Expect(err).ToNot(HaveOccurred())
			Expect(b).To(Equal([]byte{0x78, 0x56, 0x34, 0x12}))
		},
		Entry("fast", "fast"),
		Entry("conservative", "conservative"),
	)

	It("should complete posted writes sooner than forwarded ones", func() {
		latency := func(policy string) uint64 {
			cfg.SRAMWritePolicy = policy
			build()

			s.Submit(MasterSys, busagent.WriteWord(sram, 1))
			run()

			r := s.Masters[MasterSys].Results()[0]

			return r.Done - r.Issued
		}

		Expect(latency("fast")).To(BeNumerically("<", latency("conservative")))
	})

	It("should serve flash through its alias", func() {
		build()

		image := []byte{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17}
		Expect(s.WriteMemory(flash, image)).To(Succeed())

		alias := bus.Address(cfg.FlashAlias)
		b, err := s.ReadMemory(alias.Add(4), 4)
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(Equal(image[4:8]))

		s.Submit(MasterCode,
			busagent.Read(alias.Add(4), bus.SizeWord),
			busagent.Read(flash, bus.SizeWord),
		)
		run()

		res := s.Masters[MasterCode].Results()
		Expect(res).To(HaveLen(2))
		Expect(res[0].Reply.Data.Uint32()).To(Equal(uint32(0x1716_1514)))
		Expect(res[1].Reply.Data.Uint32()).To(Equal(uint32(0x1312_1110)))
		Expect(s.FlashLineBuffer.Hits()).To(Equal(uint64(1)))
	})

	It("should read what the host last wrote to flash", func() {
		build()

		readBack := func() []byte {
			s.Submit(MasterCode, busagent.Read(flash, bus.SizeWord))
			run()

			res := s.Masters[MasterCode].Results()
			return res[len(res)-1].Reply.Data.Bytes()
		}

		Expect(s.WriteMemory(flash, []byte{1, 2, 3, 4})).To(Succeed())
		Expect(readBack()).To(Equal([]byte{1, 2, 3, 4}))

		Expect(s.WriteMemory(flash, []byte{9, 9, 9, 9})).To(Succeed())
		Expect(readBack()).To(Equal([]byte{9, 9, 9, 9}))
		Expect(s.FlashLineBuffer.Hits()).To(BeZero())

		alias := bus.Address(cfg.FlashAlias)
		Expect(s.WriteMemory(alias, []byte{7, 7, 7, 7})).To(Succeed())
		Expect(readBack()).To(Equal([]byte{7, 7, 7, 7}))
	})

	It("should refuse bus writes to flash", func() {
		build()

		s.Submit(MasterSys, busagent.WriteWord(flash, 0))
		run()

		res := s.Masters[MasterSys].Results()
		Expect(res).To(HaveLen(1))
		Expect(res[0].Reply.Resp).To(Equal(bus.Error))
	})

	It("should switch the shared window to the cache RAM", func() {
		build()

		Expect(s.WriteMemory(gpram, []byte{1, 2, 3, 4})).To(Succeed())
		s.SetCacheMode(true)
		Expect(s.CacheMode()).To(BeTrue())
		Expect(s.WriteMemory(gpram, []byte{5, 6, 7, 8})).To(Succeed())

		s.Submit(MasterDMA, busagent.Read(gpram, bus.SizeWord))
		run()

		s.SetCacheMode(false)
		s.Submit(MasterDMA, busagent.Read(gpram, bus.SizeWord))
		run()

		res := s.Masters[MasterDMA].Results()
		Expect(res).To(HaveLen(2))
		Expect(res[0].Reply.Data.Uint32()).To(Equal(uint32(0x0807_0605)))
		Expect(res[1].Reply.Data.Uint32()).To(Equal(uint32(0x0403_0201)))

		b, err := s.GPRAM.ReadMemory(gpram, 4)
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should let the system master program the timer", func() {
		build()

		base := bus.Address(cfg.SysTickBase)
		s.Submit(MasterSys,
			busagent.WriteWord(base.Add(uint32(countdown.RegLoad)), 0x100),
			busagent.WriteWord(base.Add(uint32(countdown.RegCtrl)),
				countdown.CtrlEnable),
			busagent.Read(base.Add(uint32(countdown.RegLoad)), bus.SizeWord),
		)
		Expect(s.RunThrough(50)).To(Succeed())

		res := s.Masters[MasterSys].Results()
		Expect(res).To(HaveLen(3))
		Expect(res[2].Reply.Data.Uint32()).To(Equal(uint32(0x100)))
		Expect(s.SysTick.Enabled()).To(BeTrue())
		Expect(s.SysTick.Value()).To(BeNumerically(">", 0))
		Expect(s.SysTick.Value()).To(BeNumerically("<", 0x100))
	})

	It("should keep other masters off the private peripheral bus", func() {
		build()

		s.Submit(MasterCode,
			busagent.Read(bus.Address(cfg.SysTickBase), bus.SizeWord))
		run()

		res := s.Masters[MasterCode].Results()
		Expect(res).To(HaveLen(1))
		Expect(res[0].Reply.Resp).To(Equal(bus.Error))
		Expect(s.BusError.Errors()).To(Equal(uint64(1)))
	})

	It("should answer unmapped addresses with an error", func() {
		build()

		s.Submit(MasterSys, busagent.Read(0x4000_0000, bus.SizeWord))
		run()

		res := s.Masters[MasterSys].Results()
		Expect(res).To(HaveLen(1))
		Expect(res[0].Reply.Resp).To(Equal(bus.Error))

		Expect(s.WriteMemory(0x4000_0000, []byte{0})).
			To(MatchError(ContainSubstring("not mapped")))
		_, err := s.ReadMemory(bus.Address(cfg.SysTickBase), 4)
		Expect(err).To(MatchError(ContainSubstring("not backed by memory")))
	})

	It("should serve the system master first under fixed priority", func() {
		cfg.Arbitration = "fixed"
		build()

		s.Submit(MasterCode, busagent.Read(sram, bus.SizeWord))
		s.Submit(MasterSys,
			busagent.Read(sram.Add(4), bus.SizeWord),
			busagent.Read(sram.Add(8), bus.SizeWord),
			busagent.Read(sram.Add(12), bus.SizeWord),
		)
		run()

		code := s.Masters[MasterCode].Results()
		sys := s.Masters[MasterSys].Results()
		Expect(code).To(HaveLen(1))
		Expect(sys).To(HaveLen(3))

		for _, r := range sys {
			Expect(r.Done).To(BeNumerically("<", code[0].Done))
		}
	})

	It("should fall asleep once every transfer is done", func() {
		build()

		s.Submit(MasterCode, busagent.Read(flash, bus.SizeWord))
		s.Submit(MasterDMA, busagent.WriteWord(sram, 7))
		run()

		Expect(s.Matrix.Idle()).To(BeTrue())
		for _, m := range s.Masters {
			Expect(m.Done()).To(BeTrue())
		}
	})
})
