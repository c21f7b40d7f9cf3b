package busagent

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/sim/power"
)

var _ = Describe("Agent", func() {
	var (
		mockCtrl *gomock.Controller
		port     *MockPort
		ctx      *power.Context
		agent    *Agent
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		port = NewMockPort(mockCtrl)
		ctx = power.NewContext(nil, nil)
		agent = NewAgent("Agent", power.NoNode, port)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	cycle := func() {
		agent.Tick(ctx)
		agent.Tock(ctx)
	}

	readMeta := bus.TransferMeta{Addr: 0x100, Size: bus.SizeWord, Dir: bus.Read}
	writeMeta := bus.TransferMeta{Addr: 0x104, Size: bus.SizeWord, Dir: bus.Write}

	It("should hold the address phase until it is accepted", func() {
		agent.Enqueue(Read(0x100, bus.SizeWord), WriteWord(0x104, 7))

		gomock.InOrder(
			port.EXPECT().Drive(ctx, bus.NonSeqPhase(readMeta),
				bus.MasterToSlaveDataPhase{}),
			port.EXPECT().Reply().Return(bus.IdleReply()),
			port.EXPECT().Drive(ctx, bus.NonSeqPhase(writeMeta),
				bus.MasterToSlaveDataPhase{}),
			port.EXPECT().Reply().Return(bus.Pending(readMeta)),
			port.EXPECT().Drive(ctx, bus.NonSeqPhase(writeMeta),
				bus.MasterToSlaveDataPhase{}),
			port.EXPECT().Reply().Return(bus.Success(readMeta,
				bus.DataFromUint32(0xaa, bus.SizeWord))),
			port.EXPECT().Drive(ctx, bus.IdlePhase(),
				bus.MasterToSlaveDataPhase{
					Data: bus.DataFromUint32(7, bus.SizeWord),
				}),
			port.EXPECT().Reply().Return(bus.Success(writeMeta, bus.Data{})),
		)

		for i := 0; i < 4; i++ {
			cycle()
		}

		Expect(agent.Done()).To(BeTrue())
		Expect(agent.Results()).To(HaveLen(2))
		Expect(agent.Results()[0].Reply.Data.Uint32()).To(Equal(uint32(0xaa)))
		Expect(agent.Results()[1].Transfer.Dir).To(Equal(bus.Write))

		trace := agent.Trace()
		Expect(trace).To(HaveLen(4))
		Expect(trace[1].AddrKind).To(Equal(bus.NonSeq))
		Expect(trace[1].Ready).To(BeFalse())
		Expect(trace[3].AddrKind).To(Equal(bus.Idle))
	})

	It("should wait out the delay of a transfer", func() {
		agent.Enqueue(Read(0x100, bus.SizeWord).After(2))

		port.EXPECT().Reply().Return(bus.IdleReply()).AnyTimes()
		gomock.InOrder(
			port.EXPECT().Drive(ctx, bus.IdlePhase(), gomock.Any()).Times(2),
			port.EXPECT().Drive(ctx, bus.NonSeqPhase(readMeta), gomock.Any()),
			port.EXPECT().Drive(ctx, bus.IdlePhase(), gomock.Any()),
		)

		for i := 0; i < 4; i++ {
			cycle()
		}

		Expect(agent.Done()).To(BeTrue())
	})

	It("should assert the lock of a locked transfer", func() {
		agent.Enqueue(Read(0x100, bus.SizeWord).Locked())

		locked := bus.NonSeqPhase(readMeta)
		locked.Lock = true

		port.EXPECT().Drive(ctx, locked, gomock.Any())
		port.EXPECT().Reply().Return(bus.IdleReply())

		cycle()
	})

	It("should keep the lock asserted between locked transfers", func() {
		agent.Enqueue(
			Read(0x100, bus.SizeWord).Locked(),
			Read(0x104, bus.SizeWord).Locked().After(2),
			Read(0x108, bus.SizeWord).After(1),
		)

		lockedRead := func(addr bus.Address) bus.MasterToSlaveAddrPhase {
			ap := bus.NonSeqPhase(bus.TransferMeta{
				Addr: addr, Size: bus.SizeWord, Dir: bus.Read,
			})
			ap.Lock = true

			return ap
		}
		lockedIdle := bus.IdlePhase()
		lockedIdle.Lock = true

		port.EXPECT().Reply().Return(bus.IdleReply()).AnyTimes()
		gomock.InOrder(
			port.EXPECT().Drive(ctx, lockedRead(0x100), gomock.Any()),
			port.EXPECT().Drive(ctx, lockedIdle, gomock.Any()).Times(2),
			port.EXPECT().Drive(ctx, lockedRead(0x104), gomock.Any()),
			port.EXPECT().Drive(ctx, bus.IdlePhase(), gomock.Any()),
			port.EXPECT().Drive(ctx, bus.NonSeqPhase(bus.TransferMeta{
				Addr: 0x108, Size: bus.SizeWord, Dir: bus.Read,
			}), gomock.Any()),
			port.EXPECT().Drive(ctx, bus.IdlePhase(), gomock.Any()),
		)

		for i := 0; i < 7; i++ {
			cycle()
		}

		Expect(agent.Done()).To(BeTrue())
		Expect(agent.Results()).To(HaveLen(3))
	})

	It("should take transfers from a wakeup", func() {
		Expect(agent.Done()).To(BeTrue())
		Expect(agent.SkippableCycles()).To(Equal(power.SkipForever))

		agent.Wake(ctx, []Transfer{Read(0x100, bus.SizeWord)})

		Expect(agent.Done()).To(BeFalse())
		Expect(agent.CanBeGated()).To(BeFalse())
		Expect(agent.SkippableCycles()).To(BeZero())
	})
})
