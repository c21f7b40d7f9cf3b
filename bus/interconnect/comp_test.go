package interconnect

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/arbitration"
	"github.com/sarchlab/ahbsim/bus/busagent"
	"github.com/sarchlab/ahbsim/bus/stages"
	"github.com/sarchlab/ahbsim/sim/hooking"
)

var _ = Describe("Comp", func() {
	const (
		mA bus.MasterTag = iota
		mB
		mC
		mD
	)

	fixed := func(order ...bus.MasterTag) func([]bus.MasterTag) arbitration.Arbiter {
		return func([]bus.MasterTag) arbitration.Arbiter {
			return arbitration.NewFixed(order...)
		}
	}

	It("should complete a write after the wait-states of the slave", func() {
		r := newRig(rigConfig{masters: 1, sramWS: 2})
		r.agents[0].Enqueue(busagent.WriteWord(sramBase.Add(0x10), 0xdead_beef))

		r.run()

		trace := r.agents[0].Trace()
		Expect(trace).To(HaveLen(4))
		Expect(trace[0].AddrKind).To(Equal(bus.NonSeq))
		Expect(trace[0].Ready).To(BeTrue())
		Expect(trace[1].Ready).To(BeFalse())
		Expect(trace[1].Resp).To(Equal(bus.Okay))
		Expect(trace[2].Ready).To(BeFalse())
		Expect(trace[3].Ready).To(BeTrue())
		Expect(trace[3].Resp).To(Equal(bus.Okay))

		b, err := r.sram.ReadMemory(sramBase.Add(0x10), 4)
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(Equal([]byte{0xef, 0xbe, 0xad, 0xde}))
	})

	It("should read back what was written", func() {
		r := newRig(rigConfig{masters: 1, sramWS: 1})
		r.agents[0].Enqueue(
			busagent.WriteWord(sramBase, 0x1122_3344),
			busagent.Read(sramBase, bus.SizeWord),
			busagent.Read(sramBase.Add(2), bus.SizeHalfword),
		)

		r.run()

		res := r.agents[0].Results()
		Expect(res).To(HaveLen(3))
		Expect(res[1].Reply.Data.Uint32()).To(Equal(uint32(0x1122_3344)))
		Expect(res[2].Reply.Data.Uint32()).To(Equal(uint32(0x1122)))
	})

	It("should keep granting the highest priority master", func() {
		r := newRig(rigConfig{masters: 2, sramArbiter: fixed(mA, mB)})
		r.agents[mA].Enqueue(reads(sramBase, 5)...)
		r.agents[mB].Enqueue(reads(sramBase.Add(0x100), 5)...)

		r.run()

		Expect(r.winners()).To(Equal([]bus.MasterTag{
			mA, mA, mA, mA, mA, mB, mB, mB, mB, mB,
		}))

		for _, e := range r.agents[mB].Trace()[:5] {
			Expect(e.Ready).To(BeFalse())
		}
	})

	It("should rotate a round robin port", func() {
		r := newRig(rigConfig{masters: 4})
		for i, a := range r.agents {
			a.Enqueue(reads(sramBase.Add(uint32(0x100*i)), 2)...)
		}

		r.run()

		Expect(r.winners()[:4]).To(Equal([]bus.MasterTag{mA, mB, mC, mD}))
		for _, a := range r.agents {
			Expect(a.Results()).To(HaveLen(2))
		}
	})

	It("should let masters reach different slaves in parallel", func() {
		r := newRig(rigConfig{masters: 2})
		r.agents[mA].Enqueue(reads(sramBase, 3)...)
		r.agents[mB].Enqueue(reads(flashBase, 3)...)

		r.run()

		for _, g := range r.grants {
			Expect(g.granted).To(BeTrue())
		}
		Expect(r.agents[mA].Results()[2].Done).To(Equal(uint64(3)))
		Expect(r.agents[mB].Results()[2].Done).To(Equal(uint64(3)))
	})

	Context("with a locked sequence", func() {
		It("should not switch away from the lock holder", func() {
			r := newRig(rigConfig{masters: 2, sramArbiter: fixed(mB, mA)})
			r.agents[mA].Enqueue(
				busagent.Read(sramBase, bus.SizeWord).Locked(),
				busagent.Read(sramBase.Add(4), bus.SizeWord).Locked(),
				busagent.Read(sramBase.Add(8), bus.SizeWord).Locked(),
			)
			r.agents[mB].Enqueue(delayed(reads(sramBase.Add(0x100), 3), 1)...)

			r.run()

			Expect(r.winners()).To(Equal([]bus.MasterTag{
				mA, mA, mA, mB, mB, mB,
			}))
		})

		It("should keep the port across an idle gap of the holder", func() {
			r := newRig(rigConfig{masters: 2, sramArbiter: fixed(mB, mA)})
			r.agents[mA].Enqueue(
				busagent.Read(sramBase, bus.SizeWord).Locked(),
				busagent.Read(sramBase.Add(4), bus.SizeWord).Locked().After(3),
			)
			r.agents[mB].Enqueue(delayed(reads(sramBase.Add(0x100), 2), 1)...)

			r.run()

			Expect(r.winners()).To(Equal([]bus.MasterTag{mA, mA, mB, mB}))
			for _, g := range r.grants {
				if g.tag == mB && g.cycle < 5 {
					Expect(g.granted).To(BeFalse(), "cycle %d", g.cycle)
				}
			}
			Expect(r.agents[mA].Results()[1].Issued).To(Equal(uint64(4)))
		})

		It("should arbitrate freely without the lock", func() {
			r := newRig(rigConfig{masters: 2, sramArbiter: fixed(mB, mA)})
			r.agents[mA].Enqueue(reads(sramBase, 3)...)
			r.agents[mB].Enqueue(delayed(reads(sramBase.Add(0x100), 3), 1)...)

			r.run()

			Expect(r.winners()).To(Equal([]bus.MasterTag{
				mA, mB, mB, mB, mA, mA,
			}))
		})
	})

	It("should answer unmapped addresses with a two-cycle error", func() {
		r := newRig(rigConfig{masters: 1})
		r.agents[0].Enqueue(busagent.Read(0x4000_0000, bus.SizeWord))

		r.run()

		trace := r.agents[0].Trace()
		Expect(trace).To(HaveLen(3))
		Expect(trace[1].Ready).To(BeFalse())
		Expect(trace[1].Resp).To(Equal(bus.Error))
		Expect(trace[2].Ready).To(BeTrue())
		Expect(trace[2].Resp).To(Equal(bus.Error))
		Expect(r.errs.Errors()).To(Equal(uint64(1)))
	})

	It("should route a master to NoMatch for a slave it is not wired to", func() {
		r := newRig(rigConfig{
			masters:     2,
			sramMasters: []bus.MasterTag{mA},
		})
		r.agents[mA].Enqueue(busagent.Read(sramBase, bus.SizeWord))
		r.agents[mB].Enqueue(busagent.Read(sramBase, bus.SizeWord))

		r.run()

		Expect(r.agents[mA].Results()[0].Reply.Resp).To(Equal(bus.Okay))
		Expect(r.agents[mB].Results()[0].Reply.Resp).To(Equal(bus.Error))
	})

	It("should normalize aliased addresses", func() {
		r := newRig(rigConfig{masters: 1})

		var started []bus.TransferMeta
		r.ic.Stage(0).AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if ctx.Pos == stages.HookPosTransferStart {
				started = append(started, ctx.Item.(stages.TransferEvent).Meta)
			}
		}))

		r.agents[0].Enqueue(
			busagent.WriteWord(aliasBase.Add(0x40), 0x5555_aaaa),
			busagent.Read(flashBase.Add(0x40), bus.SizeWord),
		)

		r.run()

		Expect(started[0].Addr).To(Equal(flashBase.Add(0x40)))
		Expect(r.agents[0].Results()[1].Reply.Data.Uint32()).
			To(Equal(uint32(0x5555_aaaa)))
	})

	It("should sleep while idle and wake on a transfer", func() {
		r := newRig(rigConfig{masters: 1})
		r.agents[0].Enqueue(
			busagent.Read(sramBase, bus.SizeWord).After(10))

		r.run()

		Expect(r.agents[0].Results()).To(HaveLen(1))
		Expect(r.agents[0].Results()[0].Issued).To(Equal(uint64(10)))
		Expect(r.ic.IdleCycles()).To(BeNumerically(">=", 10))
		Expect(r.table.Skipping(r.icID)).To(BeTrue())
	})

	It("should hold ready low for every denied master", func() {
		r := newRig(rigConfig{masters: 3, sramWS: 1, flashWS: 2,
			verifySkips: true})
		rng := rand.New(rand.NewSource(7))

		type want struct {
			addr bus.Address
			val  uint32
		}
		expected := make([][]want, len(r.agents))

		for i, a := range r.agents {
			bases := []bus.Address{
				sramBase.Add(uint32(0x100 * i)),
				flashBase.Add(uint32(0x100 * i)),
				aliasBase.Add(uint32(0x100*i + 0x80)),
			}

			for k := 0; k < 20; k++ {
				addr := bases[rng.Intn(len(bases))].Add(uint32(4 * k))
				val := rng.Uint32()

				a.Enqueue(busagent.WriteWord(addr, val).After(rng.Intn(2)))
				expected[i] = append(expected[i], want{addr, val})
			}

			for _, w := range expected[i] {
				a.Enqueue(busagent.Read(w.addr, bus.SizeWord))
			}
		}

		r.run()

		for i, a := range r.agents {
			res := a.Results()
			Expect(res).To(HaveLen(40))

			for k, w := range expected[i] {
				Expect(res[20+k].Reply.IsSuccess()).To(BeTrue())
				Expect(res[20+k].Reply.Data.Uint32()).To(Equal(w.val))
			}
		}

		byCycle := make([]map[uint64]busagent.TraceEntry, len(r.agents))
		for i, a := range r.agents {
			byCycle[i] = make(map[uint64]busagent.TraceEntry)
			for _, e := range a.Trace() {
				byCycle[i][e.Cycle] = e
			}
		}

		denies := 0
		for _, g := range r.grants {
			if g.granted {
				continue
			}

			denies++
			Expect(byCycle[g.tag][g.cycle].Ready).To(BeFalse())
		}
		Expect(denies).To(BeNumerically(">", 0))
	})
})

// delayed makes the first transfer wait n idle cycles.
func delayed(ts []busagent.Transfer, n int) []busagent.Transfer {
	ts[0] = ts[0].After(n)
	return ts
}
