package stages

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/mem/memory"
	"github.com/sarchlab/ahbsim/sim/hooking"
)

var _ = Describe("WriteBuffer", func() {
	const base bus.Address = 0x2000_0000

	var (
		sram *memory.Comp
		wb   *WriteBuffer
		r    *rig
	)

	build := func(policy WritePolicy, bufferable ...bus.Range) {
		sram = memory.MakeBuilder().
			WithRange(base, 0x1000).
			WithWaitStates(2).
			Build("SRAM")
		wb = NewWriteBuffer("SRAMWB", sram, policy, bufferable...)
		r = newRig(wb, wb, sram)
	}

	Context("with the fast policy", func() {
		BeforeEach(func() {
			build(Fast)
		})

		It("should complete a posted write without wait-states", func() {
			rep, n := r.access(write(base.Add(0x10), bus.SizeWord),
				bus.DataFromUint32(0x0102_0304, bus.SizeWord))

			Expect(rep.IsSuccess()).To(BeTrue())
			Expect(n).To(Equal(1))
			Expect(wb.PostedWrites()).To(Equal(uint64(1)))
			Expect(wb.Draining()).To(BeTrue())

			r.idle(4)

			Expect(wb.Draining()).To(BeFalse())
			b, err := sram.ReadMemory(base.Add(0x10), 4)
			Expect(err).ToNot(HaveOccurred())
			Expect(b).To(Equal([]byte{4, 3, 2, 1}))
		})

		It("should let a read observe the posted value", func() {
			r.access(write(base.Add(0x20), bus.SizeWord),
				bus.DataFromUint32(0xfeed_face, bus.SizeWord))

			rep, n := r.access(read(base.Add(0x20), bus.SizeWord), bus.Data{})

			Expect(rep.IsSuccess()).To(BeTrue())
			Expect(rep.Data.Uint32()).To(Equal(uint32(0xfeed_face)))
			Expect(n).To(BeNumerically(">", 3))
		})

		It("should forward a second write while the first drains", func() {
			r.access(write(base, bus.SizeWord),
				bus.DataFromUint32(1, bus.SizeWord))
			rep, n := r.access(write(base.Add(4), bus.SizeWord),
				bus.DataFromUint32(2, bus.SizeWord))

			Expect(rep.IsSuccess()).To(BeTrue())
			Expect(n).To(BeNumerically(">", 1))
			Expect(wb.PostedWrites()).To(Equal(uint64(1)))

			r.idle(4)
			b, _ := sram.ReadMemory(base, 8)
			Expect(b).To(Equal([]byte{1, 0, 0, 0, 2, 0, 0, 0}))
		})
	})

	It("should wait for the slave under the conservative policy", func() {
		build(Conservative)

		_, n := r.access(write(base, bus.SizeWord),
			bus.DataFromUint32(7, bus.SizeWord))

		Expect(n).To(Equal(3))
		Expect(wb.PostedWrites()).To(BeZero())
	})

	It("should only post writes to bufferable ranges", func() {
		build(Fast, bus.Range{Start: base.Add(0x800), Size: 0x800})

		_, n := r.access(write(base, bus.SizeWord),
			bus.DataFromUint32(7, bus.SizeWord))
		Expect(n).To(Equal(3))

		_, n = r.access(write(base.Add(0x800), bus.SizeWord),
			bus.DataFromUint32(7, bus.SizeWord))
		Expect(n).To(Equal(1))
	})

	It("should count posted writes the slave refuses", func() {
		rom := memory.MakeBuilder().
			WithRange(base, 0x100).
			WithWritable(false).
			Build("ROM")
		wb = NewWriteBuffer("ROMWB", rom, Fast)
		r = newRig(wb, wb, rom)

		var failed []bus.TransferMeta
		wb.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			failed = append(failed, ctx.Item.(bus.TransferMeta))
		}))

		rep, _ := r.access(write(base, bus.SizeWord),
			bus.DataFromUint32(7, bus.SizeWord))
		Expect(rep.IsSuccess()).To(BeTrue())

		r.idle(4)

		Expect(wb.PostedWriteErrors()).To(Equal(uint64(1)))
		Expect(failed).To(HaveLen(1))
		Expect(failed[0].Addr).To(Equal(base))
	})
})
