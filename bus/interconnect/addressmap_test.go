package interconnect

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ahbsim/bus"
)

var _ = Describe("AddressMap", func() {
	const (
		flash SlaveTag = iota
		sram
	)

	var m *AddressMap

	BeforeEach(func() {
		m = NewAddressMap().
			Map(sram, 0x2000_0000, 0x1_0000).
			Map(flash, 0x0800_0000, 0x4_0000).
			Alias(flash, 0x0000_0000, 0x4_0000, 0x0800_0000)
	})

	It("should decode canonical addresses unchanged", func() {
		Expect(m.Validate()).To(Succeed())

		tag, addr := m.Decode(0x2000_0124)
		Expect(tag).To(Equal(sram))
		Expect(addr).To(Equal(bus.Address(0x2000_0124)))
	})

	It("should normalize aliases to the canonical range", func() {
		tag, addr := m.Decode(0x0000_1000)
		Expect(tag).To(Equal(flash))
		Expect(addr).To(Equal(bus.Address(0x0800_1000)))
	})

	It("should decode holes to NoMatch", func() {
		tag, addr := m.Decode(0x4000_0000)
		Expect(tag).To(Equal(NoMatch))
		Expect(addr).To(Equal(bus.Address(0x4000_0000)))

		tag, _ = m.Decode(0x2001_0000)
		Expect(tag).To(Equal(NoMatch))
	})

	It("should list regions in address order", func() {
		regions := m.Regions()
		Expect(regions).To(HaveLen(3))
		Expect(regions[0].IsAlias()).To(BeTrue())
		Expect(regions[1].Tag).To(Equal(flash))
		Expect(regions[2].Tag).To(Equal(sram))
	})

	It("should report overlapping regions", func() {
		m.Map(sram, 0x2000_8000, 0x100)
		Expect(m.Validate()).To(MatchError(ContainSubstring("overlaps")))
	})

	It("should report regions past 4 GiB", func() {
		m.Map(sram, 0xffff_f000, 0x2000)
		Expect(m.Validate()).To(MatchError(ContainSubstring("4 GiB")))
	})

	It("should report aliases targeting past 4 GiB", func() {
		m.Alias(sram, 0x3000_0000, 0x2000, 0xffff_f000)
		Expect(m.Validate()).To(MatchError(ContainSubstring("4 GiB")))
	})

	It("should report empty regions", func() {
		m.Map(sram, 0x3000_0000, 0)
		Expect(m.Validate()).To(MatchError(ContainSubstring("empty")))
	})

	It("should accept a region ending at the top of the address space", func() {
		m.Map(sram, 0xe000_0000, 0x2000_0000)
		Expect(m.Validate()).To(Succeed())

		tag, _ := m.Decode(0xffff_fffc)
		Expect(tag).To(Equal(sram))
	})

	It("should decode through a function", func() {
		cacheMode := false
		d := DecoderFunc(func(addr bus.Address) (SlaveTag, bus.Address) {
			if addr >= 0x2010_0000 && addr < 0x2010_1000 && cacheMode {
				return flash, addr
			}
			return m.Decode(addr)
		})

		tag, _ := d.Decode(0x2010_0000)
		Expect(tag).To(Equal(NoMatch))

		cacheMode = true
		tag, _ = d.Decode(0x2010_0000)
		Expect(tag).To(Equal(flash))
	})
})
