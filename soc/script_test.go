package soc

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ahbsim/bus"
)

var _ = Describe("Script", func() {
	write := func(content string) string {
		path := filepath.Join(GinkgoT().TempDir(), "traffic.yaml")
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())

		return path
	}

	It("should preload memory and drive the masters", func() {
		sc, err := LoadScript(write(`
memory:
  - addr: 0x08000000
    hex: "efbeadde"
transfers:
  - master: Code
    op: read
    addr: 0x08000000
  - master: DMA
    op: write
    addr: 0x20000010
    size: 2
    value: 0xabcd
  - master: DMA
    addr: 0x20000010
    size: 2
    delay: 1
`))
		Expect(err).ToNot(HaveOccurred())
		Expect(sc.Transfers).To(HaveLen(3))

		s, err := MakeBuilder().Build("SoC")
		Expect(err).ToNot(HaveOccurred())
		Expect(sc.Apply(s)).To(Succeed())
		Expect(s.Run()).To(Succeed())

		code := s.Masters[MasterCode].Results()
		Expect(code).To(HaveLen(1))
		Expect(code[0].Reply.Data.Uint32()).To(Equal(uint32(0xdead_beef)))

		dma := s.Masters[MasterDMA].Results()
		Expect(dma).To(HaveLen(2))
		Expect(dma[1].Transfer.Delay).To(Equal(1))
		Expect(dma[1].Reply.Data.Uint32()).To(Equal(uint32(0xabcd)))

		b, err := s.ReadMemory(bus.Address(0x2000_0010), 2)
		Expect(err).ToNot(HaveOccurred())
		Expect(b).To(Equal([]byte{0xcd, 0xab}))
	})

	DescribeTable("should reject invalid entries",
		func(content, msg string) {
			sc, err := LoadScript(write(content))
			Expect(err).ToNot(HaveOccurred())

			s, err := MakeBuilder().Build("SoC")
			Expect(err).ToNot(HaveOccurred())
			Expect(sc.Apply(s)).To(MatchError(ContainSubstring(msg)))
		},
		Entry("master", "transfers: [{master: CPU}]", "unknown master"),
		Entry("op", "transfers: [{master: Sys, op: swap}]", "unknown op"),
		Entry("size", "transfers: [{master: Sys, size: 3}]", "unsupported size"),
		Entry("image", "memory: [{addr: 0, hex: zz}]", "memory image 0"),
	)

	It("should report unreadable scripts", func() {
		_, err := LoadScript(write("transfers: {"))
		Expect(err).To(MatchError(ContainSubstring("parsing script")))
	})
})
