package memory

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Storage", func() {
	It("should read what was written within a unit", func() {
		s := NewStorage(4096)
		data := []byte{1, 2, 3, 4, 5, 6, 7, 8}

		Expect(s.Write(0x10, data)).To(Succeed())

		ret, err := s.Read(0x10, 8)
		Expect(err).ToNot(HaveOccurred())
		Expect(ret).To(Equal(data))
	})

	It("should read and write across units", func() {
		s := NewStorage(3 * 4096)
		data := make([]byte, 4096+16)
		for i := range data {
			data[i] = byte(i)
		}

		Expect(s.Write(4090, data)).To(Succeed())

		ret, err := s.Read(4090, uint64(len(data)))
		Expect(err).ToNot(HaveOccurred())
		Expect(ret).To(Equal(data))
	})

	It("should return the fill byte for bytes never written", func() {
		s := NewStorageWithFill(8192, 0xff)
		Expect(s.Write(4096, []byte{0x12})).To(Succeed())

		ret, err := s.Read(4094, 4)
		Expect(err).ToNot(HaveOccurred())
		Expect(ret).To(Equal([]byte{0xff, 0xff, 0x12, 0xff}))
	})

	It("should refuse accesses beyond the capacity", func() {
		s := NewStorage(4096)

		Expect(s.Write(4094, []byte{1, 2, 3})).ToNot(Succeed())

		_, err := s.Read(4095, 2)
		Expect(err).To(HaveOccurred())
	})
})
