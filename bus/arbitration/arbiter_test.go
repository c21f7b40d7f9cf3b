package arbitration

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ahbsim/bus"
)

const (
	masterA bus.MasterTag = iota
	masterB
	masterC
	masterD
)

func request(tag bus.MasterTag, lock bool) bus.MasterToSlaveAddrPhase {
	ap := bus.NonSeqPhase(bus.TransferMeta{
		Addr: 0x2000_0000,
		Size: bus.SizeWord,
		Tag:  tag,
	})
	ap.Lock = lock
	ap.ReadyIn = true

	return ap
}

func requestSet(tags ...bus.MasterTag) *RequestSet {
	reqs := &RequestSet{}
	for _, t := range tags {
		reqs.Add(t, request(t, false))
	}

	return reqs
}

// grants runs the arbiter for n cycles with every winner accepted.
func grants(
	arb Arbiter,
	n int,
	requesters func(cycle int) *RequestSet,
) []bus.MasterTag {
	var out []bus.MasterTag

	for c := 0; c < n; c++ {
		w, ok := arb.Arbitrate(nil, requesters(c))
		if !ok {
			continue
		}

		arb.Commit(w, true)
		out = append(out, w)
	}

	return out
}

var _ = Describe("Fixed", func() {
	It("should always grant the highest-priority requester", func() {
		arb := NewFixed(masterA, masterB)

		winners := grants(arb, 5, func(int) *RequestSet {
			return requestSet(masterA, masterB)
		})

		Expect(winners).To(Equal([]bus.MasterTag{
			masterA, masterA, masterA, masterA, masterA,
		}))
	})

	It("should grant a lower priority master when alone", func() {
		arb := NewFixed(masterA, masterB)

		w, ok := arb.Arbitrate(nil, requestSet(masterB))

		Expect(ok).To(BeTrue())
		Expect(w).To(Equal(masterB))
	})

	It("should grant nobody without requests", func() {
		arb := NewFixed(masterA, masterB)

		_, ok := arb.Arbitrate(nil, requestSet())

		Expect(ok).To(BeFalse())
	})

	It("should keep a locked master on the port", func() {
		arb := NewFixed(masterA, masterB)

		reqs := &RequestSet{}
		reqs.Add(masterB, request(masterB, true))
		w, _ := arb.Arbitrate(nil, reqs)
		arb.Commit(w, true)
		Expect(w).To(Equal(masterB))

		reqs = &RequestSet{}
		reqs.Add(masterA, request(masterA, false))
		reqs.Add(masterB, request(masterB, true))
		w, _ = arb.Arbitrate(nil, reqs)
		arb.Commit(w, true)
		Expect(w).To(Equal(masterB))

		reqs = &RequestSet{}
		reqs.Add(masterA, request(masterA, false))
		reqs.Add(masterB, request(masterB, false))
		w, _ = arb.Arbitrate(nil, reqs)
		Expect(w).To(Equal(masterA))
	})

	It("should grant nobody while the lock holder idles with the lock", func() {
		arb := NewFixed(masterA, masterB)

		reqs := &RequestSet{}
		reqs.Add(masterB, request(masterB, true))
		w, _ := arb.Arbitrate(nil, reqs)
		arb.Commit(w, true)

		reqs = &RequestSet{}
		reqs.Add(masterA, request(masterA, false))
		reqs.HoldLock(masterB)
		_, ok := arb.Arbitrate(nil, reqs)
		Expect(ok).To(BeFalse())

		reqs = &RequestSet{}
		reqs.Add(masterA, request(masterA, false))
		w, ok = arb.Arbitrate(nil, reqs)
		Expect(ok).To(BeTrue())
		Expect(w).To(Equal(masterA))
	})
})

var _ = Describe("RoundRobin", func() {
	It("should rotate starting after the last winner", func() {
		arb := NewRoundRobin(masterA, masterB, masterC, masterD).
			WithLastWinner(masterD)

		winners := grants(arb, 4, func(int) *RequestSet {
			return requestSet(masterA, masterB, masterC, masterD)
		})

		Expect(winners).To(Equal([]bus.MasterTag{
			masterA, masterB, masterC, masterD,
		}))
	})

	It("should grant each persistent requester once per round", func() {
		arb := NewRoundRobin(masterA, masterB, masterC, masterD).
			WithLastWinner(masterB)

		winners := grants(arb, 40, func(int) *RequestSet {
			return requestSet(masterA, masterB, masterC, masterD)
		})

		for start := 0; start+4 <= len(winners); start++ {
			Expect(winners[start : start+4]).To(ConsistOf(
				masterA, masterB, masterC, masterD))
		}
	})

	It("should skip masters that do not request", func() {
		arb := NewRoundRobin(masterA, masterB, masterC, masterD)

		winners := grants(arb, 4, func(int) *RequestSet {
			return requestSet(masterB, masterD)
		})

		Expect(winners).To(Equal([]bus.MasterTag{
			masterB, masterD, masterB, masterD,
		}))
	})

	It("should retry a winner that was not accepted", func() {
		arb := NewRoundRobin(masterA, masterB, masterC)
		all := requestSet(masterA, masterB, masterC)

		w, _ := arb.Arbitrate(nil, all)
		Expect(w).To(Equal(masterA))
		arb.Commit(w, false)

		w, _ = arb.Arbitrate(nil, all)
		Expect(w).To(Equal(masterA))
		arb.Commit(w, true)

		w, _ = arb.Arbitrate(nil, all)
		Expect(w).To(Equal(masterB))
	})

	It("should drop a pending winner that stops requesting", func() {
		arb := NewRoundRobin(masterA, masterB, masterC)

		w, _ := arb.Arbitrate(nil, requestSet(masterA, masterB))
		arb.Commit(w, false)

		w, _ = arb.Arbitrate(nil, requestSet(masterB, masterC))
		Expect(w).To(Equal(masterB))
	})

	It("should panic on a master outside the ring", func() {
		arb := NewRoundRobin(masterA, masterB)

		Expect(func() { arb.WithLastWinner(masterD) }).To(Panic())
	})
})

var _ = Describe("None", func() {
	It("should grant a single requester", func() {
		arb := NewNone("M1->timer")

		w, ok := arb.Arbitrate(nil, requestSet(masterC))

		Expect(ok).To(BeTrue())
		Expect(w).To(Equal(masterC))
	})

	It("should panic on contention", func() {
		arb := NewNone("M1->timer")

		Expect(func() {
			arb.Arbitrate(nil, requestSet(masterA, masterB))
		}).To(PanicWith(BeAssignableToTypeOf(&bus.ProtocolViolation{})))
	})
})
