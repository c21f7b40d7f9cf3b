package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ahbsim/bus"
	"github.com/sarchlab/ahbsim/bus/busagent"
	"github.com/sarchlab/ahbsim/soc"
)

var _ = Describe("Tracing a SoC", func() {
	It("should see the contention between two masters", func() {
		s, err := soc.MakeBuilder().Build("SoC")
		Expect(err).ToNot(HaveOccurred())

		tracker := NewTransferTracker("Transfers")
		for _, st := range s.Matrix.Stages() {
			tracker.Watch(st)
		}

		steps := NewStepCountTracer(AllTasks)
		avg := NewAverageTimeTracer(AllTasks)
		CollectTrace(tracker, steps)
		CollectTrace(tracker, avg)

		sram := bus.Address(s.Config().SRAM.Base)
		s.Submit(soc.MasterCode, busagent.Read(sram, bus.SizeWord))
		s.Submit(soc.MasterDMA, busagent.Read(sram.Add(4), bus.SizeWord))
		Expect(s.Run()).To(Succeed())

		Expect(avg.TotalCount()).To(Equal(uint64(2)))
		Expect(steps.GetTaskCount(StepGranted)).To(Equal(uint64(2)))
		Expect(steps.GetTaskCount(StepDeny)).To(Equal(uint64(1)))
	})
})
