package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/ahbsim/bus/stages"
	"github.com/sarchlab/ahbsim/sim/hooking"
	"github.com/sarchlab/ahbsim/sim/power"
	"github.com/sarchlab/ahbsim/sim/timing"
)

type fakeEngine struct {
	now       timing.VTimeInPs
	paused    int
	continued int
}

func (e *fakeEngine) CurrentTime() timing.VTimeInPs { return e.now }
func (e *fakeEngine) Pause()                        { e.paused++ }
func (e *fakeEngine) Continue()                     { e.continued++ }
func (e *fakeEngine) Run() error                    { return nil }

type sampleComponent struct {
	name  string
	count int
}

func (c *sampleComponent) Name() string { return c.name }

type idleNode struct{}

func (idleNode) Tick(*power.Context) {}
func (idleNode) Tock(*power.Context) {}

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		engine *fakeEngine
	)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		m.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		return rec
	}

	BeforeEach(func() {
		engine = &fakeEngine{now: 42}
		m = NewMonitor()
		m.RegisterEngine(engine)
	})

	It("should fall back to a random port for reserved ports", func() {
		Expect(m.WithPortNumber(80).portNumber).To(Equal(0))
		Expect(m.WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should report the current time", func() {
		rec := get("/api/now")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(MatchJSON(`{"now":42}`))
	})

	It("should pause and continue the engine", func() {
		get("/api/pause")
		get("/api/continue")
		get("/api/continue")

		Expect(engine.paused).To(Equal(1))
		Expect(engine.continued).To(Equal(2))
	})

	It("should list registered components", func() {
		m.RegisterComponent(&sampleComponent{name: "A"})
		m.RegisterComponent(&sampleComponent{name: "B"})

		rec := get("/api/list_components")
		Expect(rec.Body.String()).To(MatchJSON(`["A","B"]`))
	})

	It("should serialize a component", func() {
		m.RegisterComponent(&sampleComponent{name: "Comp", count: 3})

		rec := get("/api/component/Comp")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.Len()).To(BeNumerically(">", 0))
	})

	It("should answer 404 for unknown components", func() {
		rec := get("/api/component/Nobody")
		Expect(rec.Code).To(Equal(http.StatusNotFound))
	})

	It("should reject malformed field requests", func() {
		rec := get("/api/field/not-json")
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("should list power states", func() {
		table := power.NewTable()
		table.Register(0, "Matrix", idleNode{})
		table.Register(1, "SRAM", idleNode{})
		m.RegisterTable(table)

		rec := get("/api/power")
		Expect(rec.Body.String()).To(MatchJSON(`[
			{"id":0,"name":"Matrix","state":"Active","skipping":false},
			{"id":1,"name":"SRAM","state":"Active","skipping":false}
		]`))
	})

	It("should return an empty list without a table", func() {
		Expect(get("/api/power").Body.String()).To(MatchJSON(`[]`))
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("Transfers", 10)
		Expect(bar.ID).ToNot(BeEmpty())

		counter := TransferCounter{Bar: bar}
		counter.Func(hooking.HookCtx{Pos: stages.HookPosTransferStart})
		counter.Func(hooking.HookCtx{Pos: stages.HookPosTransferStart})
		counter.Func(hooking.HookCtx{Pos: stages.HookPosTransferEnd})
		counter.Func(hooking.HookCtx{Pos: stages.HookPosDeny})

		var bars []map[string]any
		Expect(json.Unmarshal(get("/api/progress").Body.Bytes(), &bars)).
			To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0]["name"]).To(Equal("Transfers"))
		Expect(bars[0]["finished"]).To(BeNumerically("==", 1))
		Expect(bars[0]["in_progress"]).To(BeNumerically("==", 1))

		m.CompleteProgressBar(bar)
		Expect(get("/api/progress").Body.String()).To(MatchJSON(`[]`))
	})

	It("should serve the dashboard", func() {
		rec := get("/")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("/api/power"))
	})
})
