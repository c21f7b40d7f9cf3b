package timing

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/pkg/errors"
	"github.com/sarchlab/ahbsim/sim/hooking"
)

// SerialEngine processes scheduled events sequentially in time order.
type SerialEngine struct {
	*hooking.HookableBase

	timeLock sync.RWMutex
	now      VTimeInPs

	queue *futureEventQueue

	isPaused     bool
	isPausedLock sync.Mutex
	pauseLock    sync.Mutex

	singleRunLock sync.Mutex
}

// NewSerialEngine creates a SerialEngine.
func NewSerialEngine() *SerialEngine {
	return &SerialEngine{
		HookableBase: hooking.NewHookableBase(),
		queue:        newFutureEventQueue(),
	}
}

// Schedule registers an event to be handled in the future.
func (e *SerialEngine) Schedule(evt ScheduledEvent) {
	now := e.readNow()
	if evt.Time < now {
		panic(fmt.Sprintf(
			"timing: cannot schedule event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(evt.Event), evt.Time, now,
		))
	}

	e.queue.Push(evt)
}

func (e *SerialEngine) readNow() VTimeInPs {
	e.timeLock.RLock()
	t := e.now
	e.timeLock.RUnlock()

	return t
}

func (e *SerialEngine) writeNow(t VTimeInPs) {
	e.timeLock.Lock()
	e.now = t
	e.timeLock.Unlock()
}

// NextEventTime returns the time of the earliest pending event.
func (e *SerialEngine) NextEventTime() (VTimeInPs, bool) {
	evt := e.queue.Peek()
	if evt == nil {
		return 0, false
	}

	return evt.Time, true
}

// Pending returns the number of events waiting in the queue.
func (e *SerialEngine) Pending() int {
	return e.queue.Len()
}

// StepPhase advances to the next scheduled timepoint and drains every event
// due at that time, including events scheduled for the same time while
// draining. It reports false if the queue was empty.
func (e *SerialEngine) StepPhase() (bool, error) {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	return e.stepPhase()
}

func (e *SerialEngine) stepPhase() (bool, error) {
	e.pauseLock.Lock()
	defer e.pauseLock.Unlock()

	first := e.queue.Peek()
	if first == nil {
		return false, nil
	}

	t := first.Time
	now := e.readNow()
	if t < now {
		panic(fmt.Sprintf(
			"timing: cannot run event in the past, evt %s @ %d, now %d",
			reflect.TypeOf(first.Event), t, now,
		))
	}

	e.writeNow(t)

	for {
		next := e.queue.Peek()
		if next == nil || next.Time != t {
			return true, nil
		}

		evt := e.queue.Pop()
		if err := e.dispatch(evt.ScheduledEvent); err != nil {
			return true, err
		}
	}
}

func (e *SerialEngine) dispatch(evt ScheduledEvent) error {
	hookCtx := hooking.HookCtx{
		Domain: e,
		Pos:    HookPosBeforeEvent,
		Item:   evt,
	}
	e.InvokeHook(hookCtx)

	var err error
	if evt.Handler != nil {
		err = evt.Handler.Handle(evt.Event)
	}

	hookCtx.Pos = HookPosAfterEvent
	e.InvokeHook(hookCtx)

	if err != nil {
		return errors.Wrapf(err, "handling %T @ %d ps", evt.Event, evt.Time)
	}

	return nil
}

// StepUntil processes every event due at or before t and then moves the
// current time to t.
func (e *SerialEngine) StepUntil(t VTimeInPs) error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	if now := e.readNow(); t < now {
		panic(fmt.Sprintf("timing: cannot step back to %d, now %d", t, now))
	}

	for {
		next, ok := e.NextEventTime()
		if !ok || next > t {
			break
		}

		if _, err := e.stepPhase(); err != nil {
			return err
		}
	}

	e.writeNow(t)

	return nil
}

// Run processes all scheduled events until the queue drains.
func (e *SerialEngine) Run() error {
	e.singleRunLock.Lock()
	defer e.singleRunLock.Unlock()

	for {
		progressed, err := e.stepPhase()
		if err != nil {
			return err
		}

		if !progressed {
			return nil
		}
	}
}

// Pause prevents the engine from dispatching more events until Continue is
// called.
func (e *SerialEngine) Pause() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if e.isPaused {
		return
	}

	e.pauseLock.Lock()
	e.isPaused = true
}

// Continue resumes event processing after a Pause.
func (e *SerialEngine) Continue() {
	e.isPausedLock.Lock()
	defer e.isPausedLock.Unlock()

	if !e.isPaused {
		return
	}

	e.pauseLock.Unlock()
	e.isPaused = false
}

// CurrentTime returns the time of the most recently processed timepoint.
func (e *SerialEngine) CurrentTime() VTimeInPs {
	return e.readNow()
}

var _ EventScheduler = (*SerialEngine)(nil)
