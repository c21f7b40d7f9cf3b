// Package timing provides the picosecond event queue that drives a
// simulation.
package timing

import "github.com/sarchlab/ahbsim/sim/hooking"

// VTimeInPs is a point on the simulated timeline, in picoseconds.
type VTimeInPs uint64

// Handler processes events. Events are plain data and handlers type-switch
// on them:
//
//	func (h *MyHandler) Handle(event any) error {
//	    switch e := event.(type) {
//	    case *MyEvent:
//	        // handle MyEvent
//	    default:
//	        return fmt.Errorf("unknown event type: %T", event)
//	    }
//	    return nil
//	}
type Handler interface {
	Handle(event any) error
}

// TimeTeller exposes the current simulation time.
type TimeTeller interface {
	CurrentTime() VTimeInPs
}

// EventScheduler schedules events in the simulation timeline.
type EventScheduler interface {
	TimeTeller
	Schedule(event ScheduledEvent)
}

// ScheduledEvent is the engine-facing wrapper for user-defined events.
type ScheduledEvent struct {
	// Event is the payload delivered to the handler.
	Event any

	// Time is when the event should be processed.
	Time VTimeInPs

	// Handler is the object that will process this event.
	Handler Handler

	// IsWakeup marks an external wakeup. Wakeups are processed before every
	// other event due at the same time.
	IsWakeup bool
}

// HookPosBeforeEvent is the hook position fired before an event is handled.
var HookPosBeforeEvent = &hooking.HookPos{Name: "BeforeEvent"}

// HookPosAfterEvent is the hook position fired after an event is handled.
var HookPosAfterEvent = &hooking.HookPos{Name: "AfterEvent"}
