package timing

import (
	"log"
	"reflect"

	"github.com/sarchlab/ahbsim/sim/hooking"
)

// EventLogger is a hook that prints every event before it is handled.
type EventLogger struct {
	Logger *log.Logger
}

// NewEventLogger returns an EventLogger writing into the logger.
func NewEventLogger(logger *log.Logger) *EventLogger {
	return &EventLogger{Logger: logger}
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx hooking.HookCtx) {
	if ctx.Pos != HookPosBeforeEvent {
		return
	}

	evt, ok := ctx.Item.(ScheduledEvent)
	if !ok {
		return
	}

	named, ok := evt.Handler.(hooking.Named)
	if ok {
		h.Logger.Printf("%d, %s -> %s",
			evt.Time, reflect.TypeOf(evt.Event), named.Name())
	} else {
		h.Logger.Printf("%d, %s", evt.Time, reflect.TypeOf(evt.Event))
	}
}
