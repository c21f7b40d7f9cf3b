// Package tracing turns hooks raised by the model into tasks and collects
// them into tracers: in-memory statistics or trace files.
package tracing

import (
	"github.com/sarchlab/ahbsim/sim/hooking"
)

// A list of hook poses for the hooks to apply to
var (
	HookPosTaskStart = &hooking.HookPos{Name: "HookPosTaskStart"}
	HookPosTaskStep  = &hooking.HookPos{Name: "HookPosTaskStep"}
	HookPosTaskEnd   = &hooking.HookPos{Name: "HookPosTaskEnd"}
)

// StartTask notifies the hooks that hook to the domain about the start of a
// task.
func StartTask(
	id string,
	parentID string,
	domain hooking.NamedHookable,
	kind string,
	what string,
	cycle uint64,
	detail any,
) {
	StartTaskWithSpecificLocation(
		id, parentID, domain, kind, what, domain.Name(), cycle, detail)
}

// StartTaskWithSpecificLocation is StartTask for a domain that reports tasks
// on behalf of other places in the model.
func StartTaskWithSpecificLocation(
	id string,
	parentID string,
	domain hooking.NamedHookable,
	kind string,
	what string,
	location string,
	cycle uint64,
	detail any,
) {
	if domain.NumHooks() == 0 {
		return
	}

	if id == "" {
		panic("id must not be empty")
	}

	if kind == "" {
		panic("kind must not be empty")
	}

	if what == "" {
		panic("what must not be empty")
	}

	if location == "" {
		panic("location must not be empty")
	}

	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskStart,
		Item: Task{
			ID:         id,
			ParentID:   parentID,
			Kind:       kind,
			What:       what,
			Where:      location,
			StartCycle: cycle,
			Detail:     detail,
		},
	})
}

// AddTaskStep marks that a milestone has been reached when processing a task.
func AddTaskStep(
	id string,
	domain hooking.NamedHookable,
	cycle uint64,
	what string,
) {
	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskStep,
		Item: Task{
			ID:    id,
			Steps: []TaskStep{{Cycle: cycle, What: what}},
		},
	})
}

// EndTask notifies the hooks about the end of a task.
func EndTask(
	id string,
	domain hooking.NamedHookable,
	cycle uint64,
) {
	if domain.NumHooks() == 0 {
		return
	}

	domain.InvokeHook(hooking.HookCtx{
		Domain: domain,
		Pos:    HookPosTaskEnd,
		Item:   Task{ID: id, EndCycle: cycle},
	})
}
