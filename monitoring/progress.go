package monitoring

import (
	"sync"
	"time"

	"github.com/sarchlab/ahbsim/bus/stages"
	"github.com/sarchlab/ahbsim/sim/hooking"
)

// A ProgressBar is a tracker of the progress
type ProgressBar struct {
	sync.Mutex
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	StartTime  time.Time `json:"start_time"`
	Total      uint64    `json:"total"`
	Finished   uint64    `json:"finished"`
	InProgress uint64    `json:"in_progress"`
}

// IncrementInProgress adds the number of in-progress element.
func (b *ProgressBar) IncrementInProgress(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress += amount
}

// IncrementFinished add a certain amount to finished element.
func (b *ProgressBar) IncrementFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.Finished += amount
}

// MoveInProgressToFinished reduces the number of in progress item by a certain
// amount and increase the finished item by the same amount.
func (b *ProgressBar) MoveInProgressToFinished(amount uint64) {
	b.Lock()
	defer b.Unlock()

	b.InProgress -= amount
	b.Finished += amount
}

// TransferCounter is a hook that moves a progress bar along as transfers
// pass through the input stages it is attached to.
type TransferCounter struct {
	Bar *ProgressBar
}

// Func counts a started transfer as in progress and an ended one as
// finished.
func (c TransferCounter) Func(ctx hooking.HookCtx) {
	switch ctx.Pos {
	case stages.HookPosTransferStart:
		c.Bar.IncrementInProgress(1)
	case stages.HookPosTransferEnd:
		c.Bar.MoveInProgressToFinished(1)
	}
}
