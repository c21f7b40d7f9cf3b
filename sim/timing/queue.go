package timing

import (
	"container/heap"
	"sync"
)

// queuedEvent pairs an event with its insertion order so that events due at
// the same time come out first-in first-out.
type queuedEvent struct {
	ScheduledEvent
	seq uint64
}

type futureEventQueue struct {
	sync.Mutex
	events  futureEventHeap
	nextSeq uint64
}

func newFutureEventQueue() *futureEventQueue {
	q := &futureEventQueue{}
	q.events = make([]*queuedEvent, 0)
	heap.Init(&q.events)

	return q
}

func (q *futureEventQueue) Push(evt ScheduledEvent) {
	q.Lock()
	heap.Push(&q.events, &queuedEvent{ScheduledEvent: evt, seq: q.nextSeq})
	q.nextSeq++
	q.Unlock()
}

func (q *futureEventQueue) Pop() *queuedEvent {
	q.Lock()
	defer q.Unlock()

	if q.events.Len() == 0 {
		return nil
	}

	return heap.Pop(&q.events).(*queuedEvent)
}

func (q *futureEventQueue) Len() int {
	q.Lock()
	defer q.Unlock()

	return q.events.Len()
}

func (q *futureEventQueue) Peek() *queuedEvent {
	q.Lock()
	defer q.Unlock()

	if q.events.Len() == 0 {
		return nil
	}

	return q.events[0]
}

type futureEventHeap []*queuedEvent

func (h futureEventHeap) Len() int { return len(h) }

func (h futureEventHeap) Less(i, j int) bool {
	if h[i].Time != h[j].Time {
		return h[i].Time < h[j].Time
	}

	if h[i].IsWakeup != h[j].IsWakeup {
		return h[i].IsWakeup
	}

	return h[i].seq < h[j].seq
}

func (h futureEventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *futureEventHeap) Push(x any) {
	evt := x.(*queuedEvent)
	*h = append(*h, evt)
}

func (h *futureEventHeap) Pop() any {
	old := *h
	n := len(old)
	evt := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]

	return evt
}
