package hio

import "sync"

// postedEvent is one {callback, priority} entry queued by PostEvent.
type postedEvent struct {
	fn       func()
	priority Priority
}

// eventQueue is the lock-protected FIFO any thread may append to; only the
// owning Loop ever drains it. Draining swaps the live slice for an idle
// scratch slice under the lock, so the lock is held only for the pointer
// swap, never for the length of the drain.
type eventQueue struct {
	mu     sync.Mutex
	high   []postedEvent
	normal []postedEvent
	scratchHigh   []postedEvent
	scratchNormal []postedEvent
}

func newEventQueue() *eventQueue {
	return &eventQueue{}
}

// post appends fn under the lock. The reactor is woken separately by the
// caller (Loop.PostEvent wakes the poller via its self-pipe/eventfd); post
// itself never blocks and never wakes anything, so it stays cheap to call
// from any thread at any rate.
func (q *eventQueue) post(fn func(), priority Priority) {
	q.mu.Lock()
	if priority == PriorityHigh {
		q.high = append(q.high, postedEvent{fn: fn, priority: priority})
	} else {
		q.normal = append(q.normal, postedEvent{fn: fn, priority: priority})
	}
	q.mu.Unlock()
}

// drain returns every event posted since the last drain, HIGH priority
// first. The returned slice is only valid until the next call to drain.
func (q *eventQueue) drain() []postedEvent {
	q.mu.Lock()
	q.high, q.scratchHigh = q.scratchHigh[:0], q.high
	q.normal, q.scratchNormal = q.scratchNormal[:0], q.normal
	high, normal := q.scratchHigh, q.scratchNormal
	q.mu.Unlock()

	if len(high) == 0 {
		return normal
	}
	if len(normal) == 0 {
		return high
	}
	out := make([]postedEvent, 0, len(high)+len(normal))
	out = append(out, high...)
	out = append(out, normal...)
	return out
}
