package hio

import (
	"testing"
	"time"
)

func TestTimerHeapOrdersByDeadlineThenInsertion(t *testing.T) {
	var h timerHeap
	base := time.Unix(0, 0)

	t2 := &Timer{deadline: base.Add(2 * time.Second)}
	t1a := &Timer{deadline: base.Add(1 * time.Second)}
	t1b := &Timer{deadline: base.Add(1 * time.Second)}

	h.add(t2)
	h.add(t1a)
	h.add(t1b)

	fired := h.popExpired(base.Add(3 * time.Second))
	if len(fired) != 3 {
		t.Fatalf("got %d fired, want 3", len(fired))
	}
	if fired[0] != t1a || fired[1] != t1b || fired[2] != t2 {
		t.Fatalf("fired out of order: %+v", fired)
	}
}

func TestTimerHeapPopExpiredRespectsDeadline(t *testing.T) {
	var h timerHeap
	base := time.Unix(0, 0)

	early := &Timer{deadline: base.Add(1 * time.Second)}
	late := &Timer{deadline: base.Add(5 * time.Second)}
	h.add(early)
	h.add(late)

	fired := h.popExpired(base.Add(2 * time.Second))
	if len(fired) != 1 || fired[0] != early {
		t.Fatalf("got %+v, want only early", fired)
	}

	d, ok := h.nextDeadline()
	if !ok || !d.Equal(late.deadline) {
		t.Fatalf("nextDeadline = %v, %v; want %v, true", d, ok, late.deadline)
	}
}

func TestTimerHeapRepeatingReschedulesInPlace(t *testing.T) {
	var h timerHeap
	base := time.Unix(0, 0)

	rt := &Timer{deadline: base.Add(time.Second), interval: time.Second, repeatCount: -1}
	h.add(rt)

	fired := h.popExpired(base.Add(time.Second))
	if len(fired) != 1 || fired[0] != rt {
		t.Fatalf("got %+v, want [rt]", fired)
	}
	if h.Len() != 1 {
		t.Fatalf("repeating timer was not re-added, heap len = %d", h.Len())
	}
	if !rt.deadline.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("got rescheduled deadline %v, want %v", rt.deadline, base.Add(2*time.Second))
	}
}

func TestTimerHeapRemoveIsSafeOnAlreadyFired(t *testing.T) {
	var h timerHeap
	base := time.Unix(0, 0)

	rt := &Timer{deadline: base.Add(time.Second)}
	h.add(rt)
	h.popExpired(base.Add(time.Second))

	// rt.index is now -1; remove must be a no-op, not a panic.
	h.remove(rt)
}
