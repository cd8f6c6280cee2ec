package hio

import "time"

// SetConnectTimeout arms a one-shot timer that records ErrTimeout and
// closes the handle if the in-flight connect hasn't completed by ms.
// ms==0 deletes the timer.
func (h *Handle) SetConnectTimeout(ms int) {
	h.setOneShotTimer(timerSlotConnect, ms, func(*Timer) {
		h.closeWithError(ErrTimeout)
	})
}

// SetCloseTimeout arms a one-shot timer that forces the handle closed even
// if its write queue is non-empty.
func (h *Handle) SetCloseTimeout(ms int) {
	h.setOneShotTimer(timerSlotClose, ms, func(*Timer) {
		h.Close()
	})
}

// SetKeepaliveTimeout arms a one-shot timer, reset on every read, that
// records ErrTimeout and closes the handle if ms elapses with no data.
func (h *Handle) SetKeepaliveTimeout(ms int) {
	h.setOneShotTimer(timerSlotKeepalive, ms, func(*Timer) {
		h.closeWithError(ErrTimeout)
	})
}

// SetHeartbeat arms a repeating timer that invokes fn every interval ms.
// ms==0 deletes the timer.
func (h *Handle) SetHeartbeat(ms int, fn HeartbeatFunc) {
	h.cancelTimerSlot(timerSlotHeartbeat)
	if ms <= 0 || fn == nil {
		return
	}
	h.heartbeatFn = fn
	t := h.loop.timerAddRepeating(time.Duration(ms)*time.Millisecond, -1, h, func(*Timer) {
		if h.state == stateReady && h.heartbeatFn != nil {
			h.heartbeatFn(h)
		}
	})
	h.timers[timerSlotHeartbeat] = t
}

// setOneShotTimer is the shared implementation for the three one-shot
// per-handle timers: ms==0 deletes the timer; re-setting adjusts the
// deadline in place.
func (h *Handle) setOneShotTimer(slot int, ms int, fn func(*Timer)) {
	h.cancelTimerSlot(slot)
	if ms <= 0 {
		return
	}
	h.timers[slot] = h.loop.timerAddOnce(time.Duration(ms)*time.Millisecond, h, fn)
}

// cancelTimerSlot deletes and nulls the timer in slot i so a stale
// pointer is never mistaken for a still-armed timer.
func (h *Handle) cancelTimerSlot(i int) {
	if t := h.timers[i]; t != nil {
		h.loop.timerDel(t)
		h.timers[i] = nil
	}
}

