package hio

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Loop is the single-threaded reactor: it owns a shared default read
// buffer, the timer wheel, the cross-thread event queue, the platform
// poller, a current-time snapshot, and the registry of live handles.
// Exactly one goroutine may drive a given Loop (call Run).
type Loop struct {
	poller Poller
	wake   wakeup

	events *eventQueue
	timers timerHeap

	ids idCounter

	handles map[uint32]*Handle
	byFD    map[int]*Handle

	now time.Time

	sharedBuf []byte

	log *zap.Logger

	running  bool
	stopped  int32
	stopCh   chan struct{}
	stopOnce sync.Once
	autoFree bool
	idleMax  time.Duration
}

// LoopOption configures a Loop at construction time.
type LoopOption func(*Loop)

// WithLogger injects a *zap.Logger for lifecycle/error logging. The
// default is zap.NewNop().
func WithLogger(l *zap.Logger) LoopOption {
	return func(lp *Loop) { lp.log = l }
}

// WithSharedReadBufSize overrides DefaultReadBufSize for this Loop's shared
// read buffer.
func WithSharedReadBufSize(n int) LoopOption {
	return func(lp *Loop) { lp.sharedBuf = make([]byte, n) }
}

// WithAutoFree exits Run once no handles or timers remain.
func WithAutoFree() LoopOption {
	return func(lp *Loop) { lp.autoFree = true }
}

// WithIdleMax overrides IDLE_MAX, the ceiling on how long a poller wait may
// block when no timer is scheduled.
func WithIdleMax(d time.Duration) LoopOption {
	return func(lp *Loop) { lp.idleMax = d }
}

// NewLoop constructs a Loop backed by the platform's native poller
// (epoll on linux, kqueue on the BSDs/darwin).
func NewLoop(opts ...LoopOption) (*Loop, error) {
	p, w, err := newPoller()
	if err != nil {
		return nil, errors.Wrap(err, "hio: create poller")
	}

	lp := &Loop{
		poller:    p,
		wake:      w,
		events:    newEventQueue(),
		handles:   make(map[uint32]*Handle),
		byFD:      make(map[int]*Handle),
		sharedBuf: make([]byte, DefaultReadBufSize),
		log:       zap.NewNop(),
		stopCh:    make(chan struct{}),
		idleMax:   IdleMax,
	}
	for _, opt := range opts {
		opt(lp)
	}
	lp.now = time.Now()
	return lp, nil
}

func (lp *Loop) logger() *zap.SugaredLogger { return lp.log.Sugar() }

// Now returns the Loop's current-time snapshot, refreshed once per
// iteration.
func (lp *Loop) Now() time.Time { return lp.now }

// UpdateTime force-refreshes the current-time snapshot outside the normal
// loop cadence.
func (lp *Loop) UpdateTime() { lp.now = time.Now() }

// PostEvent enqueues fn for execution on the Loop's own goroutine, safe to
// call from any thread. Returns ErrLoopStopped without enqueueing fn if
// the loop has already been stopped.
func (lp *Loop) PostEvent(fn func(), priority Priority) error {
	if atomic.LoadInt32(&lp.stopped) != 0 {
		return ErrLoopStopped
	}
	lp.events.post(fn, priority)
	lp.wake.Wake()
	return nil
}

// Stop requests Run to return after the current iteration. Safe to call
// from any thread.
func (lp *Loop) Stop() {
	lp.stopOnce.Do(func() {
		atomic.StoreInt32(&lp.stopped, 1)
		close(lp.stopCh)
		lp.wake.Wake()
	})
}

// Run blocks the calling thread, driving the reactor until Stop is called
// or (with WithAutoFree) no handles or timers remain. Apart from writes on
// UDP and raw-IP handles, whose fds stay blocking, the poller wait inside
// Run is the only blocking point in the package.
func (lp *Loop) Run() error {
	lp.running = true
	defer func() { lp.running = false }()

	for {
		select {
		case <-lp.stopCh:
			return nil
		default:
		}

		waitFor := lp.idleMax
		if d, ok := lp.timers.nextDeadline(); ok {
			until := d.Sub(lp.now)
			if until < 0 {
				until = 0
			}
			if until < waitFor {
				waitFor = until
			}
		}

		evs, err := lp.poller.Wait(waitFor)
		if err != nil {
			return errors.Wrap(err, "hio: poller wait")
		}

		lp.UpdateTime()

		for _, t := range lp.timers.popExpired(lp.now) {
			if t.callback != nil {
				t.callback(t)
			}
		}

		for _, pe := range lp.events.drain() {
			if pe.fn != nil {
				pe.fn()
			}
		}

		for _, ev := range evs {
			if ev.FD == lp.wake.FD() {
				lp.wake.Drain()
				continue
			}
			h, ok := lp.byFD[ev.FD]
			if !ok {
				continue
			}
			lp.dispatch(h, ev.Revents)
		}

		if lp.autoFree && len(lp.handles) == 0 && lp.timers.Len() == 0 {
			return nil
		}
	}
}

// dispatch routes one readiness notification to a handle's read side,
// then its write side (a handle closed while handling the read side is
// not dispatched a write event in the same pass).
func (lp *Loop) dispatch(h *Handle, revents uint32) {
	defer lp.recoverCallback(h)

	if revents&EventRead != 0 {
		if h.roles.accept {
			h.onAcceptable()
		} else {
			h.onReadable()
		}
	}
	if h.state != stateReady {
		return
	}
	if revents&EventWrite != 0 {
		if h.roles.connect {
			h.onWritableConnecting()
		} else {
			h.onWritable()
		}
	}
}

// recoverCallback catches a panicking user callback so it can never unwind
// through the reactor loop: it is logged and the offending handle closed.
func (lp *Loop) recoverCallback(h *Handle) {
	if r := recover(); r != nil {
		lp.logger().Errorw("hio: recovered panic in handle callback", "handle_id", h.ID(), "panic", r)
		h.closeWithError(errors.Errorf("hio: panic in callback: %v", r))
	}
}

func (lp *Loop) sharedReadBuf() []byte { return lp.sharedBuf }

func (lp *Loop) registerHandle(h *Handle) {
	lp.handles[h.id] = h
	lp.byFD[h.fd] = h
}

func (lp *Loop) unregisterHandle(h *Handle) {
	delete(lp.handles, h.id)
	if h.fd >= 0 {
		// Raw handles (wrapKCPSession, wrapMuxStream) have fd == -1 and were
		// never inserted into byFD in the first place.
		delete(lp.byFD, h.fd)
	}
}

// registerPoller adds fd to the poller with the given initial mask and
// records both the handle's current mask and the fact that it is now a
// live poller member, so a later setMask call uses Mod instead of
// re-issuing Add against an fd the kernel already knows about.
func (lp *Loop) registerPoller(h *Handle, mask uint32) error {
	h.ready = mask
	h.polled = true
	return lp.poller.Add(h.fd, mask)
}

func (lp *Loop) unregisterFromPoller(h *Handle) {
	if h.polled {
		_ = lp.poller.Del(h.fd, h.ready)
		h.polled = false
		h.ready = 0
	}
}

func (lp *Loop) wantRead(h *Handle, want bool) {
	lp.setMask(h, EventRead, want)
}

func (lp *Loop) wantWrite(h *Handle, want bool) {
	lp.setMask(h, EventWrite, want)
}

// setMask updates h's interest bits and reconciles the poller registration
// to match: Add when the fd is not currently a poller member (h.polled
// false), Del once the mask drops to zero, Mod otherwise. Add is decided by
// h.polled rather than by the previous mask being zero, because
// registerPoller may add an fd with an empty interest mask, and re-adding
// it would return EEXIST.
func (lp *Loop) setMask(h *Handle, bit uint32, want bool) {
	prev := h.ready
	if want {
		h.ready |= bit
	} else {
		h.ready &^= bit
	}
	if h.ready == prev {
		return
	}
	switch {
	case !h.polled:
		h.polled = true
		_ = lp.poller.Add(h.fd, h.ready)
	case h.ready == 0:
		_ = lp.poller.Del(h.fd, prev)
		h.polled = false
	default:
		_ = lp.poller.Mod(h.fd, h.ready)
	}
}

// NumHandles returns the number of live handles registered with this Loop.
func (lp *Loop) NumHandles() int { return len(lp.handles) }

// --- timer wheel plumbing, used by handle_timers.go ---

func (lp *Loop) timerAddOnce(d time.Duration, owner *Handle, fn func(*Timer)) *Timer {
	t := &Timer{deadline: lp.now.Add(d), resetDuration: d, owner: owner, callback: fn}
	lp.timers.add(t)
	return t
}

func (lp *Loop) timerAddRepeating(d time.Duration, repeatCount int, owner *Handle, fn func(*Timer)) *Timer {
	t := &Timer{deadline: lp.now.Add(d), interval: d, repeatCount: repeatCount, owner: owner, callback: fn}
	lp.timers.add(t)
	return t
}

func (lp *Loop) timerDel(t *Timer) {
	lp.timers.remove(t)
}

// timerReset re-arms a one-shot timer's deadline in place, used to push a
// keepalive or idle deadline back out on every read.
func (lp *Loop) timerReset(t *Timer) {
	lp.timers.remove(t)
	t.deadline = lp.now.Add(t.resetDuration)
	lp.timers.add(t)
}

// TimerAdd schedules fn to run on the Loop's own goroutine after d,
// independent of any owning handle. With repeat true it fires every d
// until cancelled via TimerDel.
func (lp *Loop) TimerAdd(d time.Duration, repeat bool, fn func(*Timer)) *Timer {
	if repeat {
		return lp.timerAddRepeating(d, -1, nil, fn)
	}
	return lp.timerAddOnce(d, nil, fn)
}

// TimerDel cancels a timer added via TimerAdd or any Handle timer helper.
func (lp *Loop) TimerDel(t *Timer) { lp.timerDel(t) }
