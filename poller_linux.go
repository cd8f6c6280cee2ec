//go:build linux

package hio

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// epollPoller is the Poller adapter for Linux. It is a thin wrapper over
// golang.org/x/sys/unix's epoll primitives, specified only by the Poller
// interface the rest of this package consumes.
type epollPoller struct {
	fd      int
	events  []unix.EpollEvent
}

func newOSPoller() (Poller, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "hio: epoll_create1")
	}
	return &epollPoller{fd: fd, events: make([]unix.EpollEvent, 256)}, nil
}

func toEpollEvents(mask uint32) uint32 {
	var e uint32
	if mask&EventRead != 0 {
		e |= unix.EPOLLIN
	}
	if mask&EventWrite != 0 {
		e |= unix.EPOLLOUT
	}
	return e
}

func fromEpollEvents(e uint32) uint32 {
	var mask uint32
	if e&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		mask |= EventRead
	}
	if e&unix.EPOLLOUT != 0 {
		mask |= EventWrite
	}
	return mask
}

func (p *epollPoller) Add(fd int, events uint32) error {
	ev := unix.EpollEvent{Fd: int32(fd), Events: toEpollEvents(events)}
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *epollPoller) Mod(fd int, events uint32) error {
	ev := unix.EpollEvent{Fd: int32(fd), Events: toEpollEvents(events)}
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (p *epollPoller) Del(fd int, events uint32) error {
	return unix.EpollCtl(p.fd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (p *epollPoller) Wait(timeout time.Duration) ([]PollEvent, error) {
	ms := int(timeout / time.Millisecond)
	if timeout > 0 && ms == 0 {
		ms = 1
	}
	if timeout <= 0 {
		ms = 0
	}

	n, err := unix.EpollWait(p.fd, p.events, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, errors.Wrap(err, "hio: epoll_wait")
	}

	out := make([]PollEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, PollEvent{
			FD:      int(p.events[i].Fd),
			Revents: fromEpollEvents(p.events[i].Events),
		})
	}
	return out, nil
}

func (p *epollPoller) Close() error {
	return unix.Close(p.fd)
}

// eventfdWakeup implements wakeup using an eventfd registered with the
// epoll set, coalescing any number of Wake calls between drains into a
// single readiness notification.
type eventfdWakeup struct {
	fd int
}

func newOSWakeup(p Poller) (wakeup, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "hio: eventfd")
	}
	w := &eventfdWakeup{fd: fd}
	if err := p.Add(fd, EventRead); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "hio: register wakeup fd")
	}
	return w, nil
}

func (w *eventfdWakeup) FD() int { return w.fd }

func (w *eventfdWakeup) Wake() {
	var buf [8]byte
	buf[7] = 1
	_, _ = unix.Write(w.fd, buf[:])
}

func (w *eventfdWakeup) Drain() {
	var buf [8]byte
	_, _ = unix.Read(w.fd, buf[:])
}

func (w *eventfdWakeup) Close() error { return unix.Close(w.fd) }

func newPoller() (Poller, wakeup, error) {
	p, err := newOSPoller()
	if err != nil {
		return nil, nil, err
	}
	w, err := newOSWakeup(p)
	if err != nil {
		p.Close()
		return nil, nil, err
	}
	return p, w, nil
}
