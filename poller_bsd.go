//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package hio

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// kqueuePoller is the Poller adapter for the BSD family (including
// darwin). Read and write interest are tracked as independent kevent
// filters since kqueue, unlike epoll, has no single combined readiness
// mask per fd.
type kqueuePoller struct {
	fd      int
	events  []unix.Kevent_t
	masks   map[int]uint32
}

func newOSPoller() (Poller, error) {
	fd, err := unix.Kqueue()
	if err != nil {
		return nil, errors.Wrap(err, "hio: kqueue")
	}
	unix.CloseOnExec(fd)
	return &kqueuePoller{fd: fd, events: make([]unix.Kevent_t, 256), masks: make(map[int]uint32)}, nil
}

func (p *kqueuePoller) apply(fd int, from, to uint32) error {
	var changes []unix.Kevent_t
	readOn, writeOn := from&EventRead != 0, from&EventWrite != 0
	readWant, writeWant := to&EventRead != 0, to&EventWrite != 0

	if readWant && !readOn {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD})
	} else if !readWant && readOn {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE})
	}
	if writeWant && !writeOn {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_ADD})
	} else if !writeWant && writeOn {
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE})
	}

	if len(changes) > 0 {
		if _, err := unix.Kevent(p.fd, changes, nil, nil); err != nil {
			return errors.Wrap(err, "hio: kevent register")
		}
	}
	p.masks[fd] = to
	return nil
}

func (p *kqueuePoller) Add(fd int, events uint32) error { return p.apply(fd, 0, events) }
func (p *kqueuePoller) Mod(fd int, events uint32) error { return p.apply(fd, p.masks[fd], events) }
func (p *kqueuePoller) Del(fd int, events uint32) error {
	err := p.apply(fd, p.masks[fd], 0)
	delete(p.masks, fd)
	return err
}

func (p *kqueuePoller) Wait(timeout time.Duration) ([]PollEvent, error) {
	if timeout < 0 {
		timeout = 0
	}
	ts := unix.NsecToTimespec(timeout.Nanoseconds())

	n, err := unix.Kevent(p.fd, nil, p.events, &ts)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, errors.Wrap(err, "hio: kevent wait")
	}

	byFD := make(map[int]uint32, n)
	for i := 0; i < n; i++ {
		fd := int(p.events[i].Ident)
		switch p.events[i].Filter {
		case unix.EVFILT_READ:
			byFD[fd] |= EventRead
		case unix.EVFILT_WRITE:
			byFD[fd] |= EventWrite
		}
	}
	out := make([]PollEvent, 0, len(byFD))
	for fd, mask := range byFD {
		out = append(out, PollEvent{FD: fd, Revents: mask})
	}
	return out, nil
}

func (p *kqueuePoller) Close() error { return unix.Close(p.fd) }

// pipeWakeup implements wakeup with a self-pipe, the classic kqueue-side
// equivalent of Linux's eventfd.
type pipeWakeup struct {
	r, w int
}

func newOSWakeup(p Poller) (wakeup, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, errors.Wrap(err, "hio: pipe2")
	}
	w := &pipeWakeup{r: fds[0], w: fds[1]}
	if err := p.Add(w.r, EventRead); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, errors.Wrap(err, "hio: register wakeup pipe")
	}
	return w, nil
}

func (w *pipeWakeup) FD() int { return w.r }

func (w *pipeWakeup) Wake() {
	var b [1]byte
	_, _ = unix.Write(w.w, b[:])
}

func (w *pipeWakeup) Drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(w.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (w *pipeWakeup) Close() error {
	unix.Close(w.w)
	return unix.Close(w.r)
}

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
