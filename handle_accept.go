package hio

import (
	"syscall"

	"github.com/pkg/errors"
)

// Accept registers the handle (a listening socket) for read readiness;
// each accepted fd becomes a new Handle initialized via hioReady, and the
// accept callback is invoked with it. Returns ErrClosed if h is already
// closed, or ErrNotListener if h already has a peer address, i.e. it is a
// connected socket rather than one still waiting to accept (getpeername
// only succeeds once a socket is connected; a listening socket never has
// one).
func (h *Handle) Accept() error {
	if h.state == stateClosed {
		return ErrClosed
	}
	if h.peerAddr != nil {
		return ErrNotListener
	}
	h.roles.accept = true
	h.loop.wantRead(h, true)
	return nil
}

// onAcceptable is invoked by the Loop when a listening handle's fd reports
// readable. It accepts as many pending connections as are queued, so one
// readiness notification doesn't leave a backlog for the next poller wait.
func (h *Handle) onAcceptable() {
	for {
		connFD, _, err := syscall.Accept(h.fd)
		if err != nil {
			if isTransient(err) {
				return
			}
			h.loop.logger().Warnw("hio: accept failed", "fd", h.fd, "err", err)
			return
		}

		child, err := newHandle(h.loop, connFD)
		if err != nil {
			syscall.Close(connFD)
			h.loop.logger().Warnw("hio: accepted fd failed classification", "err", errors.Wrap(err, "accept"))
			continue
		}
		if h.onAccept != nil {
			h.onAccept(child)
		}
	}
}
