package hio

import (
	"syscall"

	"github.com/pkg/errors"
)

// Write enqueues buf for delivery. If the queue is empty, it first
// attempts a direct non-blocking send; on partial success the remainder
// is enqueued (copied into an owned buffer); on would-block the whole
// buffer is enqueued; on a fatal error the handle records the error and
// closes. Subsequent writes always append to a non-empty queue,
// preserving order.
func (h *Handle) Write(buf []byte) {
	if h.state != stateReady || len(buf) == 0 {
		return
	}
	if h.rawWriter != nil {
		// Not fd-backed (e.g. a KCP session adopted by wrapKCPSession):
		// the underlying session owns its own buffering, so hio just
		// forwards the call and reports it back through the write
		// callback, the same observable contract as the fd-backed path.
		if _, err := h.rawWriter(buf); err != nil {
			h.closeWithError(err)
			return
		}
		h.fireWriteCallback(buf)
		return
	}
	if h.draining {
		// re-entrant call from within onWritable's write callback: just
		// append, the drain loop will pick it up.
		h.wq.pushBack(buf)
		return
	}
	if h.tlsActive() && !h.tlsHandshakeDone {
		// handshake still in flight: queue and let onWritable/onReadable
		// drain once the session is established.
		h.wq.pushBack(buf)
		h.armWrite()
		return
	}
	if !h.wq.empty() {
		h.wq.pushBack(buf)
		return
	}

	n, err := h.sysWrite(buf)
	switch {
	case err != nil && errors.Is(err, ErrWantRead):
		// the TLS session needs inbound data (e.g. a renegotiation message)
		// before it can finish sending; wait on both directions.
		h.loop.wantRead(h, true)
		h.wq.pushBack(buf)
		h.armWrite()
	case err != nil && isTransient(err):
		h.wq.pushBack(buf)
		h.armWrite()
	case err != nil:
		h.closeWithError(err)
	case n == len(buf):
		h.fireWriteCallback(buf)
	default:
		h.wq.pushBack(buf[n:])
		h.armWrite()
	}
}

// sysWrite writes buf, transparently encrypting through the attached TLS
// session when one is active; otherwise it is a plain, non-blocking
// write(2).
func (h *Handle) sysWrite(buf []byte) (int, error) {
	if h.tlsActive() {
		return h.tls.Write(buf)
	}
	return syscall.Write(h.fd, buf)
}

func (h *Handle) armWrite() {
	h.roles.send = true
	h.wantW = true
	h.loop.wantWrite(h, true)
}

func (h *Handle) disarmWrite() {
	h.roles.send = false
	h.wantW = false
	h.loop.wantWrite(h, false)
}

// onWritable drains from the front of the write queue, invoking the write
// callback with each chunk as it is sent; once the queue is empty, the
// handle unregisters write interest. A handle still mid-handshake drives
// the handshake instead of draining application data.
func (h *Handle) onWritable() {
	if h.tlsActive() {
		done, err := h.ensureHandshake()
		if err != nil {
			h.closeWithError(err)
			return
		}
		if !done {
			return
		}
	}

	h.draining = true
	defer func() { h.draining = false }()

	for {
		entry := h.wq.front()
		if entry == nil {
			h.disarmWrite()
			return
		}

		n, err := h.sysWrite(entry.buf[entry.offset:])
		if err != nil {
			if errors.Is(err, ErrWantRead) {
				h.loop.wantRead(h, true)
				return
			}
			if isTransient(err) {
				return
			}
			h.closeWithError(err)
			return
		}

		sent := entry.buf[entry.offset : entry.offset+n]
		h.wq.advance(n)
		h.fireWriteCallback(sent)

		if h.state != stateReady {
			return
		}
	}
}

func (h *Handle) fireWriteCallback(chunk []byte) {
	if h.onWrite != nil {
		h.onWrite(h, chunk)
	}
}

// WriteQueueBytes returns the sum of remaining bytes across all queued
// write entries.
func (h *Handle) WriteQueueBytes() int { return h.wq.bytes }
