package hio

import (
	"syscall"

	"github.com/pkg/errors"
)

// ReadStart arms the handle for continuous read delivery: the default mode,
// every readable event delivers (buf, len) to the read callback.
func (h *Handle) ReadStart() {
	h.roles.recv = true
	h.readArmed = true
	h.loop.wantRead(h, true)
}

// ReadStop disarms read delivery without closing the handle.
func (h *Handle) ReadStop() {
	h.roles.recv = false
	h.readArmed = false
	h.loop.wantRead(h, false)
}

// ReadOnce arms the handle for exactly one successful read delivery, then
// disarms.
func (h *Handle) ReadOnce() {
	h.readOnce = true
	h.ReadStart()
}

// ReadUntil ensures a private buffer of at least n bytes and delivers once
// at least n bytes have accumulated. Implemented as read-once plus an
// accumulation floor: each readable event appends to the owned buffer and
// onReadable re-checks the floor until it's reached.
func (h *Handle) ReadUntil(n int) {
	h.ensureOwnedBuf(n)
	h.readUntilN = n
	h.readOnce = true
	h.ReadStart()
}

// SetReadBuf installs buf as the handle's private read buffer, freeing any
// previously owned buffer first.
func (h *Handle) SetReadBuf(buf []byte) {
	h.freeReadBuf()
	h.rbuf = readBuf{data: buf[:0], owned: false}
}

// AllocReadBuf allocates (or reallocates) a private buffer of size n,
// switching the handle from borrowed to owned mode.
func (h *Handle) AllocReadBuf(n int) {
	h.ensureOwnedBuf(n)
}

// FreeReadBuf releases a privately owned buffer and reverts to borrowing
// the Loop's shared buffer.
func (h *Handle) FreeReadBuf() {
	h.freeReadBuf()
}

// ensureOwnedBuf grows (never shrinks implicitly) the private buffer to at
// least n bytes, switching readbuf-borrowed handles to owned mode first.
func (h *Handle) ensureOwnedBuf(n int) {
	if !h.rbuf.owned || cap(h.rbuf.data) < n {
		buf := make([]byte, 0, n)
		h.rbuf.data = buf
		h.rbuf.owned = true
	}
}

// onReadable is invoked by the Loop when the poller reports the fd
// readable. A handle still mid-handshake drives the handshake instead of
// its configured read mode; once TLS (if any) is established, it
// dispatches to the unpack engine, read_until accumulation, or plain
// delivery.
func (h *Handle) onReadable() {
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
	switch {
	case h.unpack != nil:
		h.readUnpacked()
	case h.readUntilN > 0:
		h.readUntilAccumulate()
	default:
		h.readDefault()
	}
}

// classifyRead interprets a raw read result. It returns the number of
// bytes actually usable and whether the caller should proceed to process
// them (false on transient/EOF/fatal, all of which classifyRead has
// already fully handled).
func (h *Handle) classifyRead(n int, err error) (usable int, proceed bool) {
	if err != nil {
		if errors.Is(err, ErrWantWrite) {
			// the TLS session needs to flush outbound data (e.g. an alert or
			// a renegotiation message) before this read can complete.
			h.armWrite()
		}
		if isTransient(err) {
			return 0, false
		}
		h.closeWithError(err)
		return 0, false
	}
	if n == 0 {
		// peer closed: close without error.
		h.Close()
		return 0, false
	}
	h.keepaliveReset()
	return n, true
}

// sysRead reads application data into buf, transparently decrypting
// through the attached TLS session when one is active; otherwise it is a
// plain, non-blocking read(2).
func (h *Handle) sysRead(buf []byte) (int, error) {
	if h.tlsActive() {
		return h.tls.Read(buf)
	}
	return syscall.Read(h.fd, buf)
}

// readDefault reads into the Loop's shared buffer and delivers (buf, len)
// for every readable event, unless read_once disarms delivery after one
// successful read.
func (h *Handle) readDefault() {
	buf := h.loop.sharedReadBuf()
	n, err := h.sysRead(buf)
	usable, ok := h.classifyRead(n, err)
	if !ok {
		return
	}
	h.deliverRead(buf[:usable])
	if h.readOnce {
		h.readOnce = false
		h.ReadStop()
	}
}

// readUntilAccumulate reads into the owned buffer and delivers the whole
// accumulated slice once it reaches readUntilN bytes.
func (h *Handle) readUntilAccumulate() {
	h.growOwnedForAppend()
	n, err := h.sysRead(h.rbuf.data[len(h.rbuf.data):cap(h.rbuf.data)])
	usable, ok := h.classifyRead(n, err)
	if !ok {
		return
	}
	h.rbuf.data = h.rbuf.data[:len(h.rbuf.data)+usable]
	if len(h.rbuf.data) < h.readUntilN {
		return
	}
	delivered := h.rbuf.data
	h.autoSizeReadBuf(len(delivered))
	h.rbuf.data = h.rbuf.data[:0]
	h.readUntilN = 0
	h.deliverRead(delivered)
	if h.readOnce {
		h.readOnce = false
		h.ReadStop()
	}
}

// readUnpacked reads into the owned buffer and lets the framing engine
// (unpack.go) carve zero or more complete records out of it.
func (h *Handle) readUnpacked() {
	h.growOwnedForAppend()
	n, err := h.sysRead(h.rbuf.data[len(h.rbuf.data):cap(h.rbuf.data)])
	usable, ok := h.classifyRead(n, err)
	if !ok {
		return
	}
	h.rbuf.data = h.rbuf.data[:len(h.rbuf.data)+usable]
	records, residue, uerr := h.unpackState.feed(h.unpack, h.rbuf.data)
	if uerr != nil {
		h.closeWithError(uerr)
		return
	}
	delivered := len(h.rbuf.data) - len(residue)
	h.autoSizeReadBuf(delivered)
	h.rbuf.data = append(h.rbuf.data[:0], residue...)
	for _, rec := range records {
		h.deliverRead(rec)
		if h.state != stateReady {
			return
		}
	}
}

// growOwnedForAppend doubles the owned buffer's capacity if it has no room
// left to append a read.
func (h *Handle) growOwnedForAppend() {
	if cap(h.rbuf.data)-len(h.rbuf.data) > 0 {
		return
	}
	newCap := cap(h.rbuf.data) * readBufGrowFactor
	if newCap == 0 {
		newCap = DefaultReadBufSize
	}
	buf := make([]byte, len(h.rbuf.data), newCap)
	copy(buf, h.rbuf.data)
	h.rbuf.data = buf
	h.rbuf.owned = true
}

// autoSizeReadBuf implements a high-water shrink heuristic: once the
// owned buffer exceeds ReadBufSizeHighWater, SmallReadCountThreshold
// consecutive deliveries smaller than half the buffer trigger a halving.
func (h *Handle) autoSizeReadBuf(delivered int) {
	if !h.rbuf.owned || cap(h.rbuf.data) <= ReadBufSizeHighWater {
		h.smallReads = 0
		return
	}
	if delivered < cap(h.rbuf.data)/2 {
		h.smallReads++
		if h.smallReads >= SmallReadCountThreshold {
			newCap := cap(h.rbuf.data) / readBufShrinkFactor
			if newCap < DefaultReadBufSize {
				newCap = DefaultReadBufSize
			}
			h.rbuf.data = make([]byte, 0, newCap)
			h.smallReads = 0
		}
	} else {
		h.smallReads = 0
	}
}

func (h *Handle) deliverRead(buf []byte) {
	if h.onRead != nil {
		h.onRead(h, buf)
	}
}

// keepaliveReset resets the keepalive timer on every successful read.
func (h *Handle) keepaliveReset() {
	if t := h.timers[timerSlotKeepalive]; t != nil {
		h.loop.timerReset(t)
	}
}
