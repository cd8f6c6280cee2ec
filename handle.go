package hio

import (
	"net"
	"sync"
	"syscall"

	"github.com/pkg/errors"
)

// state is the Handle lifecycle: UNINIT -> READY -> CLOSING -> CLOSED.
type state int

const (
	stateUninit state = iota
	stateReady
	stateClosing
	stateClosed
)

// readBuf is a tagged union: either borrowed from the owning Loop's shared
// buffer, or privately owned by the Handle. owned discriminates the two;
// switching modes always frees the owned variant first (see
// Handle.freeReadBuf).
type readBuf struct {
	data  []byte
	owned bool
}

// Handle is the per-connection object: a reference-stable struct uniquely
// identified by a monotonically increasing 32-bit id. It is always
// heap-allocated (via newHandle) and never copied.
type Handle struct {
	id    uint32
	fd    int
	typ   IOType
	state state

	UsesTLS bool
	tls     TLSSession
	// tlsHandshakeDone is set once h.tls.Handshake() has returned nil; until
	// then, onReadable/onWritable drive the handshake instead of ferrying
	// application data.
	tlsHandshakeDone bool

	localAddr net.Addr
	peerAddr  net.Addr

	loop *Loop

	// read side
	rbuf        readBuf
	readOnce    bool
	readArmed   bool
	readUntilN  int
	unpack      *UnpackSetting
	unpackState unpackState
	smallReads  int

	// write side. All Handle state, including wq, is only ever touched from
	// the owning Loop's goroutine, so draining the queue and re-entering
	// Write from within the write callback it invokes is plain
	// same-goroutine recursion — no lock is needed, and a real sync.Mutex
	// would self-deadlock on that recursion. draining tracks whether we're
	// inside onWritable purely so Write knows not to attempt a redundant
	// direct send.
	wq       writeQueue
	wantW    bool
	draining bool

	// rawWriter/rawCloser back a Handle that isn't fd-backed at all (e.g. a
	// KCP session adapted by wrapKCPSession in kcpupstream.go): when set,
	// Write and Close delegate to them instead of syscall.Write/Close.
	rawWriter func([]byte) (int, error)
	rawCloser func()

	// timers: connect-timeout, close-timeout, keepalive, heartbeat, in that
	// fixed slot order.
	timers [4]*Timer

	upstream *Handle

	Err    error
	ready  uint32 // current poller interest mask, bit-tested against EventRead/EventWrite
	polled bool   // true while the fd is a member of the poller set
	roles  roleFlags

	Context interface{}

	onAccept    AcceptCallback
	onConnect   ConnectCallback
	onRead      ReadCallback
	onWrite     WriteCallback
	onClose     CloseCallback
	heartbeatFn HeartbeatFunc

	closeOnce sync.Once
}

const (
	timerSlotConnect = iota
	timerSlotClose
	timerSlotKeepalive
	timerSlotHeartbeat
)

// roleFlags track which I/O intents are currently armed on the handle.
type roleFlags struct {
	accept  bool
	connect bool
	recv    bool
	send    bool
	closing bool
}

type (
	AcceptCallback   func(*Handle)
	ConnectCallback  func(*Handle)
	ReadCallback     func(*Handle, []byte)
	WriteCallback    func(*Handle, []byte)
	CloseCallback    func(*Handle)
	HeartbeatFunc    func(*Handle)
)

// ID returns the handle's id, unique within its owning Loop's lifetime.
func (h *Handle) ID() uint32 { return h.id }

// FD returns the underlying file descriptor.
func (h *Handle) FD() int { return h.fd }

// Type returns the classified socket/file type.
func (h *Handle) Type() IOType { return h.typ }

// LocalAddr returns the bound local address, zero if getsockname failed.
func (h *Handle) LocalAddr() net.Addr { return h.localAddr }

// PeerAddr returns the connected peer address, zero if getpeername failed.
func (h *Handle) PeerAddr() net.Addr { return h.peerAddr }

// IsClosed reports whether the handle has completed shutdown.
func (h *Handle) IsClosed() bool { return h.state == stateClosed }

// IsReady reports whether the handle is registered and live: ready
// implies not closed.
func (h *Handle) IsReady() bool { return h.state == stateReady }

func (h *Handle) OnAccept(cb AcceptCallback)       { h.onAccept = cb }
func (h *Handle) OnConnect(cb ConnectCallback)     { h.onConnect = cb }
func (h *Handle) OnRead(cb ReadCallback)           { h.onRead = cb }
func (h *Handle) OnWrite(cb WriteCallback)         { h.onWrite = cb }
func (h *Handle) OnClose(cb CloseCallback)         { h.onClose = cb }

// newHandle allocates and classifies a Handle for fd, entering READY via
// hioReady. Every Handle in a Loop's registry was constructed this way.
func newHandle(loop *Loop, fd int) (*Handle, error) {
	h := &Handle{loop: loop, fd: fd}
	if err := h.hioReady(); err != nil {
		return nil, err
	}
	return h, nil
}

// hioReady resets all per-activation fields, assigns a fresh id, classifies
// the fd, and performs socket-specific init.
func (h *Handle) hioReady() error {
	h.id = h.loop.ids.alloc()
	h.typ = classify(h.fd)
	h.state = stateReady

	if h.typ != TypeUDP && h.typ != TypeRawIP {
		if err := syscall.SetNonblock(h.fd, true); err != nil {
			return errors.Wrap(err, "hio: set nonblocking")
		}
	}
	// DGRAM/RAW sockets are left blocking: datagram sends target arbitrary
	// peers and cannot use the shared write queue.

	if addr, err := localAddrOf(h.fd); err == nil {
		h.localAddr = addr
	} else {
		h.loop.logger().Warnw("hio: getsockname failed, local address left zeroed", "fd", h.fd, "err", err)
	}
	if addr, err := peerAddrOf(h.fd); err == nil {
		h.peerAddr = addr
	}
	// getpeername failure is expected (e.g. listening sockets) and left
	// silent; only getsockname logs.

	h.loop.registerHandle(h)
	return nil
}

// Close begins (or no-ops on) the CLOSING->CLOSED transition. Idempotent:
// a second call does nothing and fires no further callbacks.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		h.hioClose()
	})
}

// closeWithError records err (if not already recorded) then closes. Fatal
// OS-level socket errors are also logged at Warn, since they usually
// indicate a genuine network failure rather than an application-chosen
// condition such as a configured timeout.
func (h *Handle) closeWithError(err error) {
	if h.Err == nil && !isTransient(err) {
		h.Err = err
		if isFatalSocketError(err) {
			h.loop.logger().Warnw("hio: closing handle on fatal socket error", "handle_id", h.id, "fd", h.fd, "err", err)
		}
	}
	h.Close()
}

// hioClose enters CLOSING, tears down timers, discards any bytes still in
// the write queue (they are not flushed), invokes the close callback
// exactly once, and transitions to CLOSED.
func (h *Handle) hioClose() {
	if h.state == stateClosed {
		return
	}
	h.state = stateClosing
	h.roles.closing = true

	h.loop.unregisterFromPoller(h)

	for i := range h.timers {
		h.cancelTimerSlot(i)
	}

	if h.upstream != nil {
		up := h.upstream
		h.upstream = nil
		if up.upstream == h {
			up.upstream = nil
			up.Close()
		}
	}

	h.wq.cleanup()
	h.freeReadBuf()

	switch {
	case h.rawCloser != nil:
		h.rawCloser()
	case h.fd >= 0:
		syscall.Close(h.fd)
	}

	h.loop.unregisterHandle(h)
	h.fd = -1
	h.state = stateClosed

	if h.onClose != nil {
		h.onClose(h)
	}
}

// freeReadBuf releases a privately owned read buffer. Borrowed buffers are
// never freed by the handle.
func (h *Handle) freeReadBuf() {
	if h.rbuf.owned {
		h.rbuf.data = nil
		h.rbuf.owned = false
	}
}
