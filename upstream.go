package hio

// Upstream returns h's paired peer, or nil if none is set.
func (h *Handle) Upstream() *Handle { return h.upstream }

// WriteToUpstream writes buf to h's upstream peer, returning ErrNoUpstream
// if none is set. setupUpstream's automatic read-to-write relay already
// covers the common proxy case; this is for callers composing their own
// forwarding logic on top of a wired pair.
func (h *Handle) WriteToUpstream(buf []byte) error {
	if h.upstream == nil {
		return ErrNoUpstream
	}
	h.upstream.Write(buf)
	return nil
}

// setupUpstream makes a and b each other's upstream, binds each's read
// callback to write its bytes to its partner, and binds each's close
// callback to close its partner. The result is a bidirectional zero-copy
// relay (modulo the write queue) suitable for a TCP proxy.
func setupUpstream(a, b *Handle) error {
	if a.loop != b.loop {
		return errNotSameLoop
	}
	a.upstream = b
	b.upstream = a

	a.OnRead(func(_ *Handle, buf []byte) { b.Write(buf) })
	b.OnRead(func(_ *Handle, buf []byte) { a.Write(buf) })

	a.OnClose(chainClose(a.onClose, func(*Handle) { closePeer(a) }))
	b.OnClose(chainClose(b.onClose, func(*Handle) { closePeer(b) }))
	return nil
}

// closePeer closes h's upstream if it still points back at h, guarding
// against the symmetric-back-reference cycle double-closing both sides.
func closePeer(h *Handle) {
	peer := h.upstream
	if peer == nil {
		return
	}
	h.upstream = nil
	if peer.upstream == h {
		peer.upstream = nil
	}
	peer.Close()
}

// chainClose composes an existing close callback (if any, e.g. one a
// caller already installed) with an additional one, so setupUpstream never
// silently clobbers a caller's own CloseCallback.
func chainClose(existing CloseCallback, extra CloseCallback) CloseCallback {
	if existing == nil {
		return extra
	}
	return func(h *Handle) {
		existing(h)
		extra(h)
	}
}

// SetupTCPUpstream dials host:port and wires it as io's upstream in one
// call. With ssl true the upstream is only marked as TLS (EnableSSL); no
// TLSSession is attached, so its reads and writes stay plain until one is
// attached with SetSSL.
func SetupTCPUpstream(loop *Loop, io *Handle, host string, port int, ssl bool) (*Handle, error) {
	addr := formatHostPort(host, port)
	up, err := loop.DialTCP(addr)
	if err != nil {
		return nil, err
	}
	if ssl {
		up.EnableSSL()
	}
	if err := setupUpstream(io, up); err != nil {
		up.Close()
		return nil, err
	}
	return up, nil
}

// SetupUDPUpstream creates and wires a UDP peer as io's upstream in one
// call. UDP upstream handles are left blocking (the DGRAM rule applied at
// hioReady); writes go out immediately rather than through the write
// queue.
func SetupUDPUpstream(loop *Loop, io *Handle, host string, port int) (*Handle, error) {
	addr := formatHostPort(host, port)
	up, err := loop.dialUDP(addr)
	if err != nil {
		return nil, err
	}
	if err := setupUpstream(io, up); err != nil {
		up.Close()
		return nil, err
	}
	return up, nil
}
