package hio

import (
	"github.com/pkg/errors"
	kcp "github.com/xtaci/kcp-go/v5"
)

// DialKCPUpstream dials a KCP session to raddr and wires it as h's
// upstream. hio does not reimplement KCP's ARQ; it only ferries bytes
// between h's write queue and the session's Read/Write, exactly as
// setupUpstream does for a raw TCP net.Conn.
func DialKCPUpstream(loop *Loop, h *Handle, raddr string, block kcp.BlockCrypt, dataShard, parityShard int) (*Handle, error) {
	sess, err := kcp.DialWithOptions(raddr, block, dataShard, parityShard)
	if err != nil {
		return nil, errors.Wrap(err, "hio: dial kcp upstream")
	}

	up, err := wrapKCPSession(loop, sess)
	if err != nil {
		sess.Close()
		return nil, err
	}
	up.typ = TypeKCP

	if err := setupUpstream(h, up); err != nil {
		up.Close()
		return nil, err
	}
	return up, nil
}

// wrapKCPSession adapts a *kcp.UDPSession, which is a net.Conn but not an
// fd-backed one hio's poller can select on, into a Handle by pumping it on
// a background goroutine and feeding bytes through PostEvent.
func wrapKCPSession(loop *Loop, sess *kcp.UDPSession) (*Handle, error) {
	h := &Handle{loop: loop, fd: -1, typ: TypeKCP, state: stateReady, id: loop.ids.alloc()}
	loop.handles[h.id] = h

	h.rawWriter = func(buf []byte) (int, error) { return sess.Write(buf) }
	h.rawCloser = func() { sess.Close() }

	go pumpKCPReads(loop, h, sess)
	return h, nil
}

func pumpKCPReads(loop *Loop, h *Handle, sess *kcp.UDPSession) {
	buf := make([]byte, DefaultReadBufSize)
	for {
		n, err := sess.Read(buf)
		if err != nil {
			loop.PostEvent(func() { h.Close() }, PriorityNormal)
			return
		}
		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		loop.PostEvent(func() {
			if h.state == stateReady {
				h.deliverRead(chunk)
			}
		}, PriorityNormal)
	}
}
