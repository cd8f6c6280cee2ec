package hio

import (
	"github.com/pkg/errors"
	"github.com/xtaci/smux"
)

// SetupMuxUpstream opens a logical stream on an already-established
// smux.Session, built by the caller over whatever connection it chose, and
// wires that stream as h's upstream: one call pairs one Handle with one
// stream.
func SetupMuxUpstream(loop *Loop, h *Handle, sess *smux.Session) error {
	stream, err := sess.OpenStream()
	if err != nil {
		return errors.Wrap(err, "hio: open smux stream")
	}

	up, err := wrapMuxStream(loop, stream)
	if err != nil {
		stream.Close()
		return err
	}

	if err := setupUpstream(h, up); err != nil {
		up.Close()
		return err
	}
	return nil
}

// AcceptMuxUpstream wires an already-accepted *smux.Stream (from
// sess.AcceptStream on the listening side) as h's upstream, the server-side
// counterpart of SetupMuxUpstream.
func AcceptMuxUpstream(h *Handle, stream *smux.Stream) error {
	up, err := wrapMuxStream(h.loop, stream)
	if err != nil {
		stream.Close()
		return err
	}
	if err := setupUpstream(h, up); err != nil {
		up.Close()
		return err
	}
	return nil
}

// wrapMuxStream adapts a *smux.Stream, an io.ReadWriteCloser with no fd of
// its own, into a Handle using the same rawWriter/rawCloser plus
// background-pump-plus-PostEvent shape wrapKCPSession uses for a
// *kcp.UDPSession: the session already serializes and reassembles frames
// over its parent conn, so hio only ever ferries whole reads and writes
// through it.
func wrapMuxStream(loop *Loop, stream *smux.Stream) (*Handle, error) {
	h := &Handle{loop: loop, fd: -1, typ: TypeUnknown, state: stateReady, id: loop.ids.alloc()}
	loop.handles[h.id] = h

	h.rawWriter = func(buf []byte) (int, error) { return stream.Write(buf) }
	h.rawCloser = func() { stream.Close() }

	go pumpMuxReads(loop, h, stream)
	return h, nil
}

func pumpMuxReads(loop *Loop, h *Handle, stream *smux.Stream) {
	buf := make([]byte, DefaultReadBufSize)
	for {
		n, err := stream.Read(buf)
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
