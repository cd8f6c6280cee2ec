package hio

import "github.com/pkg/errors"

// TLSSession is the opaque TLS session object the core treats as an
// external collaborator: it only ever calls Read/Write/Handshake on it and
// never touches raw TLS record state itself. A *tls.Conn (wrapped by an
// adapter in the caller's own package) is the expected default
// implementation; this package does not import crypto/tls directly since
// the handle's fd, not a net.Conn, is the thing hio owns.
type TLSSession interface {
	Read(buf []byte) (n int, err error)
	Write(buf []byte) (n int, err error)
	Handshake() error
}

// SetSSL attaches an already-constructed TLSSession to the handle, marks
// it as using TLS, and arms read interest so the handshake (which may take
// several read/write turns to complete) gets driven even if the caller
// hasn't called ReadStart yet.
func (h *Handle) SetSSL(sess TLSSession) {
	h.tls = sess
	h.EnableSSL()
	h.ReadStart()
}

// GetSSL returns the attached TLS session, nil if none.
func (h *Handle) GetSSL() TLSSession { return h.tls }

// tlsActive reports whether reads and writes on h must go through the
// attached TLS session rather than the raw fd.
func (h *Handle) tlsActive() bool {
	return h.UsesTLS && h.tls != nil
}

// ensureHandshake drives the TLS handshake before any application data
// flows. ErrWantRead/ErrWantWrite mean the session needs another turn of
// I/O before it can proceed, not a failure: done is false and err is nil
// in that case, and the caller should simply wait for the next readiness
// event. Any other non-nil err is fatal and closes the handle.
func (h *Handle) ensureHandshake() (done bool, err error) {
	if h.tlsHandshakeDone {
		return true, nil
	}
	herr := h.tls.Handshake()
	switch {
	case herr == nil:
		h.tlsHandshakeDone = true
		return true, nil
	case errors.Is(herr, ErrWantRead):
		h.loop.wantRead(h, true)
		return false, nil
	case errors.Is(herr, ErrWantWrite):
		h.armWrite()
		return false, nil
	default:
		return false, herr
	}
}
