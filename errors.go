package hio

import (
	"syscall"

	"github.com/pkg/errors"
)

// Sentinel errors surfaced through Handle.Err, Loop.PostEvent, and the
// handle configuration methods. Transient errors (EAGAIN, EWOULDBLOCK,
// EINTR, and a TLS session asking for another read/write turn) are never
// recorded on Handle.Err; the loop retries on them internally.
var (
	ErrClosed        = errors.New("hio: handle closed")
	ErrLoopStopped   = errors.New("hio: loop stopped")
	ErrTimeout       = errors.New("hio: operation timed out")
	ErrPackageTooBig = errors.New("hio: framed package exceeds package_max_length")
	ErrBadLength     = errors.New("hio: negative or malformed length field")
	ErrUnpackBusy    = errors.New("hio: cannot reconfigure unpack while bytes are buffered")
	ErrNotListener   = errors.New("hio: handle is not a listening socket")
	ErrNoUpstream    = errors.New("hio: handle has no upstream peer")
	ErrWantRead      = errors.New("hio: tls session wants a read")
	ErrWantWrite     = errors.New("hio: tls session wants a write")

	errNotSameLoop = errors.New("hio: upstream pair must live on the same loop")
)

// isTransient reports whether err is a retry-me-later condition that must
// never be recorded on Handle.Err nor close the handle.
func isTransient(err error) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, syscall.EAGAIN):
		return true
	case errors.Is(err, syscall.EWOULDBLOCK):
		return true
	case errors.Is(err, syscall.EINTR):
		return true
	case errors.Is(err, ErrWantRead):
		return true
	case errors.Is(err, ErrWantWrite):
		return true
	default:
		return false
	}
}

// isFatalSocketError reports whether err is one of the OS-level socket
// errors that indicate a genuine network failure (peer reset, broken
// pipe, refused or unreachable connect) rather than an application-level
// condition such as a configured timeout or a framing violation.
func isFatalSocketError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, syscall.ECONNRESET):
		return true
	case errors.Is(err, syscall.EPIPE):
		return true
	case errors.Is(err, syscall.ECONNREFUSED):
		return true
	case errors.Is(err, syscall.ENETUNREACH):
		return true
	case errors.Is(err, syscall.EHOSTUNREACH):
		return true
	default:
		return false
	}
}
