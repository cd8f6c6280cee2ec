package hio

import (
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// ListenTCP creates a listening TCP socket bound to addr, registers it
// with the Loop, and arms it for Accept.
func (lp *Loop) ListenTCP(addr string) (*Handle, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "hio: resolve listen addr")
	}

	domain := unix.AF_INET
	if tcpAddr.IP != nil && tcpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, errors.Wrap(err, "hio: socket")
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "hio: setsockopt SO_REUSEADDR")
	}

	sa := tcpAddrToSockaddr(tcpAddr)
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "hio: bind")
	}
	if err := unix.Listen(fd, unix.SOMAXCONN); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "hio: listen")
	}

	h, err := newHandle(lp, fd)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := lp.registerPoller(h, 0); err != nil {
		h.Close()
		return nil, errors.Wrap(err, "hio: register listener")
	}
	if err := h.Accept(); err != nil {
		h.Close()
		return nil, err
	}
	return h, nil
}

// DialTCP begins a non-blocking connect to addr, registering write
// interest; the connect callback (or a fatal close) fires once the
// connect resolves.
func (lp *Loop) DialTCP(addr string) (*Handle, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "hio: resolve dial addr")
	}

	domain := unix.AF_INET
	if tcpAddr.IP != nil && tcpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return nil, errors.Wrap(err, "hio: socket")
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "hio: set nonblocking")
	}

	sa := tcpAddrToSockaddr(tcpAddr)
	err = unix.Connect(fd, sa)
	if err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return nil, errors.Wrap(err, "hio: connect")
	}

	h, err := newHandle(lp, fd)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := lp.registerPoller(h, 0); err != nil {
		h.Close()
		return nil, errors.Wrap(err, "hio: register dialer")
	}
	h.roles.connect = true
	lp.wantWrite(h, true)
	return h, nil
}

func tcpAddrToSockaddr(a *net.TCPAddr) unix.Sockaddr {
	if ip4 := a.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		copy(sa.Addr[:], ip4)
		return sa
	}
	sa := &unix.SockaddrInet6{Port: a.Port}
	copy(sa.Addr[:], a.IP.To16())
	return sa
}
