package hio

import (
	"net"
	"syscall"
)

// classify probes SO_TYPE and maps it: STREAM->TCP, DGRAM->UDP, RAW->IP;
// on ENOTSOCK, fd 0/1/2 map to STDIN/STDOUT/STDERR and otherwise FILE.
func classify(fd int) IOType {
	soType, err := syscall.GetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_TYPE)
	if err != nil {
		switch fd {
		case 0:
			return TypeStdin
		case 1:
			return TypeStdout
		case 2:
			return TypeStderr
		default:
			return TypeFile
		}
	}
	switch soType {
	case syscall.SOCK_STREAM:
		return TypeTCP
	case syscall.SOCK_DGRAM:
		return TypeUDP
	case syscall.SOCK_RAW:
		return TypeRawIP
	default:
		return TypeUnknown
	}
}

// EnableSSL is a role elevation of TCP: it never re-probes SO_TYPE, it
// just marks the handle as carrying a TLS session.
func (h *Handle) EnableSSL() {
	h.UsesTLS = true
	if h.typ == TypeTCP {
		h.typ = TypeSSL
	}
}

func localAddrOf(fd int) (net.Addr, error) {
	sa, err := syscall.Getsockname(fd)
	if err != nil {
		return nil, err
	}
	return sockaddrToAddr(sa), nil
}

func peerAddrOf(fd int) (net.Addr, error) {
	sa, err := syscall.Getpeername(fd)
	if err != nil {
		return nil, err
	}
	return sockaddrToAddr(sa), nil
}

func sockaddrToAddr(sa syscall.Sockaddr) net.Addr {
	switch a := sa.(type) {
	case *syscall.SockaddrInet4:
		return &net.TCPAddr{IP: append([]byte(nil), a.Addr[:]...), Port: a.Port}
	case *syscall.SockaddrInet6:
		return &net.TCPAddr{IP: append([]byte(nil), a.Addr[:]...), Port: a.Port}
	case *syscall.SockaddrUnix:
		return &net.UnixAddr{Name: a.Name, Net: "unix"}
	default:
		return nil
	}
}
