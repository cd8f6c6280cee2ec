package hio

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

func formatHostPort(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}

// dialUDP creates a connected UDP socket. DGRAM sockets are left blocking
// (sendto targets arbitrary peers and cannot use the shared write queue),
// so Handle.Write on a UDP handle always does a direct blocking send
// rather than arming write interest.
func (lp *Loop) dialUDP(addr string) (*Handle, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, errors.Wrap(err, "hio: resolve udp addr")
	}

	domain := unix.AF_INET
	if udpAddr.IP != nil && udpAddr.IP.To4() == nil {
		domain = unix.AF_INET6
	}

	fd, err := unix.Socket(domain, unix.SOCK_DGRAM, unix.IPPROTO_UDP)
	if err != nil {
		return nil, errors.Wrap(err, "hio: socket")
	}

	sa := udpAddrToSockaddr(udpAddr)
	if err := unix.Connect(fd, sa); err != nil {
		unix.Close(fd)
		return nil, errors.Wrap(err, "hio: connect udp")
	}

	h, err := newHandle(lp, fd)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := lp.registerPoller(h, EventRead); err != nil {
		h.Close()
		return nil, err
	}
	h.ReadStart()
	return h, nil
}

func udpAddrToSockaddr(a *net.UDPAddr) unix.Sockaddr {
	if ip4 := a.IP.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: a.Port}
		copy(sa.Addr[:], ip4)
		return sa
	}
	sa := &unix.SockaddrInet6{Port: a.Port}
	copy(sa.Addr[:], a.IP.To16())
	return sa
}
