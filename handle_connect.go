package hio

import "syscall"

// onWritableConnecting is dispatched instead of onWritable while a connect
// is in flight: writable + SO_ERROR==0 means connected, writable +
// SO_ERROR!=0 means the connect failed.
func (h *Handle) onWritableConnecting() {
	h.roles.connect = false
	h.cancelTimerSlot(timerSlotConnect)

	errno, err := syscall.GetsockoptInt(h.fd, syscall.SOL_SOCKET, syscall.SO_ERROR)
	if err != nil {
		h.closeWithError(err)
		return
	}
	if errno != 0 {
		h.closeWithError(syscall.Errno(errno))
		return
	}

	if addr, aerr := localAddrOf(h.fd); aerr == nil {
		h.localAddr = addr
	}
	if addr, aerr := peerAddrOf(h.fd); aerr == nil {
		h.peerAddr = addr
	}

	h.disarmWrite()
	if h.onConnect != nil {
		h.onConnect(h)
	}
}
