package hio

import (
	"net"
	"testing"
	"time"

	kcp "github.com/xtaci/kcp-go/v5"
)

// kcpEchoBackend starts a bare kcp-go listener (no hio involved) that
// echoes back everything it reads.
func kcpEchoBackend(t *testing.T, block kcp.BlockCrypt) *kcp.Listener {
	t.Helper()
	ln, err := kcp.ListenWithOptions("127.0.0.1:0", block, 0, 0)
	if err != nil {
		t.Fatalf("kcp.ListenWithOptions: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			sess, err := ln.AcceptKCP()
			if err != nil {
				return
			}
			go func(s *kcp.UDPSession) {
				buf := make([]byte, 4096)
				for {
					n, err := s.Read(buf)
					if err != nil {
						return
					}
					if _, err := s.Write(buf[:n]); err != nil {
						return
					}
				}
			}(sess)
		}
	}()
	return ln
}

// TestKCPUpstreamBridge wires a TCP front listener to a KCP echo backend
// via DialKCPUpstream; a 32-byte key exercises kcp.NewAESBlockCrypt (and so
// golang.org/x/crypto transitively).
func TestKCPUpstreamBridge(t *testing.T) {
	block, err := kcp.NewAESBlockCrypt([]byte("01234567890123456789012345678901")[:32])
	if err != nil {
		t.Fatalf("NewAESBlockCrypt: %v", err)
	}

	backend := kcpEchoBackend(t, block)

	lp := newTestLoop(t)

	front, err := lp.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	front.OnAccept(func(downstream *Handle) {
		if _, err := DialKCPUpstream(lp, downstream, backend.Addr().String(), block, 0, 0); err != nil {
			downstream.Close()
			return
		}
		downstream.ReadStart()
	})

	conn, err := net.Dial("tcp", front.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	tx := []byte("hello over kcp")
	if _, err := conn.Write(tx); err != nil {
		t.Fatalf("Write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	rx := make([]byte, len(tx))
	if _, err := readFull(conn, rx); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(rx) != string(tx) {
		t.Fatalf("got %q, want %q", rx, tx)
	}
}
