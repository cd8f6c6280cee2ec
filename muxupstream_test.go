package hio

import (
	"net"
	"testing"
	"time"

	"github.com/xtaci/smux"
)

// muxEchoBackend runs an smux.Server over conn, echoing every accepted
// stream.
func muxEchoBackend(t *testing.T, conn net.Conn) {
	t.Helper()
	cfg := smux.DefaultConfig()
	sess, err := smux.Server(conn, cfg)
	if err != nil {
		t.Fatalf("smux.Server: %v", err)
	}
	t.Cleanup(func() { sess.Close() })

	go func() {
		for {
			stream, err := sess.AcceptStream()
			if err != nil {
				return
			}
			go func(s *smux.Stream) {
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
			}(stream)
		}
	}()
}

// TestMuxUpstreamBridge wires a TCP front listener to an smux-multiplexed
// echo backend via SetupMuxUpstream.
func TestMuxUpstreamBridge(t *testing.T) {
	serverSide, clientSide := net.Pipe()
	muxEchoBackend(t, serverSide)

	cfg := smux.DefaultConfig()
	sess, err := smux.Client(clientSide, cfg)
	if err != nil {
		t.Fatalf("smux.Client: %v", err)
	}
	t.Cleanup(func() { sess.Close() })

	lp := newTestLoop(t)

	front, err := lp.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	front.OnAccept(func(downstream *Handle) {
		if err := SetupMuxUpstream(lp, downstream, sess); err != nil {
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

	tx := []byte("hello over smux")
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
