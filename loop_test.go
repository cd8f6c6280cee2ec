package hio

import (
	"net"
	"testing"
	"time"
)

// newTestLoop starts lp.Run on a background goroutine and arranges for it
// to stop when the test ends.
func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	lp, err := NewLoop()
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- lp.Run() }()
	t.Cleanup(func() {
		lp.Stop()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Run: %v", err)
			}
		case <-time.After(time.Second):
			t.Error("loop did not stop in time")
		}
	})
	return lp
}

func TestEchoTCP(t *testing.T) {
	lp := newTestLoop(t)

	ln, err := lp.ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP: %v", err)
	}
	ln.OnAccept(func(conn *Handle) {
		conn.OnRead(func(h *Handle, buf []byte) { h.Write(buf) })
		conn.ReadStart()
	})

	conn, err := net.Dial("tcp", ln.LocalAddr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	tx := []byte("hello world")
	if _, err := conn.Write(tx); err != nil {
		t.Fatalf("Write: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	rx := make([]byte, len(tx))
	if _, err := readFull(conn, rx); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(rx) != string(tx) {
		t.Fatalf("echo mismatch: got %q want %q", rx, tx)
	}
}

func TestMultipleAcceptors(t *testing.T) {
	lp := newTestLoop(t)

	const n = 3
	lns := make([]*Handle, n)
	for i := 0; i < n; i++ {
		ln, err := lp.ListenTCP("127.0.0.1:0")
		if err != nil {
			t.Fatalf("ListenTCP[%d]: %v", i, err)
		}
		tag := byte('A' + i)
		ln.OnAccept(func(conn *Handle) {
			conn.OnRead(func(h *Handle, buf []byte) {
				reply := append([]byte{tag}, buf...)
				h.Write(reply)
			})
			conn.ReadStart()
		})
		lns[i] = ln
	}

	for i, ln := range lns {
		conn, err := net.Dial("tcp", ln.LocalAddr().String())
		if err != nil {
			t.Fatalf("Dial[%d]: %v", i, err)
		}
		conn.Write([]byte("x"))
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		rx := make([]byte, 2)
		if _, err := readFull(conn, rx); err != nil {
			t.Fatalf("Read[%d]: %v", i, err)
		}
		if rx[0] != byte('A'+i) {
			t.Fatalf("listener %d: got tag %q, want %q", i, rx[0], byte('A'+i))
		}
		conn.Close()
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
