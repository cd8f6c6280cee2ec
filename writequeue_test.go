package hio

import "testing"

func TestWriteQueueBytesInvariant(t *testing.T) {
	var q writeQueue

	q.pushBack([]byte("hello"))
	q.pushBack([]byte("world!"))
	if q.bytes != 11 {
		t.Fatalf("got bytes %d, want 11", q.bytes)
	}

	q.advance(3)
	if q.bytes != 8 {
		t.Fatalf("got bytes %d, want 8", q.bytes)
	}
	if q.front().remaining() != 2 {
		t.Fatalf("got front remaining %d, want 2", q.front().remaining())
	}

	q.advance(2) // drains the rest of "hello", pops it
	if q.empty() {
		t.Fatal("queue should still hold \"world!\"")
	}
	if q.bytes != 6 {
		t.Fatalf("got bytes %d, want 6", q.bytes)
	}
	if string(q.front().buf) != "world!" {
		t.Fatalf("got front %q, want %q", q.front().buf, "world!")
	}

	q.advance(6)
	if !q.empty() {
		t.Fatal("queue should be empty after draining both entries")
	}
	if q.bytes != 0 {
		t.Fatalf("got bytes %d, want 0", q.bytes)
	}
}

func TestWriteQueueCleanup(t *testing.T) {
	var q writeQueue
	q.pushBack([]byte("abc"))
	q.cleanup()
	if !q.empty() || q.bytes != 0 {
		t.Fatal("cleanup did not reset the queue")
	}
}
