package hio

// wakeup is a self-pipe/eventfd pair registered with the poller: PostEvent
// must wake a blocked poller Wait from any thread, and multiple wakes
// before the next drain must coalesce into one.
type wakeup interface {
	// FD is the descriptor registered with the poller for EventRead; the
	// Loop recognizes readiness on it as "drain the wakeup, not a handle".
	FD() int
	// Wake signals the poller to return from Wait if it is blocked.
	Wake()
	// Drain consumes the pending wake signal(s).
	Drain()
	Close() error
}
