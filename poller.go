package hio

import "time"

// Poller is the narrow demultiplexer adapter the core talks to:
// {add, mod, del, wait}. The core never knows whether it is talking to
// epoll, kqueue, IOCP or a poll(2) fallback.
type Poller interface {
	// Add registers fd for the given event mask.
	Add(fd int, events uint32) error
	// Mod changes the event mask already registered for fd.
	Mod(fd int, events uint32) error
	// Del unregisters fd. events is advisory (some backends need the last
	// known mask to clean up); implementations may ignore it.
	Del(fd int, events uint32) error
	// Wait blocks for at most timeout for ready descriptors. A zero or
	// negative timeout must not block.
	Wait(timeout time.Duration) ([]PollEvent, error)
	// Close releases the poller's own fd/resources.
	Close() error
}
