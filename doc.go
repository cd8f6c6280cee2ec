// Package hio implements a single-threaded, callback-driven reactor for
// non-blocking sockets, modeled after the classic libhv/libuv hloop+hio
// design: one Loop per OS thread multiplexes file descriptors, timers and
// cross-thread events, and dispatches ready descriptors to per-connection
// Handles that own their own read/write state machines.
//
// Accept, connect, read and write are all driven by poller readiness. The
// one exception is UDP and raw-IP handles: their fds stay blocking, so a
// Write on them is a blocking send. Otherwise the only blocking point in
// the whole package is the poller wait inside Loop.Run.
package hio
