package hio

import "time"

// Default tunables. DefaultReadBufSize and IdleMax can be overridden per
// Loop (WithSharedReadBufSize, WithIdleMax), and DefaultPackageMaxLength per
// UnpackSetting (PackageMaxLength); ReadBufSizeHighWater and
// SmallReadCountThreshold are fixed and have no override.
const (
	// DefaultReadBufSize is the size of the Loop's shared read buffer, and
	// the private buffer size used for DELIMITER and LENGTH_FIELD unpack
	// settings.
	DefaultReadBufSize = 64 * 1024

	// ReadBufSizeHighWater is the private-buffer size above which the
	// small-read shrink heuristic engages.
	ReadBufSizeHighWater = 1 << 20 // 1 MiB

	// readBufShrinkFactor and readBufGrowFactor scale a private buffer on
	// the auto-sizing heuristic in handle_read.go.
	readBufShrinkFactor = 2
	readBufGrowFactor   = 2

	// SmallReadCountThreshold is how many consecutive deliveries smaller
	// than half the buffer are required before the buffer shrinks.
	SmallReadCountThreshold = 3

	// DefaultPackageMaxLength bounds any single unpack-framed record.
	DefaultPackageMaxLength = 4 << 20 // 4 MiB

	// IdleMax bounds how long the reactor will block in the poller wait
	// when no timer is scheduled.
	IdleMax = 10 * time.Second
)

// Priority classes for cross-thread posted events; HIGH always drains
// before NORMAL within one loop iteration.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityHigh
)
