package hio

// IOType classifies the file descriptor a Handle wraps: probe SO_TYPE, map
// STREAM/DGRAM/RAW, fall back to stdio fd numbers on ENOTSOCK, else FILE.
// TLS is a role elevation of TCP rather than its own probed type
// (Handle.UsesTLS carries that bit).
type IOType int

const (
	TypeUnknown IOType = iota
	TypeStdin
	TypeStdout
	TypeStderr
	TypeFile
	TypeTCP
	TypeUDP
	TypeRawIP
	TypeSSL
	TypeKCP
)

func (t IOType) String() string {
	switch t {
	case TypeStdin:
		return "stdin"
	case TypeStdout:
		return "stdout"
	case TypeStderr:
		return "stderr"
	case TypeFile:
		return "file"
	case TypeTCP:
		return "tcp"
	case TypeUDP:
		return "udp"
	case TypeRawIP:
		return "raw_ip"
	case TypeSSL:
		return "ssl"
	case TypeKCP:
		return "kcp"
	default:
		return "unknown"
	}
}

// Event bits. Pending/ready masks are bit-tested directly against the
// values the Poller adapter hands back, so these must stay distinct bits.
const (
	EventRead      uint32 = 1
	EventWrite     uint32 = 4
	EventReadWrite uint32 = EventRead | EventWrite
)

// PollEvent is one readiness notification returned from Poller.Wait.
type PollEvent struct {
	FD      int
	Revents uint32
}
