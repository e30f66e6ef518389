// File: api/transport.go
// Author: momentics <momentics@gmail.com>
//
// Defines transport socket abstraction (NetConn) for compatibility
// with custom event loops, memory pools, and zero-copy pipelines.

package api


// Transport abstracts a batched, feature-advertising byte channel used by
// protocol.WSConnection and every concrete internal/transport backend
// (TCP, DPDK, io_uring, IOCP) interchangeably.
type Transport interface {
	// Send writes one or more buffers to the channel.
	Send(buffers [][]byte) error

	// Recv reads the next batch of buffers from the channel.
	Recv() ([][]byte, error)

	// Close shuts the channel down.
	Close() error

	// Features reports the capabilities this transport instance advertises.
	Features() TransportFeatures
}

// TransportFeatures advertises the capabilities a concrete Transport
// implementation provides, so callers can adapt batching/copy strategy.
type TransportFeatures struct {
	ZeroCopy     bool
	Batch        bool
	NUMAAware    bool
	LockFree     bool
	SharedMemory bool
	TLS          bool
	OS           []string
}

// NetConn abstracts a full-duplex network connection object
// that may or may not be backed by Go's net.Conn
type NetConn interface {
	// Read reads into a preallocated buffer
	Read(p []byte) (n int, err error)

	// Write writes buffer contents into the connection
	Write(p []byte) (n int, err error)

	// Close shuts down the connection and notifies upstream layers
	Close() error

	// RawFD returns the underlying OS-level file descriptor
	RawFD() uintptr
}
