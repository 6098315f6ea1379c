package transport

import (
	"context"
	"net"
	"time"
)

// ClientConnection represents a client-side connection to the core.
// Implemented by ClientConn.
type ClientConnection interface {
	ConnID() string
	LocalAddr() net.Addr
	RemoteAddr() net.Addr

	// Send sends a message to the core.
	Send(data []byte) error

	// Receive receives a message with the specified timeout.
	Receive(timeout time.Duration) ([]byte, error)

	SendPing(seq uint32) error
	SendClose() error
	Close() error
}

// ServerConnection represents a server-side connection to a remote.
// Implemented by ServerConn.
type ServerConnection interface {
	ConnID() string
	RemoteAddr() net.Addr
	Send(data []byte) error
	Close() error
}

// TransportServer represents a listening server.
// Implemented by Server.
type TransportServer interface {
	Start(ctx context.Context) error
	Stop() error
	Addr() net.Addr
	ConnectionCount() int
}

// FrameReadWriter provides length-prefixed frame I/O.
// Implemented by Framer.
type FrameReadWriter interface {
	ReadFrame() ([]byte, error)
	WriteFrame(data []byte) error
}

var (
	_ ClientConnection = (*ClientConn)(nil)
	_ ServerConnection = (*ServerConn)(nil)
	_ TransportServer  = (*Server)(nil)
	_ FrameReadWriter  = (*Framer)(nil)
)
