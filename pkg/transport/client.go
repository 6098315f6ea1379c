package transport

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zoneremote/zoneremote-go/pkg/log"
	"github.com/zoneremote/zoneremote-go/pkg/wire"
)

// Connection errors.
var (
	ErrConnectionClosed = errors.New("connection closed")
)

// DefaultConnectTimeout bounds dialing when the context has no deadline.
const DefaultConnectTimeout = 10 * time.Second

// ClientConfig configures a client.
type ClientConfig struct {
	// TLSConfig enables TLS when set. Nil means plain TCP.
	TLSConfig *tls.Config

	// MaxMessageSize is the maximum message size (default: 1 MB).
	MaxMessageSize uint32

	// ConnectTimeout is the dial timeout (default: 10s).
	ConnectTimeout time.Duration

	// Logger for protocol logging (optional).
	Logger log.Logger
}

// Client dials the core.
type Client struct {
	config ClientConfig
}

// NewClient creates a new client.
func NewClient(config ClientConfig) *Client {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.ConnectTimeout == 0 {
		config.ConnectTimeout = DefaultConnectTimeout
	}
	return &Client{config: config}
}

// Connect establishes a connection to the specified address.
func (c *Client) Connect(ctx context.Context, address string) (*ClientConn, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	if c.config.TLSConfig != nil {
		tlsConn := tls.Client(conn, clientTLSConfig(c.config.TLSConfig, address))
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("TLS handshake failed: %w", err)
		}
		conn = tlsConn
	}

	connID := uuid.New().String()
	framer := NewFramer(conn, conn, c.config.MaxMessageSize)
	if c.config.Logger != nil {
		framer.SetLogger(c.config.Logger, connID)
		c.config.Logger.Log(log.Event{
			Timestamp:    time.Now(),
			ConnectionID: connID,
			Layer:        log.LayerTransport,
			Category:     log.CategoryState,
			LocalRole:    log.RoleRemote,
			RemoteAddr:   conn.RemoteAddr().String(),
			StateChange: &log.StateChangeEvent{
				Entity:   log.StateEntityConnection,
				NewState: "CONNECTED",
			},
		})
	}

	return &ClientConn{
		conn:    conn,
		framer:  framer,
		connID:  connID,
		logger:  c.config.Logger,
		closeCh: make(chan struct{}),
	}, nil
}

// ClientConn represents a connection from the remote to the core.
type ClientConn struct {
	conn    net.Conn
	framer  *Framer
	connID  string
	logger  log.Logger
	closeCh chan struct{}

	closeOnce sync.Once
	writeMu   sync.Mutex
	readMu    sync.Mutex
}

// ConnID returns the unique connection identifier.
func (c *ClientConn) ConnID() string {
	return c.connID
}

// LocalAddr returns the local network address.
func (c *ClientConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *ClientConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Send sends a message to the core.
func (c *ClientConn) Send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closeCh:
		return ErrConnectionClosed
	default:
	}

	return c.framer.WriteFrame(data)
}

// Receive receives a message with timeout. Zero means no timeout.
func (c *ClientConn) Receive(timeout time.Duration) ([]byte, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	select {
	case <-c.closeCh:
		return nil, ErrConnectionClosed
	default:
	}

	if timeout > 0 {
		c.conn.SetReadDeadline(time.Now().Add(timeout))
		defer c.conn.SetReadDeadline(time.Time{})
	}

	data, err := c.framer.ReadFrame()
	if err != nil {
		select {
		case <-c.closeCh:
			return nil, ErrConnectionClosed
		default:
		}
	}
	return data, err
}

// Close closes the connection.
func (c *ClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.conn.Close()
		if c.logger != nil {
			c.logger.Log(log.Event{
				Timestamp:    time.Now(),
				ConnectionID: c.connID,
				Layer:        log.LayerTransport,
				Category:     log.CategoryState,
				LocalRole:    log.RoleRemote,
				StateChange: &log.StateChangeEvent{
					Entity:   log.StateEntityConnection,
					OldState: "CONNECTED",
					NewState: "DISCONNECTED",
				},
			})
		}
	})
	return err
}

// Done is closed once Close has been called.
func (c *ClientConn) Done() <-chan struct{} {
	return c.closeCh
}

// SendPing sends a ping control message.
func (c *ClientConn) SendPing(seq uint32) error {
	return c.sendControl(wire.ControlPing, seq)
}

// SendPong answers a ping from the core.
func (c *ClientConn) SendPong(seq uint32) error {
	return c.sendControl(wire.ControlPong, seq)
}

// SendClose sends a close control message.
func (c *ClientConn) SendClose() error {
	return c.sendControl(wire.ControlClose, 0)
}

// HandleControl records an incoming control message and answers pings.
// It returns true when the core asked to close the connection, in which
// case the connection has been closed.
func (c *ClientConn) HandleControl(msg *wire.ControlMessage) bool {
	logControl(c.logger, c.connID, c.conn.RemoteAddr().String(), log.RoleRemote, msg.Type, msg.Sequence, log.DirectionIn)

	switch msg.Type {
	case wire.ControlPing:
		_ = c.SendPong(msg.Sequence)
	case wire.ControlClose:
		_ = c.SendClose()
		c.Close()
		return true
	}
	return false
}

func (c *ClientConn) sendControl(t wire.ControlMessageType, seq uint32) error {
	data, err := EncodeControl(t, seq)
	if err != nil {
		return err
	}
	if err := c.Send(data); err != nil {
		return err
	}
	logControl(c.logger, c.connID, "", log.RoleRemote, t, seq, log.DirectionOut)
	return nil
}

// EncodeControl encodes a control message.
func EncodeControl(t wire.ControlMessageType, seq uint32) ([]byte, error) {
	return wire.EncodeControlMessage(&wire.ControlMessage{Type: t, Sequence: seq})
}

// IsControl reports whether data is a control message and decodes it.
func IsControl(data []byte) (*wire.ControlMessage, bool) {
	kind, err := wire.PeekKind(data)
	if err != nil || kind != wire.KindControl {
		return nil, false
	}
	msg, err := wire.DecodeControlMessage(data)
	if err != nil {
		return nil, false
	}
	return msg, true
}

// logControl records a control message event.
func logControl(logger log.Logger, connID, remoteAddr string, role log.Role, t wire.ControlMessageType, seq uint32, dir log.Direction) {
	if logger == nil {
		return
	}

	var ct log.ControlMsgType
	switch t {
	case wire.ControlPing:
		ct = log.ControlMsgPing
	case wire.ControlPong:
		ct = log.ControlMsgPong
	case wire.ControlClose:
		ct = log.ControlMsgClose
	default:
		return
	}

	logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryControl,
		LocalRole:    role,
		RemoteAddr:   remoteAddr,
		ControlMsg:   &log.ControlMsgEvent{Type: ct, Sequence: seq},
	})
}
