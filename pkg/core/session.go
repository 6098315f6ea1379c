package core

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/zoneremote/zoneremote-go/pkg/log"
	"github.com/zoneremote/zoneremote-go/pkg/transport"
	"github.com/zoneremote/zoneremote-go/pkg/wire"
)

// Session errors.
var (
	ErrClosedByCore     = errors.New("connection closed by core")
	ErrKeepAliveTimeout = errors.New("core stopped answering pings")
	ErrSessionClosed    = errors.New("session closed")
)

// Extension identity announced on registration.
const (
	ExtensionID      = "com.zoneremote.remote"
	ExtensionName    = "Zone remote"
	ExtensionVersion = "1.0.1"
)

// DefaultExtension returns the registration payload of this program.
func DefaultExtension() wire.RegisterPayload {
	return wire.RegisterPayload{
		ExtensionID:    ExtensionID,
		DisplayName:    ExtensionName,
		DisplayVersion: ExtensionVersion,
		Publisher:      "zoneremote",
		Website:        "https://github.com/zoneremote/zoneremote-go",
	}
}

// Config configures a session with the core.
type Config struct {
	// TLSConfig enables TLS when set.
	TLSConfig *tls.Config

	// RequestTimeout bounds each request (default: 30s).
	RequestTimeout time.Duration

	// KeepAlive configures ping/pong liveness checks.
	KeepAlive transport.KeepAliveConfig

	// Extension is sent on registration (default: DefaultExtension()).
	Extension wire.RegisterPayload

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// ProtocolLogger captures frames and messages (optional).
	ProtocolLogger log.Logger
}

// Session is one registered connection to the core.
type Session struct {
	conn      *transport.ClientConn
	client    *Client
	keepAlive *transport.KeepAlive
	logger    *slog.Logger
	core      wire.CoreInfo

	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// Dial connects to the core at address, starts the read loop and registers.
func Dial(ctx context.Context, address string, cfg Config) (*Session, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Extension.ExtensionID == "" {
		cfg.Extension = DefaultExtension()
	}

	conn, err := transport.NewClient(transport.ClientConfig{
		TLSConfig: cfg.TLSConfig,
		Logger:    cfg.ProtocolLogger,
	}).Connect(ctx, address)
	if err != nil {
		return nil, err
	}

	s := &Session{
		conn:   conn,
		logger: logger.With("conn", conn.ConnID()),
		done:   make(chan struct{}),
	}
	s.client = NewClient(conn, ClientConfig{
		Timeout:        cfg.RequestTimeout,
		Logger:         s.logger,
		ProtocolLogger: cfg.ProtocolLogger,
		ConnectionID:   conn.ConnID(),
	})
	s.keepAlive = transport.NewKeepAlive(cfg.KeepAlive, conn.SendPing, func() {
		s.finish(ErrKeepAliveTimeout)
	})

	go s.readLoop()

	info, err := s.client.Register(ctx, cfg.Extension)
	if err != nil {
		s.finish(err)
		return nil, fmt.Errorf("register: %w", err)
	}
	s.core = *info

	s.keepAlive.Start(context.Background())
	s.logger.Debug("registered with core", "core", info.DisplayName, "core_id", info.CoreID, "version", info.Version)
	return s, nil
}

// Client returns the request client of the session.
func (s *Session) Client() *Client {
	return s.client
}

// Core returns the identity reported by the core on registration.
func (s *Session) Core() wire.CoreInfo {
	return s.core
}

// Done is closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns why the session ended, or nil while it is alive.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// KeepAliveStats returns the liveness statistics of the connection.
func (s *Session) KeepAliveStats() transport.KeepAliveStats {
	return s.keepAlive.Stats()
}

// Close ends the session with a close handshake.
func (s *Session) Close() error {
	_ = s.conn.SendClose()
	s.finish(ErrSessionClosed)
	return nil
}

func (s *Session) finish(err error) {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()

		s.keepAlive.Stop()
		s.client.Close()
		s.conn.Close()
		close(s.done)
	})
}

func (s *Session) readLoop() {
	for {
		data, err := s.conn.Receive(0)
		if err != nil {
			s.finish(err)
			return
		}

		if msg, ok := transport.IsControl(data); ok {
			if msg.Type == wire.ControlPong {
				s.keepAlive.PongReceived(msg.Sequence)
			}
			if s.conn.HandleControl(msg) {
				s.finish(ErrClosedByCore)
				return
			}
			continue
		}

		if err := s.client.HandleMessage(data); err != nil {
			s.logger.Debug("dropped message from core", "error", err)
		}
	}
}
