package connection

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Connection errors.
var (
	ErrManagerClosed  = errors.New("connection manager closed")
	ErrAlreadyRunning = errors.New("connection manager already running")
)

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates the manager is waiting to retry.
	StateReconnecting

	// StateClosed indicates the connection manager has stopped.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// SessionFunc establishes a session and blocks until it ends. It must call
// established once the session is usable; the backoff is reset at that
// point. The returned error describes why the session ended.
type SessionFunc func(ctx context.Context, established func()) error

// Manager runs a session repeatedly, backing off between attempts.
type Manager struct {
	mu sync.RWMutex

	state   State
	backoff *Backoff
	session SessionFunc
	running bool
	lastErr error

	onStateChange  func(oldState, newState State)
	onReconnecting func(attempt int, delay time.Duration, cause error)
}

// NewManager creates a new connection manager.
func NewManager(session SessionFunc) *Manager {
	return NewManagerWithBackoff(session, BackoffConfig{Jitter: JitterFactor})
}

// NewManagerWithBackoff creates a connection manager with custom backoff
// timing.
func NewManagerWithBackoff(session SessionFunc, cfg BackoffConfig) *Manager {
	return &Manager{
		state:   StateDisconnected,
		backoff: NewBackoff(cfg),
		session: session,
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected returns true if a session is established.
func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

// LastError returns the error that ended the most recent session.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// BackoffAttempts returns the number of retries since the last established
// session.
func (m *Manager) BackoffAttempts() int {
	return m.backoff.Attempts()
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnReconnecting sets a callback invoked before each backoff wait.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration, cause error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}

// Run runs sessions until ctx is cancelled. It returns ctx.Err() on
// shutdown.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		m.setState(StateClosed)
	}()

	for {
		m.setState(StateConnecting)

		err := m.session(ctx, func() {
			m.backoff.Reset()
			m.setState(StateConnected)
		})

		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		m.setState(StateReconnecting)

		delay := m.backoff.Next()

		m.mu.RLock()
		onReconnecting := m.onReconnecting
		m.mu.RUnlock()
		if onReconnecting != nil {
			onReconnecting(m.backoff.Attempts(), delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (m *Manager) setState(newState State) {
	m.mu.Lock()
	oldState := m.state
	if oldState == newState {
		m.mu.Unlock()
		return
	}
	m.state = newState
	fn := m.onStateChange
	m.mu.Unlock()

	if fn != nil {
		fn(oldState, newState)
	}
}
