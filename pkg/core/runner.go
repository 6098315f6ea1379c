package core

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/zoneremote/zoneremote-go/pkg/connection"
	"github.com/zoneremote/zoneremote-go/pkg/log"
)

// ErrNoCore is returned by resolvers that cannot locate a core.
var ErrNoCore = errors.New("no core found")

// Resolver locates the core.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticResolver always returns the same address.
type StaticResolver string

// Resolve returns the address.
func (r StaticResolver) Resolve(context.Context) (string, error) {
	if r == "" {
		return "", ErrNoCore
	}
	return string(r), nil
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) (string, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context) (string, error) {
	return f(ctx)
}

// PairingHandler is told when a session with the core becomes usable and
// when it is lost.
type PairingHandler interface {
	// CorePaired is called after registration. Returning an error ends
	// the session and schedules a retry.
	CorePaired(ctx context.Context, s *Session) error

	// CoreUnpaired is called once per paired session when it ends.
	CoreUnpaired(s *Session, cause error)
}

// Runner keeps a session with the core, reconnecting with backoff.
type Runner struct {
	config   Config
	resolver Resolver
	handler  PairingHandler
	manager  *connection.Manager
	logger   *slog.Logger
}

// NewRunner creates a runner. The backoff config may be zero for defaults.
func NewRunner(cfg Config, resolver Resolver, handler PairingHandler, backoff connection.BackoffConfig) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	r := &Runner{
		config:   cfg,
		resolver: resolver,
		handler:  handler,
		logger:   logger,
	}
	r.manager = connection.NewManagerWithBackoff(r.session, backoff)
	r.manager.OnReconnecting(func(attempt int, delay time.Duration, cause error) {
		r.logger.Info("reconnecting to core", "attempt", attempt, "delay", delay.Round(time.Millisecond), "cause", cause)
	})
	return r
}

// Run keeps a session alive until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	return r.manager.Run(ctx)
}

// State returns the connection state.
func (r *Runner) State() connection.State {
	return r.manager.State()
}

func (r *Runner) session(ctx context.Context, established func()) error {
	addr, err := r.resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	s, err := Dial(ctx, addr, r.config)
	if err != nil {
		return err
	}

	if err := r.handler.CorePaired(ctx, s); err != nil {
		s.Close()
		return err
	}
	established()
	r.logPairing(s, "", "PAIRED", "")

	var cause error
	select {
	case <-s.Done():
		cause = s.Err()
	case <-ctx.Done():
		s.Close()
		cause = ctx.Err()
	}

	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	r.logPairing(s, "PAIRED", "UNPAIRED", reason)
	r.handler.CoreUnpaired(s, cause)
	return cause
}

func (r *Runner) logPairing(s *Session, oldState, newState, reason string) {
	if r.config.ProtocolLogger == nil {
		return
	}
	r.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: s.conn.ConnID(),
		Layer:        log.LayerService,
		Category:     log.CategoryState,
		LocalRole:    log.RoleRemote,
		CoreID:       s.core.CoreID,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityPairing,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}
