package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/zoneremote/zoneremote-go/pkg/browse"
	"github.com/zoneremote/zoneremote-go/pkg/command"
	"github.com/zoneremote/zoneremote-go/pkg/core"
	"github.com/zoneremote/zoneremote-go/pkg/history"
	"github.com/zoneremote/zoneremote-go/pkg/wire"
	"github.com/zoneremote/zoneremote-go/pkg/zone"
)

// Service is the remote: it owns the zone registry, the command dispatcher
// and the browse session. All registry and browse mutations run on a
// single event loop goroutine; readers use the locks inside the registry
// and the session.
type Service struct {
	config Config
	logger *slog.Logger

	registry   *zone.Registry
	dispatcher *command.Dispatcher
	session    *browse.Session

	inbox  chan func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.RWMutex
	started    bool
	core       Core
	coreInfo   *wire.CoreInfo
	generation uint64
	status     string

	subsMu    sync.Mutex
	subs      map[int]chan Event
	nextSubID int

	// waiters is owned by the event loop.
	waiters map[uint64]chan chainResult
}

type chainResult struct {
	result BrowseResult
	err    error
}

// New creates a service. It does nothing until Start.
func New(config Config) *Service {
	config.applyDefaults()
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Service{
		config:   config,
		logger:   logger,
		registry: zone.NewRegistry(),
		session:  browse.NewSession(config.PageSize),
		inbox:    make(chan func(), config.InboxSize),
		status:   StatusRunning,
		subs:     make(map[int]chan Event),
		waiters:  make(map[uint64]chan chainResult),
	}
	s.dispatcher = command.NewDispatcher(transportProxy{s}, logger)
	return s
}

// Start starts the event loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.loop()

	s.logger.Info("service started", "status", s.status)
	return nil
}

// Stop stops the event loop. Pending browse chains fail with
// ErrNotStarted.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.started = false
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	for token, w := range s.waiters {
		w <- chainResult{err: ErrNotStarted}
		delete(s.waiters, token)
	}

	s.subsMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subsMu.Unlock()
	return nil
}

func (s *Service) loop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case fn := <-s.inbox:
			fn()
		}
	}
}

// post queues fn on the event loop.
func (s *Service) post(fn func()) error {
	s.mu.RLock()
	started := s.started
	ctx := s.ctx
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	select {
	case s.inbox <- fn:
		return nil
	case <-ctx.Done():
		return ErrNotStarted
	}
}

func (s *Service) stopped() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ctx.Done()
}

// Status returns the human-readable service status.
func (s *Service) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// CoreInfo returns the paired core, or nil.
func (s *Service) CoreInfo() *wire.CoreInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.coreInfo == nil {
		return nil
	}
	info := *s.coreInfo
	return &info
}

// Paired returns true while a core session is attached.
func (s *Service) Paired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.core != nil
}

func (s *Service) currentCore() (Core, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.core, s.generation
}

// Attach makes c the core of the service and subscribes to its zones.
func (s *Service) Attach(ctx context.Context, c Core, info wire.CoreInfo) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.generation++
	gen := s.generation
	s.core = c
	s.coreInfo = &info
	s.status = fmt.Sprintf("Paired with %s", info.DisplayName)
	s.mu.Unlock()

	s.logger.Info("core paired", "core", info.DisplayName, "core_id", info.CoreID, "version", info.Version)

	err := c.SubscribeZones(ctx, func(ev zone.Event) {
		if err := s.post(func() { s.applyZoneEvent(gen, ev) }); err != nil {
			s.logger.Debug("zone event dropped", "event", ev.Kind.String(), "error", err)
		}
	})
	if err != nil {
		s.logger.Error("zone subscription failed", "error", err)
		s.Detach(err)
		return fmt.Errorf("subscribe zones: %w", err)
	}

	s.emit(Event{Type: EventPaired, Core: &info})
	return nil
}

// Detach drops the current core. The zone registry is cleared and the
// browse session reset.
func (s *Service) Detach(cause error) {
	s.mu.Lock()
	if s.core == nil {
		s.mu.Unlock()
		return
	}
	s.core = nil
	s.coreInfo = nil
	s.generation++
	s.status = StatusLostCore
	s.mu.Unlock()

	s.logger.Warn("lost core", "cause", cause)

	err := s.post(func() {
		s.registry.Clear()
		s.session.Reset()
		for token, w := range s.waiters {
			w <- chainResult{err: ErrNotPaired}
			delete(s.waiters, token)
		}
		s.emit(Event{Type: EventUnpaired})
		s.emit(Event{Type: EventZonesChanged, Zones: []zone.Zone{}})
	})
	if err != nil {
		s.registry.Clear()
		s.session.Reset()
	}
}

// CorePaired attaches a newly registered session.
func (s *Service) CorePaired(ctx context.Context, sess *core.Session) error {
	return s.Attach(ctx, sess.Client(), sess.Core())
}

// CoreUnpaired detaches a lost session.
func (s *Service) CoreUnpaired(_ *core.Session, cause error) {
	s.Detach(cause)
}

var _ core.PairingHandler = (*Service)(nil)

// applyZoneEvent runs on the event loop.
func (s *Service) applyZoneEvent(gen uint64, ev zone.Event) {
	if _, current := s.currentCore(); current != gen {
		return
	}

	if ev.Kind == zone.EventSubscribed {
		for _, z := range ev.Zones {
			s.logger.Info("zone", "name", z.DisplayName, "zone_id", z.ID)
		}
	}

	if s.registry.Apply(ev) {
		s.emit(Event{Type: EventZonesChanged, Zones: s.registry.Zones()})
	}
}

// Zones returns a snapshot of the registry in insertion order.
func (s *Service) Zones() []zone.Zone {
	return s.registry.Zones()
}

// FindZone resolves a display name, falling back to a zone ID.
func (s *Service) FindZone(nameOrID string) (zone.Zone, error) {
	return s.registry.Lookup(nameOrID)
}

// Execute dispatches command to the zone named nameOrID.
func (s *Service) Execute(ctx context.Context, nameOrID, cmd string) (command.Result, zone.Zone, error) {
	z, err := s.registry.Lookup(nameOrID)
	if err != nil {
		return command.Unsupported, zone.Zone{}, fmt.Errorf("%q: %w", nameOrID, err)
	}
	return s.execute(ctx, z, cmd)
}

// execute dispatches cmd to an already resolved zone.
func (s *Service) execute(ctx context.Context, z zone.Zone, cmd string) (command.Result, zone.Zone, error) {
	if !s.Paired() {
		return command.Unsupported, z, ErrNotPaired
	}

	res := s.dispatcher.Execute(z, cmd)
	s.record(ctx, z, cmd, res)
	s.emit(Event{Type: EventCommand, Command: cmd, ZoneID: z.ID, Result: res.String()})

	if err := res.Err(); err != nil {
		return res, z, fmt.Errorf("%s on %q: %w", cmd, z.DisplayName, err)
	}
	return res, z, nil
}

func (s *Service) record(ctx context.Context, z zone.Zone, cmd string, res command.Result) {
	if s.config.History == nil {
		return
	}
	e := history.Entry{
		Time:     time.Now(),
		ZoneID:   z.ID,
		ZoneName: z.DisplayName,
		Command:  cmd,
		Result:   res.String(),
	}
	if err := res.Err(); err != nil {
		e.Error = err.Error()
	}
	if err := s.config.History.Record(ctx, e); err != nil {
		s.logger.Warn("history not recorded", "command", cmd, "error", err)
	}
}

// Subscribe returns a feed of service events. Slow readers miss events.
// The returned function ends the subscription.
func (s *Service) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	s.subsMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	s.subsMu.Unlock()

	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
	}
}

func (s *Service) emit(ev Event) {
	ev.Time = time.Now()
	ev.Status = s.Status()

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// transportProxy forwards dispatcher calls to the current core.
type transportProxy struct {
	s *Service
}

func (p transportProxy) Control(zoneID, control string) error {
	c, _ := p.s.currentCore()
	if c == nil {
		return ErrNotPaired
	}
	return c.Control(zoneID, control)
}

func (p transportProxy) Mute(outputID, how string) error {
	c, _ := p.s.currentCore()
	if c == nil {
		return ErrNotPaired
	}
	return c.Mute(outputID, how)
}

func (p transportProxy) PauseAll() error {
	c, _ := p.s.currentCore()
	if c == nil {
		return ErrNotPaired
	}
	return c.PauseAll()
}
