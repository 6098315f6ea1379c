package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zoneremote/zoneremote-go/pkg/browse"
	"github.com/zoneremote/zoneremote-go/pkg/connection"
	"github.com/zoneremote/zoneremote-go/pkg/log"
	"github.com/zoneremote/zoneremote-go/pkg/simcore"
	"github.com/zoneremote/zoneremote-go/pkg/wire"
	"github.com/zoneremote/zoneremote-go/pkg/zone"
)

func startSim(t *testing.T) *simcore.Core {
	t.Helper()
	sim := simcore.New(simcore.Config{Address: "127.0.0.1:0"})
	require.NoError(t, sim.Start(context.Background()))
	t.Cleanup(func() { sim.Stop() })
	return sim
}

func dialSim(t *testing.T, sim *simcore.Core) *Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s, err := Dial(ctx, sim.Addr().String(), Config{RequestTimeout: 2 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionRegisters(t *testing.T) {
	sim := startSim(t)
	s := dialSim(t, sim)

	assert.Equal(t, sim.Info(), s.Core())
	assert.Equal(t, 1, sim.Remotes())
	assert.Nil(t, s.Err())
}

func TestSubscribeZones(t *testing.T) {
	sim := startSim(t)
	s := dialSim(t, sim)

	events := make(chan zone.Event, 8)
	require.NoError(t, s.Client().SubscribeZones(context.Background(), func(ev zone.Event) {
		events <- ev
	}))

	ev := <-events
	assert.Equal(t, zone.EventSubscribed, ev.Kind)
	require.Len(t, ev.Zones, 3)
	assert.Equal(t, "Kitchen", ev.Zones[0].DisplayName)
	assert.Len(t, ev.Zones[1].Outputs, 2)

	sim.AddZone(zone.Zone{ID: "zone-office", DisplayName: "Office"})
	ev = <-events
	assert.Equal(t, zone.EventChanged, ev.Kind)
	require.Len(t, ev.Added, 1)
	assert.Equal(t, "zone-office", ev.Added[0].ID)

	sim.RemoveZone("zone-garden")
	ev = <-events
	assert.Equal(t, []string{"zone-garden"}, ev.Removed)

	err := s.Client().SubscribeZones(context.Background(), func(zone.Event) {})
	assert.ErrorIs(t, err, ErrAlreadySubscribed)

	require.NoError(t, s.Client().UnsubscribeZones(context.Background()))
	assert.ErrorIs(t, s.Client().UnsubscribeZones(context.Background()), ErrNotSubscribed)
}

func TestTransportControls(t *testing.T) {
	sim := startSim(t)
	s := dialSim(t, sim)
	c := s.Client()

	require.NoError(t, c.Control("zone-kitchen", "play"))
	require.NoError(t, c.Mute("out-dac", "mute"))
	require.NoError(t, c.PauseAll())

	require.Eventually(t, func() bool { return len(sim.Calls()) == 3 }, 2*time.Second, 10*time.Millisecond)

	calls := sim.Calls()
	assert.Equal(t, simcore.Call{Operation: wire.OpControl, Target: "zone-kitchen", Value: "play"}, calls[0])
	assert.Equal(t, simcore.Call{Operation: wire.OpMute, Target: "out-dac", Value: "mute"}, calls[1])
	assert.Equal(t, wire.OpPauseAll, calls[2].Operation)

	zones := sim.Zones()
	assert.Equal(t, "paused", zones[0].State)
	assert.True(t, zones[1].Outputs[0].Volume.IsMuted)
}

func TestControlRejectedIsNotAnError(t *testing.T) {
	sim := startSim(t)
	s := dialSim(t, sim)

	// The core answers NOT_FOUND; the caller is not waiting for it.
	assert.NoError(t, s.Client().Control("zone-missing", "play"))
}

func TestBrowseAndLoad(t *testing.T) {
	sim := startSim(t)
	s := dialSim(t, sim)
	c := s.Client()
	ctx := context.Background()

	res, err := c.Browse(ctx, browse.Options{Hierarchy: browse.DefaultHierarchy, PopAll: true})
	require.NoError(t, err)
	assert.Equal(t, browse.ActionList, res.Action)
	require.NotNil(t, res.List)
	assert.Equal(t, "Explore", res.List.Title)
	assert.Equal(t, 3, res.List.Count)
	assert.Equal(t, -1, res.List.DisplayOffset)

	page, err := c.Load(ctx, browse.LoadOptions{Hierarchy: browse.DefaultHierarchy, Offset: 0, SetDisplayOffset: 0})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	assert.Equal(t, "1", page.Items[0].ItemKey)
	assert.Equal(t, "My Live Radio", page.Items[0].Title)
	assert.Equal(t, "list", page.Items[0].Hint)

	res, err = c.Browse(ctx, browse.Options{Hierarchy: browse.DefaultHierarchy, ItemKey: "1"})
	require.NoError(t, err)
	assert.Equal(t, "My Live Radio", res.List.Title)
	assert.Equal(t, 1, res.List.Level)

	page, err = c.Load(ctx, browse.LoadOptions{Hierarchy: browse.DefaultHierarchy, Offset: 1, Count: 1})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "BBC Radio 3", page.Items[0].Title)
	assert.Equal(t, 1, page.Offset)
}

func TestBrowseStatusError(t *testing.T) {
	sim := startSim(t)
	s := dialSim(t, sim)

	_, err := s.Client().Browse(context.Background(), browse.Options{Hierarchy: browse.DefaultHierarchy, ItemKey: "999"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, wire.StatusInvalidItemKey, se.Status)
	assert.Contains(t, se.Error(), "INVALID_ITEM_KEY")
}

func TestSessionEndsWhenConnectionDrops(t *testing.T) {
	sim := startSim(t)
	s := dialSim(t, sim)

	sim.DropRemotes()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
	assert.Error(t, s.Err())

	_, err := s.Client().Browse(context.Background(), browse.Options{})
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestSessionClose(t *testing.T) {
	sim := startSim(t)
	s := dialSim(t, sim)

	require.NoError(t, s.Close())
	<-s.Done()
	assert.ErrorIs(t, s.Err(), ErrSessionClosed)
	require.Eventually(t, func() bool { return sim.Remotes() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestDialFailsWithoutCore(t *testing.T) {
	sim := startSim(t)
	addr := sim.Addr().String()
	sim.Stop()

	_, err := Dial(context.Background(), addr, Config{})
	assert.Error(t, err)
}

// captureSender records outgoing messages instead of sending them.
type captureSender struct {
	mu   sync.Mutex
	sent [][]byte
	err  error
}

func (c *captureSender) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.sent = append(c.sent, data)
	return nil
}

func (c *captureSender) last(t *testing.T) *wire.Request {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.sent)
	req, err := wire.DecodeRequest(c.sent[len(c.sent)-1])
	require.NoError(t, err)
	return req
}

func (c *captureSender) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func TestClientRequestTimeout(t *testing.T) {
	c := NewClient(&captureSender{}, ClientConfig{Timeout: 20 * time.Millisecond})

	_, err := c.Load(context.Background(), browse.LoadOptions{Hierarchy: browse.DefaultHierarchy})
	assert.ErrorIs(t, err, ErrRequestTimeout)
}

func TestClientContextCancel(t *testing.T) {
	c := NewClient(&captureSender{}, ClientConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Browse(ctx, browse.Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientSendFailure(t *testing.T) {
	sendErr := errors.New("broken pipe")
	c := NewClient(&captureSender{err: sendErr}, ClientConfig{})

	assert.ErrorIs(t, c.Control("z", "play"), sendErr)
	_, err := c.Browse(context.Background(), browse.Options{})
	assert.ErrorIs(t, err, sendErr)
}

func TestClientDeliversResponse(t *testing.T) {
	sender := &captureSender{}
	c := NewClient(sender, ClientConfig{})

	type result struct {
		res *browse.Result
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := c.Browse(context.Background(), browse.Options{Hierarchy: "browse", ItemKey: "7"})
		done <- result{res, err}
	}()

	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, time.Millisecond)
	req := sender.last(t)
	assert.Equal(t, wire.OpBrowse, req.Operation)

	var opts browse.Options
	require.NoError(t, wire.DecodePayload(req.Payload, &opts))
	assert.Equal(t, "7", opts.ItemKey)

	resp, err := wire.NewResponse(req.MessageID, wire.StatusSuccess, &browse.Result{Action: browse.ActionRemoveItem})
	require.NoError(t, err)
	data, err := wire.EncodeResponse(resp)
	require.NoError(t, err)
	require.NoError(t, c.HandleMessage(data))

	r := <-done
	require.NoError(t, r.err)
	assert.Equal(t, browse.ActionRemoveItem, r.res.Action)

	// A second delivery has nobody waiting.
	assert.ErrorIs(t, c.HandleMessage(data), ErrUnexpectedReply)
}

func TestClientProtocolLog(t *testing.T) {
	var mu sync.Mutex
	var events []log.Event
	sender := &captureSender{}
	c := NewClient(sender, ClientConfig{ConnectionID: "conn-1", ProtocolLogger: log.LoggerFunc(func(e log.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})})
	snapshot := func() []log.Event {
		mu.Lock()
		defer mu.Unlock()
		return append([]log.Event(nil), events...)
	}

	require.NoError(t, c.Control("z1", "playpause"))

	done := make(chan error, 1)
	go func() {
		_, err := c.Browse(context.Background(), browse.Options{Hierarchy: "browse", ZoneOrOutputID: "z1", ItemKey: "4"})
		done <- err
	}()
	require.Eventually(t, func() bool { return sender.count() == 2 }, time.Second, time.Millisecond)
	req := sender.last(t)
	resp, err := wire.NewResponse(req.MessageID, wire.StatusSuccess, &browse.Result{Action: browse.ActionMessage, Message: "Nothing to play"})
	require.NoError(t, err)
	data, err := wire.EncodeResponse(resp)
	require.NoError(t, err)
	require.NoError(t, c.HandleMessage(data))
	require.NoError(t, <-done)

	c.mu.Lock()
	c.zoneHandler = func(zone.Event) {}
	c.mu.Unlock()
	payload, err := wire.EncodePayload(&wire.ZonesChangedPayload{
		Added:   []zone.Zone{{ID: "z3", DisplayName: "Office"}},
		Removed: []string{"z1", "z2"},
	})
	require.NoError(t, err)
	data, err = wire.EncodeEvent(&wire.Event{Type: zone.EventChanged, Payload: payload})
	require.NoError(t, err)
	require.NoError(t, c.HandleMessage(data))

	got := snapshot()
	var control, browseReq, browseResp, zoneEvent *log.MessageEvent
	for _, e := range got {
		m := e.Message
		require.NotNil(t, m)
		assert.Equal(t, "conn-1", e.ConnectionID)
		switch {
		case m.Type == log.MessageTypeEvent:
			zoneEvent = m
		case m.Operation == nil:
		case *m.Operation == wire.OpControl:
			control = m
		case *m.Operation == wire.OpBrowse && m.Type == log.MessageTypeRequest:
			browseReq = m
		case *m.Operation == wire.OpBrowse:
			browseResp = m
		}
	}

	require.NotNil(t, control)
	assert.Equal(t, "z1", control.Target)
	assert.Equal(t, "playpause", control.Command)

	require.NotNil(t, browseReq)
	assert.Equal(t, "z1", browseReq.Target)
	assert.Equal(t, "4", browseReq.ItemKey)

	require.NotNil(t, browseResp)
	assert.Equal(t, "message", browseResp.Action)
	require.NotNil(t, browseResp.ProcessingTime)

	require.NotNil(t, zoneEvent)
	require.NotNil(t, zoneEvent.Zones)
	assert.Equal(t, log.ZoneDelta{Added: 1, Removed: 2}, *zoneEvent.Zones)
}

func TestClientEventWithoutSubscription(t *testing.T) {
	c := NewClient(&captureSender{}, ClientConfig{})

	data, err := wire.EncodeEvent(&wire.Event{SubscriptionID: 1, Type: zone.EventSubscribed})
	require.NoError(t, err)
	assert.ErrorIs(t, c.HandleMessage(data), ErrNotSubscribed)
}

func TestClientClose(t *testing.T) {
	c := NewClient(&captureSender{}, ClientConfig{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Browse(context.Background(), browse.Options{})
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, c.Close())
	assert.ErrorIs(t, <-done, ErrClientClosed)

	_, err := c.Load(context.Background(), browse.LoadOptions{})
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestStaticResolver(t *testing.T) {
	addr, err := StaticResolver("core.local:9330").Resolve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "core.local:9330", addr)

	_, err = StaticResolver("").Resolve(context.Background())
	assert.ErrorIs(t, err, ErrNoCore)
}

type pairingRecorder struct {
	mu       sync.Mutex
	paired   int
	unpaired int
	pairedCh chan *Session
}

func (p *pairingRecorder) CorePaired(ctx context.Context, s *Session) error {
	p.mu.Lock()
	p.paired++
	p.mu.Unlock()
	p.pairedCh <- s
	return nil
}

func (p *pairingRecorder) CoreUnpaired(*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unpaired++
}

func (p *pairingRecorder) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paired, p.unpaired
}

func TestRunnerReconnects(t *testing.T) {
	sim := startSim(t)
	rec := &pairingRecorder{pairedCh: make(chan *Session, 4)}

	r := NewRunner(Config{RequestTimeout: 2 * time.Second}, StaticResolver(sim.Addr().String()), rec,
		connection.BackoffConfig{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case <-rec.pairedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("not paired")
	}
	require.Eventually(t, func() bool { return r.State() == connection.StateConnected }, time.Second, 5*time.Millisecond)

	sim.DropRemotes()

	select {
	case <-rec.pairedCh:
	case <-time.After(2 * time.Second):
		t.Fatal("not re-paired")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	paired, unpaired := rec.counts()
	assert.Equal(t, 2, paired)
	assert.Equal(t, 2, unpaired)
	assert.Equal(t, connection.StateClosed, r.State())
}

func TestRunnerRetriesFailedPairing(t *testing.T) {
	sim := startSim(t)
	attempts := make(chan struct{}, 8)

	handler := pairingFuncs{
		paired: func(context.Context, *Session) error {
			attempts <- struct{}{}
			return errors.New("subscribe failed")
		},
	}
	r := NewRunner(Config{}, StaticResolver(sim.Addr().String()), handler,
		connection.BackoffConfig{Initial: 5 * time.Millisecond, Max: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	for range 2 {
		select {
		case <-attempts:
		case <-time.After(2 * time.Second):
			t.Fatal("no retry")
		}
	}
}

type pairingFuncs struct {
	paired   func(context.Context, *Session) error
	unpaired func(*Session, error)
}

func (p pairingFuncs) CorePaired(ctx context.Context, s *Session) error {
	return p.paired(ctx, s)
}

func (p pairingFuncs) CoreUnpaired(s *Session, err error) {
	if p.unpaired != nil {
		p.unpaired(s, err)
	}
}
