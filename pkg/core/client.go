package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoneremote/zoneremote-go/pkg/browse"
	"github.com/zoneremote/zoneremote-go/pkg/log"
	"github.com/zoneremote/zoneremote-go/pkg/wire"
	"github.com/zoneremote/zoneremote-go/pkg/zone"
)

// Client errors.
var (
	ErrRequestTimeout    = errors.New("request timed out")
	ErrClientClosed      = errors.New("client is closed")
	ErrUnexpectedReply   = errors.New("unexpected reply")
	ErrNotSubscribed     = errors.New("not subscribed to zones")
	ErrAlreadySubscribed = errors.New("already subscribed to zones")
)

// DefaultRequestTimeout bounds every request to the core.
const DefaultRequestTimeout = 30 * time.Second

// Sender sends an encoded message to the core.
type Sender interface {
	Send(data []byte) error
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Timeout bounds each request (default: 30s).
	Timeout time.Duration

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// ProtocolLogger receives decoded messages (optional).
	ProtocolLogger log.Logger

	// ConnectionID tags protocol log events.
	ConnectionID string
}

type pendingRequest struct {
	ch   chan *wire.Response
	op   wire.Operation
	sent time.Time
}

// Client speaks the request/response and event protocol of the core on top
// of a Sender. Incoming messages are fed to it through HandleMessage.
type Client struct {
	mu sync.RWMutex

	sender Sender
	config ClientConfig
	logger *slog.Logger

	nextMsgID atomic.Uint32

	pending   map[uint32]*pendingRequest
	pendingMu sync.Mutex

	zoneHandler    func(zone.Event)
	subscriptionID uint32

	// registered is the ID of the core, once Register succeeded.
	registered string

	closed bool
}

// NewClient creates a client sending on sender.
func NewClient(sender Sender, config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = DefaultRequestTimeout
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		sender:  sender,
		config:  config,
		logger:  logger,
		pending: make(map[uint32]*pendingRequest),
	}
}

// Close fails all pending requests. Later requests return ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.zoneHandler = nil
	c.mu.Unlock()

	c.pendingMu.Lock()
	for id, p := range c.pending {
		close(p.ch)
		delete(c.pending, id)
	}
	c.pendingMu.Unlock()

	return nil
}

func (c *Client) nextMessageID() uint32 {
	for {
		if id := c.nextMsgID.Add(1); id != 0 {
			return id
		}
	}
}

// send encodes and sends a request, registering a pending entry for its
// response.
func (c *Client) send(op wire.Operation, payload any) (*pendingRequest, uint32, error) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return nil, 0, ErrClientClosed
	}

	req, err := wire.NewRequest(c.nextMessageID(), op, payload)
	if err != nil {
		return nil, 0, err
	}
	data, err := wire.EncodeRequest(req)
	if err != nil {
		return nil, 0, err
	}

	p := &pendingRequest{ch: make(chan *wire.Response, 1), op: op, sent: time.Now()}
	c.pendingMu.Lock()
	c.pending[req.MessageID] = p
	c.pendingMu.Unlock()

	if err := c.sender.Send(data); err != nil {
		c.forget(req.MessageID)
		return nil, 0, err
	}
	c.logRequest(req, payload)

	return p, req.MessageID, nil
}

func (c *Client) forget(id uint32) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// await waits for the response to a pending request.
func (c *Client) await(ctx context.Context, p *pendingRequest, id uint32) (*wire.Response, error) {
	defer c.forget(id)

	timer := time.NewTimer(c.config.Timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("%s: %w", p.op, ErrRequestTimeout)
	case resp, ok := <-p.ch:
		if !ok {
			return nil, ErrClientClosed
		}
		return resp, nil
	}
}

// call sends a request and decodes a successful response payload into out.
func (c *Client) call(ctx context.Context, op wire.Operation, payload, out any) error {
	p, id, err := c.send(op, payload)
	if err != nil {
		return err
	}
	resp, err := c.await(ctx, p, id)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := wire.DecodePayload(resp.Payload, out); err != nil {
		return fmt.Errorf("%s response: %w", op, err)
	}
	return nil
}

// notify sends a request without waiting. A failed response is logged.
func (c *Client) notify(op wire.Operation, payload any, attrs ...any) error {
	p, id, err := c.send(op, payload)
	if err != nil {
		return err
	}

	go func() {
		resp, err := c.await(context.Background(), p, id)
		switch {
		case errors.Is(err, ErrClientClosed):
		case err != nil:
			c.logger.Warn("no answer from core", append(attrs, "operation", op.String(), "error", err)...)
		case !resp.IsSuccess():
			c.logger.Warn("core rejected request", append(attrs, "operation", op.String(), "error", statusError(resp))...)
		}
	}()
	return nil
}

// HandleMessage routes an incoming non-control message.
func (c *Client) HandleMessage(data []byte) error {
	kind, err := wire.PeekKind(data)
	if err != nil {
		return err
	}

	switch kind {
	case wire.KindResponse:
		resp, err := wire.DecodeResponse(data)
		if err != nil {
			return err
		}
		return c.HandleResponse(resp)
	case wire.KindEvent:
		ev, err := wire.DecodeEvent(data)
		if err != nil {
			return err
		}
		return c.HandleEvent(ev)
	default:
		return fmt.Errorf("%w: %s message", ErrUnexpectedReply, kind)
	}
}

// HandleResponse delivers a response to the request waiting for it.
func (c *Client) HandleResponse(resp *wire.Response) error {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	p, exists := c.pending[resp.MessageID]
	if !exists {
		return fmt.Errorf("%w: message %d", ErrUnexpectedReply, resp.MessageID)
	}
	c.logResponse(resp, p.op, time.Since(p.sent))

	select {
	case p.ch <- resp:
	default:
	}
	return nil
}

// HandleEvent decodes a zone event and passes it to the subscription
// handler.
func (c *Client) HandleEvent(ev *wire.Event) error {
	out, err := decodeZoneEvent(ev)
	c.logEvent(ev, out)
	if err != nil {
		return err
	}

	c.mu.Lock()
	handler := c.zoneHandler
	subID := c.subscriptionID
	if handler != nil && (subID == 0 || ev.SubscriptionID == subID) && ev.Type == zone.EventUnsubscribed {
		c.zoneHandler = nil
		c.subscriptionID = 0
	}
	c.mu.Unlock()

	if handler == nil {
		return ErrNotSubscribed
	}
	if subID != 0 && ev.SubscriptionID != subID {
		return fmt.Errorf("%w: event for subscription %d", ErrUnexpectedReply, ev.SubscriptionID)
	}
	handler(out)
	return nil
}

func decodeZoneEvent(ev *wire.Event) (zone.Event, error) {
	out := zone.Event{Kind: ev.Type}
	switch ev.Type {
	case zone.EventSubscribed:
		var p wire.ZonesSubscribedPayload
		if err := wire.DecodePayload(ev.Payload, &p); err != nil {
			return out, err
		}
		out.Zones = p.Zones
	case zone.EventChanged:
		var p wire.ZonesChangedPayload
		if err := wire.DecodePayload(ev.Payload, &p); err != nil {
			return out, err
		}
		out.Added, out.Removed, out.Changed = p.Added, p.Removed, p.Changed
	case zone.EventUnsubscribed:
	default:
		return out, fmt.Errorf("%w: event type %d", ErrUnexpectedReply, ev.Type)
	}
	return out, nil
}

// Register announces the remote to the core and returns the core's
// identity.
func (c *Client) Register(ctx context.Context, ext wire.RegisterPayload) (*wire.CoreInfo, error) {
	var info wire.CoreInfo
	if err := c.call(ctx, wire.OpRegister, &ext, &info); err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.registered = info.CoreID
	c.mu.Unlock()
	return &info, nil
}

func (c *Client) coreID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.registered
}

// SubscribeZones subscribes to zone events. The core answers with a
// Subscribed event carrying the full zone list, then Changed events.
func (c *Client) SubscribeZones(ctx context.Context, handler func(zone.Event)) error {
	c.mu.Lock()
	if c.zoneHandler != nil {
		c.mu.Unlock()
		return ErrAlreadySubscribed
	}
	// Set before sending; the Subscribed event may race the response.
	c.zoneHandler = handler
	c.mu.Unlock()

	var resp wire.SubscribeZonesResponse
	if err := c.call(ctx, wire.OpSubscribeZones, nil, &resp); err != nil {
		c.mu.Lock()
		c.zoneHandler = nil
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.subscriptionID = resp.SubscriptionID
	c.mu.Unlock()
	return nil
}

// UnsubscribeZones ends the zone subscription.
func (c *Client) UnsubscribeZones(ctx context.Context) error {
	c.mu.RLock()
	subID := c.subscriptionID
	subscribed := c.zoneHandler != nil
	c.mu.RUnlock()
	if !subscribed {
		return ErrNotSubscribed
	}

	if err := c.call(ctx, wire.OpUnsubscribeZones, &wire.UnsubscribeZonesPayload{SubscriptionID: subID}, nil); err != nil {
		return err
	}

	c.mu.Lock()
	c.zoneHandler = nil
	c.subscriptionID = 0
	c.mu.Unlock()
	return nil
}

// Control sends a transport control (play, pause, ...) to a zone or output.
func (c *Client) Control(zoneOrOutputID, control string) error {
	return c.notify(wire.OpControl, &wire.ControlPayload{ZoneOrOutputID: zoneOrOutputID, Control: control},
		"zone", zoneOrOutputID, "control", control)
}

// Mute mutes or unmutes an output. how is "mute" or "unmute".
func (c *Client) Mute(outputID, how string) error {
	return c.notify(wire.OpMute, &wire.MutePayload{OutputID: outputID, How: how},
		"output", outputID, "how", how)
}

// PauseAll pauses every zone.
func (c *Client) PauseAll() error {
	return c.notify(wire.OpPauseAll, nil)
}

// Browse navigates the content hierarchy.
func (c *Client) Browse(ctx context.Context, opts browse.Options) (*browse.Result, error) {
	var res browse.Result
	if err := c.call(ctx, wire.OpBrowse, &opts, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Load fetches a page of the current browse list.
func (c *Client) Load(ctx context.Context, opts browse.LoadOptions) (*browse.LoadResult, error) {
	var res browse.LoadResult
	if err := c.call(ctx, wire.OpLoad, &opts, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// StatusError represents an error response from the core.
type StatusError struct {
	Status  wire.Status
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Status, e.Message)
	}
	return e.Status.String()
}

func statusError(resp *wire.Response) error {
	var p wire.ErrorPayload
	_ = wire.DecodePayload(resp.Payload, &p)
	return &StatusError{Status: resp.Status, Message: p.Message}
}

func (c *Client) logRequest(req *wire.Request, payload any) {
	if c.config.ProtocolLogger == nil {
		return
	}
	op := req.Operation
	m := &log.MessageEvent{
		Type:      log.MessageTypeRequest,
		MessageID: req.MessageID,
		Operation: &op,
	}
	switch p := payload.(type) {
	case *wire.ControlPayload:
		m.Target, m.Command = p.ZoneOrOutputID, p.Control
	case *wire.MutePayload:
		m.Target, m.Command = p.OutputID, p.How
	case *browse.Options:
		m.Target, m.ItemKey = p.ZoneOrOutputID, p.ItemKey
	}
	c.protocolLog(log.DirectionOut, m)
}

func (c *Client) logResponse(resp *wire.Response, op wire.Operation, rtt time.Duration) {
	if c.config.ProtocolLogger == nil {
		return
	}
	status := resp.Status
	m := &log.MessageEvent{
		Type:           log.MessageTypeResponse,
		MessageID:      resp.MessageID,
		Operation:      &op,
		Status:         &status,
		ProcessingTime: &rtt,
	}
	if op == wire.OpBrowse && resp.IsSuccess() {
		var res browse.Result
		if wire.DecodePayload(resp.Payload, &res) == nil {
			m.Action = string(res.Action)
		}
	}
	c.protocolLog(log.DirectionIn, m)
}

func (c *Client) logEvent(ev *wire.Event, out zone.Event) {
	if c.config.ProtocolLogger == nil {
		return
	}
	subID := ev.SubscriptionID
	c.protocolLog(log.DirectionIn, &log.MessageEvent{
		Type:           log.MessageTypeEvent,
		SubscriptionID: &subID,
		EventType:      ev.Type.String(),
		Zones: &log.ZoneDelta{
			Subscribed: len(out.Zones),
			Added:      len(out.Added),
			Removed:    len(out.Removed),
			Changed:    len(out.Changed),
		},
	})
}

func (c *Client) protocolLog(dir log.Direction, m *log.MessageEvent) {
	c.config.ProtocolLogger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: c.config.ConnectionID,
		Direction:    dir,
		Layer:        log.LayerWire,
		Category:     log.CategoryMessage,
		LocalRole:    log.RoleRemote,
		CoreID:       c.coreID(),
		Message:      m,
	})
}
