package simcore

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"

	"github.com/zoneremote/zoneremote-go/pkg/browse"
	"github.com/zoneremote/zoneremote-go/pkg/log"
	"github.com/zoneremote/zoneremote-go/pkg/transport"
	"github.com/zoneremote/zoneremote-go/pkg/wire"
	"github.com/zoneremote/zoneremote-go/pkg/zone"
)

// DefaultPageSize is the number of items returned by a load without count.
const DefaultPageSize = 100

// Config configures a simulated core.
type Config struct {
	// Address to listen on (default ":9330").
	Address string

	// TLSConfig enables TLS when set.
	TLSConfig *tls.Config

	CoreID  string
	Name    string
	Version string

	// Zones is the initial zone list (default: DefaultZones()).
	Zones []zone.Zone

	// Tree is the browse hierarchy (default: DefaultTree()).
	Tree *Node

	// Logger receives operational logs. Nil discards them.
	Logger *slog.Logger

	// ProtocolLogger captures frames (optional).
	ProtocolLogger log.Logger
}

// DefaultZones returns three zones; "Garden" has no outputs.
func DefaultZones() []zone.Zone {
	return []zone.Zone{
		{
			ID:          "zone-kitchen",
			DisplayName: "Kitchen",
			State:       "stopped",
			Outputs: []zone.Output{
				{ID: "out-kitchen", ZoneID: "zone-kitchen", DisplayName: "Kitchen Speaker", Volume: &zone.Volume{Type: "number", Min: 0, Max: 100, Value: 30}},
			},
		},
		{
			ID:          "zone-living",
			DisplayName: "Living Room",
			State:       "stopped",
			Outputs: []zone.Output{
				{ID: "out-dac", ZoneID: "zone-living", DisplayName: "RME ADI-2 DAC", Volume: &zone.Volume{Type: "db", Min: -80, Max: 0, Value: -20}},
				{ID: "out-sub", ZoneID: "zone-living", DisplayName: "Subwoofer"},
			},
		},
		{ID: "zone-garden", DisplayName: "Garden", State: "stopped"},
	}
}

// Call records an operation the core performed on behalf of a remote.
type Call struct {
	Operation wire.Operation
	Target    string
	Value     string
}

type remote struct {
	ext            *wire.RegisterPayload
	subscriptionID uint32
	browser        *browser
}

// Core is an in-process stand-in for the audio core. It speaks the session
// protocol over real TCP and keeps zones and a browse tree in memory.
type Core struct {
	config Config
	logger *slog.Logger
	server *transport.Server
	tree   *Node

	mu        sync.Mutex
	zones     []zone.Zone
	remotes   map[*transport.ServerConn]*remote
	calls     []Call
	nextSubID uint32

	browseHook func(browse.Options) *browse.Result
}

// New creates a simulated core.
func New(cfg Config) *Core {
	if cfg.CoreID == "" {
		cfg.CoreID = "sim-core"
	}
	if cfg.Name == "" {
		cfg.Name = "Simulated Core"
	}
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	if cfg.Zones == nil {
		cfg.Zones = DefaultZones()
	}
	if cfg.Tree == nil {
		cfg.Tree = DefaultTree()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	assignKeys(cfg.Tree)

	c := &Core{
		config:  cfg,
		logger:  logger,
		tree:    cfg.Tree,
		remotes: make(map[*transport.ServerConn]*remote),
	}
	for _, z := range cfg.Zones {
		c.zones = append(c.zones, z.Clone())
	}

	c.server = transport.NewServer(transport.ServerConfig{
		Address:   cfg.Address,
		TLSConfig: cfg.TLSConfig,
		Logger:    cfg.ProtocolLogger,
		OnConnect: func(conn *transport.ServerConn) {
			c.mu.Lock()
			c.remotes[conn] = &remote{browser: newBrowser(c.tree)}
			c.mu.Unlock()
			c.logger.Info("remote connected", "addr", conn.RemoteAddr())
		},
		OnDisconnect: func(conn *transport.ServerConn) {
			c.mu.Lock()
			delete(c.remotes, conn)
			c.mu.Unlock()
			c.logger.Info("remote disconnected", "addr", conn.RemoteAddr())
		},
		OnMessage: c.handleMessage,
		OnError: func(conn *transport.ServerConn, err error) {
			c.logger.Debug("connection error", "error", err)
		},
	})
	return c
}

// Start starts listening.
func (c *Core) Start(ctx context.Context) error {
	return c.server.Start(ctx)
}

// Stop closes the listener and every remote connection.
func (c *Core) Stop() error {
	return c.server.Stop()
}

// Addr returns the listen address.
func (c *Core) Addr() net.Addr {
	return c.server.Addr()
}

// Info returns the identity announced on registration.
func (c *Core) Info() wire.CoreInfo {
	return wire.CoreInfo{CoreID: c.config.CoreID, DisplayName: c.config.Name, Version: c.config.Version}
}

// Zones returns a snapshot of the zones.
func (c *Core) Zones() []zone.Zone {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]zone.Zone, len(c.zones))
	for i, z := range c.zones {
		out[i] = z.Clone()
	}
	return out
}

// Calls returns the operations performed so far.
func (c *Core) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

// Remotes returns the number of registered remotes.
func (c *Core) Remotes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.remotes {
		if r.ext != nil {
			n++
		}
	}
	return n
}

// SetBrowseHook overrides browse results. A hook returning nil falls back
// to the tree.
func (c *Core) SetBrowseHook(fn func(browse.Options) *browse.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.browseHook = fn
}

// AddZone adds a zone and notifies subscribers.
func (c *Core) AddZone(z zone.Zone) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zones = append(c.zones, z.Clone())
	c.broadcastLocked(zone.EventChanged, &wire.ZonesChangedPayload{Added: []zone.Zone{z}})
}

// RemoveZone removes a zone and notifies subscribers.
func (c *Core) RemoveZone(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zones = slices.DeleteFunc(c.zones, func(z zone.Zone) bool { return z.ID == id })
	c.broadcastLocked(zone.EventChanged, &wire.ZonesChangedPayload{Removed: []string{id}})
}

// DropRemotes closes every remote connection without a close handshake.
func (c *Core) DropRemotes() {
	c.mu.Lock()
	conns := make([]*transport.ServerConn, 0, len(c.remotes))
	for conn := range c.remotes {
		conns = append(conns, conn)
	}
	c.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (c *Core) handleMessage(conn *transport.ServerConn, data []byte) {
	req, err := wire.DecodeRequest(data)
	if err != nil {
		c.logger.Debug("undecodable request", "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.remotes[conn]
	if !ok {
		return
	}

	resp, after := c.handleRequest(r, req)
	if out, err := wire.EncodeResponse(resp); err == nil {
		conn.Send(out)
	}
	if after != nil {
		after(conn)
	}
}

// handleRequest returns the response and an optional follow-up run after
// the response is sent.
func (c *Core) handleRequest(r *remote, req *wire.Request) (*wire.Response, func(*transport.ServerConn)) {
	if err := req.Validate(); err != nil {
		return wire.NewErrorResponse(req.MessageID, wire.StatusInvalidRequest, err.Error()), nil
	}
	if req.Operation != wire.OpRegister && r.ext == nil {
		return wire.NewErrorResponse(req.MessageID, wire.StatusNotRegistered, "register first"), nil
	}

	switch req.Operation {
	case wire.OpRegister:
		var p wire.RegisterPayload
		if err := wire.DecodePayload(req.Payload, &p); err != nil || p.ExtensionID == "" {
			return wire.NewErrorResponse(req.MessageID, wire.StatusInvalidRequest, "extension id required"), nil
		}
		r.ext = &p
		c.logger.Info("remote registered", "extension", p.ExtensionID, "name", p.DisplayName)
		return c.respond(req.MessageID, c.Info()), nil

	case wire.OpSubscribeZones:
		c.nextSubID++
		r.subscriptionID = c.nextSubID
		subID := r.subscriptionID
		zones := make([]zone.Zone, len(c.zones))
		for i, z := range c.zones {
			zones[i] = z.Clone()
		}
		return c.respond(req.MessageID, &wire.SubscribeZonesResponse{SubscriptionID: subID}), func(conn *transport.ServerConn) {
			c.sendEvent(conn, subID, zone.EventSubscribed, &wire.ZonesSubscribedPayload{Zones: zones})
		}

	case wire.OpUnsubscribeZones:
		var p wire.UnsubscribeZonesPayload
		if err := wire.DecodePayload(req.Payload, &p); err != nil || p.SubscriptionID != r.subscriptionID {
			return wire.NewErrorResponse(req.MessageID, wire.StatusNotFound, "unknown subscription"), nil
		}
		r.subscriptionID = 0
		return c.respond(req.MessageID, nil), nil

	case wire.OpControl:
		var p wire.ControlPayload
		if err := wire.DecodePayload(req.Payload, &p); err != nil {
			return wire.NewErrorResponse(req.MessageID, wire.StatusInvalidRequest, err.Error()), nil
		}
		return c.control(req.MessageID, p), nil

	case wire.OpMute:
		var p wire.MutePayload
		if err := wire.DecodePayload(req.Payload, &p); err != nil {
			return wire.NewErrorResponse(req.MessageID, wire.StatusInvalidRequest, err.Error()), nil
		}
		return c.mute(req.MessageID, p), nil

	case wire.OpPauseAll:
		c.calls = append(c.calls, Call{Operation: wire.OpPauseAll})
		var changed []zone.Zone
		for i := range c.zones {
			if c.zones[i].State == "playing" {
				c.zones[i].State = "paused"
				changed = append(changed, c.zones[i].Clone())
			}
		}
		if len(changed) > 0 {
			c.broadcastLocked(zone.EventChanged, &wire.ZonesChangedPayload{Changed: changed})
		}
		return c.respond(req.MessageID, nil), nil

	case wire.OpBrowse:
		var opts browse.Options
		if err := wire.DecodePayload(req.Payload, &opts); err != nil {
			return wire.NewErrorResponse(req.MessageID, wire.StatusInvalidRequest, err.Error()), nil
		}
		return c.browse(req.MessageID, r.browser, opts), nil

	case wire.OpLoad:
		var opts browse.LoadOptions
		if err := wire.DecodePayload(req.Payload, &opts); err != nil {
			return wire.NewErrorResponse(req.MessageID, wire.StatusInvalidRequest, err.Error()), nil
		}
		return c.respond(req.MessageID, r.browser.load(opts)), nil
	}

	return wire.NewErrorResponse(req.MessageID, wire.StatusUnsupported, "unknown operation"), nil
}

func (c *Core) control(msgID uint32, p wire.ControlPayload) *wire.Response {
	i := c.zoneIndex(p.ZoneOrOutputID)
	if i < 0 {
		return wire.NewErrorResponse(msgID, wire.StatusNotFound, "zone not found")
	}

	z := &c.zones[i]
	switch p.Control {
	case "play":
		z.State = "playing"
	case "pause":
		z.State = "paused"
	case "stop":
		z.State = "stopped"
	case "playpause":
		if z.State == "playing" {
			z.State = "paused"
		} else {
			z.State = "playing"
		}
	case "next", "previous":
	default:
		return wire.NewErrorResponse(msgID, wire.StatusInvalidRequest, fmt.Sprintf("unknown control %q", p.Control))
	}

	c.calls = append(c.calls, Call{Operation: wire.OpControl, Target: z.ID, Value: p.Control})
	c.broadcastLocked(zone.EventChanged, &wire.ZonesChangedPayload{Changed: []zone.Zone{z.Clone()}})
	return c.respond(msgID, nil)
}

func (c *Core) mute(msgID uint32, p wire.MutePayload) *wire.Response {
	if p.How != "mute" && p.How != "unmute" {
		return wire.NewErrorResponse(msgID, wire.StatusInvalidRequest, fmt.Sprintf("unknown mute action %q", p.How))
	}
	for i := range c.zones {
		for j := range c.zones[i].Outputs {
			o := &c.zones[i].Outputs[j]
			if o.ID != p.OutputID {
				continue
			}
			if o.Volume == nil {
				o.Volume = &zone.Volume{}
			}
			o.Volume.IsMuted = p.How == "mute"
			c.calls = append(c.calls, Call{Operation: wire.OpMute, Target: o.ID, Value: p.How})
			c.broadcastLocked(zone.EventChanged, &wire.ZonesChangedPayload{Changed: []zone.Zone{c.zones[i].Clone()}})
			return c.respond(msgID, nil)
		}
	}
	return wire.NewErrorResponse(msgID, wire.StatusNotFound, "output not found")
}

func (c *Core) browse(msgID uint32, b *browser, opts browse.Options) *wire.Response {
	if c.browseHook != nil {
		if res := c.browseHook(opts); res != nil {
			return c.respond(msgID, res)
		}
	}

	if opts.PopAll {
		b.pop(len(b.stack))
	}
	if opts.PopLevels > 0 {
		b.pop(opts.PopLevels)
	}
	if opts.ItemKey == "" {
		return c.respond(msgID, &browse.Result{Action: browse.ActionList, List: b.list()})
	}

	n := b.top().child(opts.ItemKey)
	if n == nil {
		return wire.NewErrorResponse(msgID, wire.StatusInvalidItemKey, "item no longer exists")
	}
	if n.isList() {
		b.stack = append(b.stack, n)
		return c.respond(msgID, &browse.Result{Action: browse.ActionList, List: b.list()})
	}

	// Leaves load into the zone without starting playback.
	i := c.zoneIndex(opts.ZoneOrOutputID)
	if i < 0 {
		return c.respond(msgID, &browse.Result{Action: browse.ActionMessage, Message: "Select a zone first", IsError: true})
	}
	z := &c.zones[i]
	z.NowPlaying = &zone.NowPlaying{Title: n.Title, Artist: n.Subtitle}
	if z.State != "playing" {
		z.State = "paused"
	}
	c.calls = append(c.calls, Call{Operation: wire.OpBrowse, Target: z.ID, Value: n.Title})
	c.broadcastLocked(zone.EventChanged, &wire.ZonesChangedPayload{Changed: []zone.Zone{z.Clone()}})
	return c.respond(msgID, &browse.Result{Action: browse.ActionNone})
}

// zoneIndex finds a zone by zone ID or by the ID of one of its outputs.
func (c *Core) zoneIndex(id string) int {
	for i, z := range c.zones {
		if z.ID == id {
			return i
		}
		for _, o := range z.Outputs {
			if o.ID == id {
				return i
			}
		}
	}
	return -1
}

func (c *Core) respond(msgID uint32, payload any) *wire.Response {
	resp, err := wire.NewResponse(msgID, wire.StatusSuccess, payload)
	if err != nil {
		return wire.NewErrorResponse(msgID, wire.StatusInvalidRequest, err.Error())
	}
	return resp
}

func (c *Core) broadcastLocked(kind zone.EventKind, payload any) {
	for conn, r := range c.remotes {
		if r.subscriptionID != 0 {
			c.sendEvent(conn, r.subscriptionID, kind, payload)
		}
	}
}

func (c *Core) sendEvent(conn *transport.ServerConn, subID uint32, kind zone.EventKind, payload any) {
	raw, err := wire.EncodePayload(payload)
	if err != nil {
		c.logger.Error("encode event", "error", err)
		return
	}
	data, err := wire.EncodeEvent(&wire.Event{SubscriptionID: subID, Type: kind, Payload: raw})
	if err != nil {
		c.logger.Error("encode event", "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		c.logger.Debug("event not delivered", "error", err)
	}
}
