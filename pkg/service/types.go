package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zoneremote/zoneremote-go/pkg/browse"
	"github.com/zoneremote/zoneremote-go/pkg/command"
	"github.com/zoneremote/zoneremote-go/pkg/history"
	"github.com/zoneremote/zoneremote-go/pkg/wire"
	"github.com/zoneremote/zoneremote-go/pkg/zone"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrAlreadyStarted = errors.New("service already started")
	ErrNotPaired      = errors.New("not paired with a core")
)

// Status strings reported by Status.
const (
	StatusRunning  = "Running"
	StatusLostCore = "Lost core"
)

// Core is what the service needs from a registered session with the core.
type Core interface {
	command.Transport
	SubscribeZones(ctx context.Context, handler func(zone.Event)) error
	Browse(ctx context.Context, opts browse.Options) (*browse.Result, error)
	Load(ctx context.Context, opts browse.LoadOptions) (*browse.LoadResult, error)
}

// Recorder journals executed commands.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Config configures a Service.
type Config struct {
	// Hierarchy is the browse hierarchy (default: "browse").
	Hierarchy string

	// PageSize is the number of items requested per load (default: 100).
	PageSize int

	// DefaultItemKey is browsed by Play when no key is given (default: "1").
	DefaultItemKey string

	// RequestTimeout bounds each call to the core (default: 30s).
	RequestTimeout time.Duration

	// InboxSize is the capacity of the event loop inbox (default: 64).
	InboxSize int

	// History journals commands (optional).
	History Recorder

	// Logger is the optional logger. If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Hierarchy:      browse.DefaultHierarchy,
		PageSize:       100,
		DefaultItemKey: "1",
		RequestTimeout: 30 * time.Second,
		InboxSize:      64,
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Hierarchy == "" {
		c.Hierarchy = def.Hierarchy
	}
	if c.PageSize <= 0 {
		c.PageSize = def.PageSize
	}
	if c.DefaultItemKey == "" {
		c.DefaultItemKey = def.DefaultItemKey
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = def.RequestTimeout
	}
	if c.InboxSize <= 0 {
		c.InboxSize = def.InboxSize
	}
}

// EventType identifies a service event.
type EventType uint8

const (
	// EventPaired - a core session became usable.
	EventPaired EventType = iota

	// EventUnpaired - the core session was lost.
	EventUnpaired

	// EventZonesChanged - the zone registry changed.
	EventZonesChanged

	// EventCommand - a command was dispatched.
	EventCommand

	// EventBrowseChanged - the browse state changed.
	EventBrowseChanged
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventPaired:
		return "PAIRED"
	case EventUnpaired:
		return "UNPAIRED"
	case EventZonesChanged:
		return "ZONES_CHANGED"
	case EventCommand:
		return "COMMAND"
	case EventBrowseChanged:
		return "BROWSE_CHANGED"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the type by name.
func (e EventType) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText decodes a type name produced by MarshalText.
func (e *EventType) UnmarshalText(text []byte) error {
	for t := EventPaired; t <= EventBrowseChanged; t++ {
		if t.String() == string(text) {
			*e = t
			return nil
		}
	}
	return fmt.Errorf("unknown event type %q", text)
}

// Event represents a service event.
type Event struct {
	Type EventType `json:"type"`
	Time time.Time `json:"time"`

	// Status is the service status after the event.
	Status string `json:"status"`

	// Core is set for EventPaired.
	Core *wire.CoreInfo `json:"core,omitempty"`

	// Zones is the registry snapshot for EventZonesChanged.
	Zones []zone.Zone `json:"zones,omitempty"`

	// Command and Result are set for EventCommand.
	Command string `json:"command,omitempty"`
	ZoneID  string `json:"zone_id,omitempty"`
	Result  string `json:"result,omitempty"`

	// Browse is the browse state for EventBrowseChanged.
	Browse *browse.State `json:"browse,omitempty"`
}

// BrowseResult is the outcome of a completed browse chain.
type BrowseResult struct {
	Action  browse.Action `json:"action"`
	Message string        `json:"message,omitempty"`
	IsError bool          `json:"is_error,omitempty"`
	State   browse.State  `json:"state"`
}

// PlayResult is the outcome of Play.
type PlayResult struct {
	Browse  BrowseResult   `json:"browse"`
	Command command.Result `json:"-"`
	Zone    zone.Zone      `json:"zone"`
}
