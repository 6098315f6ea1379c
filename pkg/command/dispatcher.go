// Package command maps external command names onto transport operations
// of the core.
package command

import (
	"errors"
	"io"
	"log/slog"
	"slices"

	"github.com/zoneremote/zoneremote-go/pkg/zone"
)

// Command errors.
var (
	ErrUnsupported   = errors.New("command not supported")
	ErrInvalidTarget = errors.New("command target invalid")
)

// Transport is the subset of the core's transport service the dispatcher
// drives. Calls are fire-and-forget: an error means the request could not
// be sent, not that the core rejected it.
type Transport interface {
	Control(zoneID, control string) error
	Mute(outputID, how string) error
	PauseAll() error
}

// Result is the outcome of Execute.
type Result uint8

const (
	Executed Result = iota
	Unsupported
	InvalidTarget
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case Executed:
		return "executed"
	case Unsupported:
		return "unsupported"
	case InvalidTarget:
		return "invalid_target"
	default:
		return "unknown"
	}
}

// Err returns the sentinel error for a non-executed result, nil otherwise.
func (r Result) Err() error {
	switch r {
	case Unsupported:
		return ErrUnsupported
	case InvalidTarget:
		return ErrInvalidTarget
	default:
		return nil
	}
}

type route uint8

const (
	routeZone route = iota + 1
	routeOutput
	routeGlobal
)

// table is the fixed command table. Names are case-sensitive.
var table = map[string]route{
	"play":      routeZone,
	"pause":     routeZone,
	"next":      routeZone,
	"previous":  routeZone,
	"playpause": routeZone,
	"mute":      routeOutput,
	"unmute":    routeOutput,
	"pause_all": routeGlobal,
}

// Commands returns the supported command names in sorted order.
func Commands() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsSupported returns true if name is in the command table.
func IsSupported(name string) bool {
	_, ok := table[name]
	return ok
}

// Dispatcher routes commands to a Transport.
type Dispatcher struct {
	transport Transport
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher. A nil logger discards output.
func NewDispatcher(t Transport, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{transport: t, logger: logger}
}

// Execute issues command against z.
//
// Zone transport commands go to the zone itself, mute and unmute go to the
// zone's first output, pause_all ignores the zone. A failure to send is
// logged and does not change the result.
func (d *Dispatcher) Execute(z zone.Zone, command string) Result {
	r, ok := table[command]
	if !ok {
		d.logger.Warn("command not supported", "command", command, "zone", z.DisplayName)
		return Unsupported
	}

	var err error
	switch r {
	case routeZone:
		err = d.transport.Control(z.ID, command)
	case routeOutput:
		out, ferr := z.FirstOutput()
		if ferr != nil {
			d.logger.Warn("command has no target", "command", command, "zone", z.DisplayName, "error", ferr)
			return InvalidTarget
		}
		err = d.transport.Mute(out.ID, command)
	case routeGlobal:
		err = d.transport.PauseAll()
	}

	if err != nil {
		d.logger.Error("command send failed", "command", command, "zone", z.DisplayName, "error", err)
	} else {
		d.logger.Info("command executed", "command", command, "zone", z.DisplayName, "zoneID", z.ID)
	}
	return Executed
}
