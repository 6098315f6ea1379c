// Package commands implements the zoneremote-log subcommands.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/zoneremote/zoneremote-go/pkg/log"
	"github.com/zoneremote/zoneremote-go/pkg/wire"
)

// Criteria holds the raw selection flags shared by every subcommand.
type Criteria struct {
	ConnID     string
	CoreID     string
	Since      string // RFC3339
	Until      string // RFC3339
	Layer      string
	Direction  string
	Category   string
	Operation  string
	Zone       string
	ZoneEvents bool
}

// Filter validates c and converts it into a reader filter.
func (c Criteria) Filter() (log.Filter, error) {
	f := log.Filter{
		ConnectionID: c.ConnID,
		CoreID:       c.CoreID,
		Target:       c.Zone,
		ZoneEvents:   c.ZoneEvents,
	}

	var err error
	if f.Since, err = parseTime("since", c.Since); err != nil {
		return f, err
	}
	if f.Until, err = parseTime("until", c.Until); err != nil {
		return f, err
	}
	if c.Layer != "" {
		l, err := ParseLayerFlag(c.Layer)
		if err != nil {
			return f, err
		}
		f.Layer = &l
	}
	if c.Direction != "" {
		d, err := ParseDirectionFlag(c.Direction)
		if err != nil {
			return f, err
		}
		f.Direction = &d
	}
	if c.Category != "" {
		cat, err := ParseCategoryFlag(c.Category)
		if err != nil {
			return f, err
		}
		f.Category = &cat
	}
	if c.Operation != "" {
		op, ok := wire.ParseOperation(c.Operation)
		if !ok {
			return f, fmt.Errorf("invalid operation: %s", c.Operation)
		}
		f.Operation = &op
	}
	return f, nil
}

func parseTime(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s time: %w", name, err)
	}
	return t, nil
}

// ParseLayerFlag parses a layer name (case-insensitive).
func ParseLayerFlag(s string) (log.Layer, error) {
	for _, l := range []log.Layer{log.LayerTransport, log.LayerWire, log.LayerService} {
		if strings.EqualFold(s, l.String()) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("invalid layer: %s (must be transport, wire, or service)", s)
}

// ParseDirectionFlag parses a direction name (case-insensitive).
func ParseDirectionFlag(s string) (log.Direction, error) {
	for _, d := range []log.Direction{log.DirectionIn, log.DirectionOut} {
		if strings.EqualFold(s, d.String()) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
}

// ParseCategoryFlag parses a category name (case-insensitive).
func ParseCategoryFlag(s string) (log.Category, error) {
	for _, c := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if strings.EqualFold(s, c.String()) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("invalid category: %s (must be message, control, state, or error)", s)
}

// openReader opens path with the filter of c.
func openReader(path string, c Criteria) (*log.Reader, error) {
	f, err := c.Filter()
	if err != nil {
		return nil, err
	}
	r, err := log.NewFilteredReader(path, f)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return r, nil
}
