package log

import (
	"time"

	"github.com/zoneremote/zoneremote-go/pkg/wire"
)

// Filter selects events. Zero fields match everything.
type Filter struct {
	ConnectionID string
	CoreID       string

	Direction *Direction
	Layer     *Layer
	Category  *Category

	// Since and Until bound the timestamp; Until is exclusive.
	Since time.Time
	Until time.Time

	// Operation keeps requests and responses of one operation.
	Operation *wire.Operation

	// Target keeps requests addressed to a zone or output ID.
	Target string

	// ZoneEvents keeps only zone subscription events.
	ZoneEvents bool
}

// Match reports whether event passes every criterion of f.
func (f Filter) Match(event Event) bool {
	switch {
	case f.ConnectionID != "" && event.ConnectionID != f.ConnectionID,
		f.CoreID != "" && event.CoreID != f.CoreID,
		f.Direction != nil && event.Direction != *f.Direction,
		f.Layer != nil && event.Layer != *f.Layer,
		f.Category != nil && event.Category != *f.Category,
		!f.Since.IsZero() && event.Timestamp.Before(f.Since),
		!f.Until.IsZero() && !event.Timestamp.Before(f.Until):
		return false
	}

	if f.Operation == nil && f.Target == "" && !f.ZoneEvents {
		return true
	}
	m := event.Message
	if m == nil {
		return false
	}
	if f.Operation != nil && (m.Operation == nil || *m.Operation != *f.Operation) {
		return false
	}
	if f.Target != "" && m.Target != f.Target {
		return false
	}
	if f.ZoneEvents && m.Type != MessageTypeEvent {
		return false
	}
	return true
}
