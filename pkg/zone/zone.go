package zone

import (
	"errors"
)

// Zone errors.
var (
	ErrZoneNotFound = errors.New("zone not found")
	ErrNoOutputs    = errors.New("zone has no outputs")
)

// Zone is a playback destination announced by the core.
//
// CBOR encoding uses integer keys; JSON field names follow the core's
// own naming so the HTTP layer can pass records through unchanged.
type Zone struct {
	// ID is the stable, opaque zone identifier.
	ID string `cbor:"1,keyasint" json:"zone_id"`

	// DisplayName is the human-readable name. Not guaranteed unique.
	DisplayName string `cbor:"2,keyasint" json:"display_name"`

	// Outputs lists the zone's audio endpoints in core order.
	Outputs []Output `cbor:"3,keyasint,omitempty" json:"outputs"`

	// State is the transport state reported by the core (playing, paused,
	// loading, stopped). It is passed through, never interpreted.
	State string `cbor:"4,keyasint,omitempty" json:"state,omitempty"`

	// NowPlaying describes the current track, if any.
	NowPlaying *NowPlaying `cbor:"5,keyasint,omitempty" json:"now_playing,omitempty"`
}

// Output is an audio endpoint belonging to a zone.
type Output struct {
	ID          string  `cbor:"1,keyasint" json:"output_id"`
	ZoneID      string  `cbor:"2,keyasint,omitempty" json:"zone_id,omitempty"`
	DisplayName string  `cbor:"3,keyasint,omitempty" json:"display_name,omitempty"`
	Volume      *Volume `cbor:"4,keyasint,omitempty" json:"volume,omitempty"`
}

// Volume is the volume control metadata of an output.
type Volume struct {
	Type    string  `cbor:"1,keyasint,omitempty" json:"type,omitempty"`
	Min     float64 `cbor:"2,keyasint,omitempty" json:"min,omitempty"`
	Max     float64 `cbor:"3,keyasint,omitempty" json:"max,omitempty"`
	Value   float64 `cbor:"4,keyasint,omitempty" json:"value,omitempty"`
	IsMuted bool    `cbor:"5,keyasint,omitempty" json:"is_muted"`
}

// NowPlaying describes the track currently loaded in a zone.
type NowPlaying struct {
	Title        string `cbor:"1,keyasint,omitempty" json:"title,omitempty"`
	Artist       string `cbor:"2,keyasint,omitempty" json:"artist,omitempty"`
	Album        string `cbor:"3,keyasint,omitempty" json:"album,omitempty"`
	SeekPosition int    `cbor:"4,keyasint,omitempty" json:"seek_position,omitempty"`
	Length       int    `cbor:"5,keyasint,omitempty" json:"length,omitempty"`
}

// FirstOutput returns the zone's first output.
// Returns ErrNoOutputs if the zone has none.
func (z *Zone) FirstOutput() (Output, error) {
	if len(z.Outputs) == 0 {
		return Output{}, ErrNoOutputs
	}
	return z.Outputs[0], nil
}

// Clone returns a deep copy of the zone.
func (z Zone) Clone() Zone {
	c := z
	if z.Outputs != nil {
		c.Outputs = make([]Output, len(z.Outputs))
		for i, o := range z.Outputs {
			if o.Volume != nil {
				v := *o.Volume
				o.Volume = &v
			}
			c.Outputs[i] = o
		}
	}
	if z.NowPlaying != nil {
		np := *z.NowPlaying
		c.NowPlaying = &np
	}
	return c
}

// EventKind identifies a zone subscription event.
type EventKind uint8

const (
	// EventSubscribed carries the full zone list on subscription.
	EventSubscribed EventKind = 1

	// EventChanged carries incremental changes.
	EventChanged EventKind = 2

	// EventUnsubscribed signals the subscription has ended.
	EventUnsubscribed EventKind = 3
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventSubscribed:
		return "Subscribed"
	case EventChanged:
		return "Changed"
	case EventUnsubscribed:
		return "Unsubscribed"
	default:
		return "Unknown"
	}
}

// Event is a zone subscription event delivered by the core.
type Event struct {
	Kind EventKind

	// Zones is set for EventSubscribed.
	Zones []Zone

	// Added, Removed and Changed are set for EventChanged. The core sends
	// at most one of Added and Removed per event, but both are honored.
	Added   []Zone
	Removed []string
	Changed []Zone
}
