package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/zoneremote/zoneremote-go/pkg/zone"
)

// Kind identifies the message type. It is stored under key 0 of every message.
type Kind uint8

const (
	KindUnknown  Kind = 0
	KindRequest  Kind = 1
	KindResponse Kind = 2
	KindEvent    Kind = 3
	KindControl  Kind = 4
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindEvent:
		return "event"
	case KindControl:
		return "control"
	default:
		return "unknown"
	}
}

// Request is a request from the remote to the core.
//
// CBOR encoding:
//
//	{
//	  0: 1,            // kind
//	  1: messageId,    // uint32, never 0
//	  2: operation,    // uint8
//	  3: payload       // operation-specific, optional
//	}
type Request struct {
	Kind      Kind            `cbor:"0,keyasint"`
	MessageID uint32          `cbor:"1,keyasint"`
	Operation Operation       `cbor:"2,keyasint"`
	Payload   cbor.RawMessage `cbor:"3,keyasint,omitempty"`
}

// Validate checks if the request is valid.
func (r *Request) Validate() error {
	if r.MessageID == 0 {
		return fmt.Errorf("messageId 0 is reserved")
	}
	if !r.Operation.IsValid() {
		return fmt.Errorf("invalid operation: %d", r.Operation)
	}
	return nil
}

// Response is the core's answer to a request.
//
// CBOR encoding:
//
//	{
//	  0: 2,            // kind
//	  1: messageId,    // uint32: matches request
//	  2: status,       // uint8: 0=success, or error code
//	  3: payload       // response data, or ErrorPayload on failure
//	}
type Response struct {
	Kind      Kind            `cbor:"0,keyasint"`
	MessageID uint32          `cbor:"1,keyasint"`
	Status    Status          `cbor:"2,keyasint"`
	Payload   cbor.RawMessage `cbor:"3,keyasint,omitempty"`
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Status.IsSuccess()
}

// Event is an unsolicited message for a subscription.
//
// CBOR encoding:
//
//	{
//	  0: 3,                // kind
//	  1: subscriptionId,   // uint32
//	  2: type,             // uint8: 1=Subscribed, 2=Changed, 3=Unsubscribed
//	  3: payload           // ZonesSubscribedPayload or ZonesChangedPayload
//	}
type Event struct {
	Kind           Kind            `cbor:"0,keyasint"`
	SubscriptionID uint32          `cbor:"1,keyasint"`
	Type           zone.EventKind  `cbor:"2,keyasint"`
	Payload        cbor.RawMessage `cbor:"3,keyasint,omitempty"`
}

// ControlMessage is a transport-level control message.
type ControlMessage struct {
	Kind     Kind               `cbor:"0,keyasint"`
	Type     ControlMessageType `cbor:"1,keyasint"`
	Sequence uint32             `cbor:"2,keyasint,omitempty"`
}

// ControlMessageType represents the type of control message.
type ControlMessageType uint8

const (
	// ControlPing is sent to check connection liveness.
	ControlPing ControlMessageType = 1

	// ControlPong is the response to a ping.
	ControlPong ControlMessageType = 2

	// ControlClose initiates graceful connection close.
	ControlClose ControlMessageType = 3
)

// String returns the control message type name.
func (t ControlMessageType) String() string {
	switch t {
	case ControlPing:
		return "ping"
	case ControlPong:
		return "pong"
	case ControlClose:
		return "close"
	default:
		return "unknown"
	}
}

// RegisterPayload identifies the remote to the core (OpRegister).
type RegisterPayload struct {
	ExtensionID    string `cbor:"1,keyasint"`
	DisplayName    string `cbor:"2,keyasint"`
	DisplayVersion string `cbor:"3,keyasint,omitempty"`
	Publisher      string `cbor:"4,keyasint,omitempty"`
	Email          string `cbor:"5,keyasint,omitempty"`
	Website        string `cbor:"6,keyasint,omitempty"`
}

// CoreInfo describes the core (OpRegister response).
type CoreInfo struct {
	CoreID      string `cbor:"1,keyasint" json:"core_id"`
	DisplayName string `cbor:"2,keyasint" json:"display_name"`
	Version     string `cbor:"3,keyasint,omitempty" json:"version,omitempty"`
}

// SubscribeZonesResponse is the OpSubscribeZones response payload.
type SubscribeZonesResponse struct {
	SubscriptionID uint32 `cbor:"1,keyasint"`
}

// UnsubscribeZonesPayload is the OpUnsubscribeZones request payload.
type UnsubscribeZonesPayload struct {
	SubscriptionID uint32 `cbor:"1,keyasint"`
}

// ZonesSubscribedPayload carries the full zone list of a Subscribed event.
type ZonesSubscribedPayload struct {
	Zones []zone.Zone `cbor:"1,keyasint"`
}

// ZonesChangedPayload carries the deltas of a Changed event.
type ZonesChangedPayload struct {
	Added   []zone.Zone `cbor:"1,keyasint,omitempty"`
	Removed []string    `cbor:"2,keyasint,omitempty"`
	Changed []zone.Zone `cbor:"3,keyasint,omitempty"`
}

// ControlPayload is the OpControl request payload.
type ControlPayload struct {
	ZoneOrOutputID string `cbor:"1,keyasint"`
	Control        string `cbor:"2,keyasint"`
}

// MutePayload is the OpMute request payload. How is "mute" or "unmute".
type MutePayload struct {
	OutputID string `cbor:"1,keyasint"`
	How      string `cbor:"2,keyasint"`
}

// ErrorPayload represents additional error information in a response.
type ErrorPayload struct {
	Message string `cbor:"1,keyasint,omitempty"`
}
