package wire

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// ErrUnknownKind is returned when a message has no recognizable kind.
var ErrUnknownKind = errors.New("unknown message kind")

// encMode is the CBOR encoder mode for protocol messages.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for protocol messages.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Lenient for forward compatibility: unknown keys are skipped.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// EncodePayload encodes v for use as a message payload. A nil v yields a
// nil payload, which is omitted on the wire.
func EncodePayload(v any) (cbor.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	data, err := Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	return cbor.RawMessage(data), nil
}

// DecodePayload decodes a raw payload into v. An absent payload leaves v
// unchanged.
func DecodePayload(raw cbor.RawMessage, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode payload: %w", err)
	}
	return nil
}

// NewRequest builds a request with an encoded payload.
func NewRequest(messageID uint32, op Operation, payload any) (*Request, error) {
	raw, err := EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	return &Request{Kind: KindRequest, MessageID: messageID, Operation: op, Payload: raw}, nil
}

// NewResponse builds a response with an encoded payload.
func NewResponse(messageID uint32, status Status, payload any) (*Response, error) {
	raw, err := EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	return &Response{Kind: KindResponse, MessageID: messageID, Status: status, Payload: raw}, nil
}

// NewErrorResponse builds a failed response carrying an ErrorPayload.
func NewErrorResponse(messageID uint32, status Status, message string) *Response {
	resp, err := NewResponse(messageID, status, &ErrorPayload{Message: message})
	if err != nil {
		return &Response{Kind: KindResponse, MessageID: messageID, Status: status}
	}
	return resp
}

// EncodeRequest encodes a request message to CBOR bytes.
func EncodeRequest(req *Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	msg := *req
	msg.Kind = KindRequest
	return Marshal(&msg)
}

// DecodeRequest decodes CBOR bytes into a request message.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if req.Kind != KindRequest {
		return nil, fmt.Errorf("not a request: kind=%s", req.Kind)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return &req, nil
}

// EncodeResponse encodes a response message to CBOR bytes.
func EncodeResponse(resp *Response) ([]byte, error) {
	msg := *resp
	msg.Kind = KindResponse
	return Marshal(&msg)
}

// DecodeResponse decodes CBOR bytes into a response message.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if resp.Kind != KindResponse {
		return nil, fmt.Errorf("not a response: kind=%s", resp.Kind)
	}
	return &resp, nil
}

// EncodeEvent encodes an event message to CBOR bytes.
func EncodeEvent(ev *Event) ([]byte, error) {
	msg := *ev
	msg.Kind = KindEvent
	return Marshal(&msg)
}

// DecodeEvent decodes CBOR bytes into an event message.
func DecodeEvent(data []byte) (*Event, error) {
	var ev Event
	if err := Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}
	if ev.Kind != KindEvent {
		return nil, fmt.Errorf("not an event: kind=%s", ev.Kind)
	}
	return &ev, nil
}

// EncodeControlMessage encodes a control message (ping/pong/close) to CBOR bytes.
func EncodeControlMessage(msg *ControlMessage) ([]byte, error) {
	m := *msg
	m.Kind = KindControl
	return Marshal(&m)
}

// DecodeControlMessage decodes CBOR bytes into a control message.
func DecodeControlMessage(data []byte) (*ControlMessage, error) {
	var msg ControlMessage
	if err := Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode control message: %w", err)
	}
	if msg.Kind != KindControl {
		return nil, fmt.Errorf("not a control message: kind=%s", msg.Kind)
	}
	return &msg, nil
}

// PeekKind returns the kind of an encoded message without decoding the rest.
func PeekKind(data []byte) (Kind, error) {
	var peek struct {
		Kind Kind `cbor:"0,keyasint"`
	}
	if err := Unmarshal(data, &peek); err != nil {
		return KindUnknown, fmt.Errorf("failed to peek message: %w", err)
	}
	switch peek.Kind {
	case KindRequest, KindResponse, KindEvent, KindControl:
		return peek.Kind, nil
	default:
		return KindUnknown, fmt.Errorf("%w: %d", ErrUnknownKind, peek.Kind)
	}
}
