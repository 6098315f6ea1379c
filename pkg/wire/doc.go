// Package wire defines the CBOR wire format of the core session protocol.
//
// Every message is a CBOR (RFC 8949) map with integer keys. Key 0 holds the
// message [Kind] so a receiver can route a frame before decoding it fully.
// Frames are length-prefixed by package transport.
//
// # Message Kinds
//
//   - Request: remote to core (register, subscribe, control, browse, load)
//   - Response: core to remote, correlated by message ID
//   - Event: core to remote, zone subscription updates
//   - Control: either direction, ping/pong/close
//
// # Payloads
//
// Payloads are carried as raw CBOR and decoded late with [DecodePayload],
// so a message can be routed and logged without knowing its payload type.
// The operation (requests) or the event type (events) determines which
// payload type to decode.
package wire
