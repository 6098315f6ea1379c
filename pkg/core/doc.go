// Package core is the client side of the session protocol spoken by the
// audio core.
//
// A [Session] owns one connection: it registers the remote, answers and
// sends keep-alive pings, and feeds incoming responses and zone events to
// its [Client]. The Client correlates requests with responses by message
// ID and exposes the operations the remote needs:
//
//   - Zone subscription (Subscribed then Changed events)
//   - Transport controls, mute and pause-all (fire-and-forget)
//   - Browse and load on the content hierarchy
//
// A [Runner] keeps a session alive across connection loss, reporting each
// pairing and unpairing to a [PairingHandler].
package core
