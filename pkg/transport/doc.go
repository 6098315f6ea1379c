// Package transport carries the core session protocol over TCP.
//
// The transport layer handles:
//   - Length-prefixed message framing (4-byte big-endian length)
//   - Plain TCP connections, optionally wrapped in TLS
//   - Keep-alive ping/pong for connection liveness
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      CBOR Messages             │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│        TLS (optional)          │
//	├────────────────────────────────┤
//	│           TCP                  │
//	└────────────────────────────────┘
//
// # Keep-Alive
//
// The remote drives liveness with ping/pong control messages; the server
// answers pings on its own. With the defaults a dead connection is noticed
// within 95 seconds:
//   - Ping interval: 30 seconds
//   - Pong timeout: 5 seconds
//   - Max missed pongs: 3
package transport
