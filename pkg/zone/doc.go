// Package zone keeps the local view of playback zones announced by the core.
//
// A zone is a playback destination made of one or more outputs. The core
// announces zones over a subscription: one Subscribed event carrying the
// full list, followed by Changed events carrying deltas.
//
// # Registry
//
// The [Registry] is the authoritative in-memory list. It is initialized
// empty, replaced wholesale on Subscribed, and mutated incrementally on
// Changed:
//
//   - Added zones are inserted only when no existing zone shares their
//     display name or identifier.
//   - Removed identifiers are deleted when present; unknown identifiers
//     are ignored.
//   - Changed zones replace the existing entry with the same identifier.
//
// Lookups by display name are exact, case-sensitive, and return the first
// match in insertion order. Display names are not guaranteed unique, so
// callers that need an unambiguous handle should use [Registry.FindByID].
//
// The registry performs no I/O and no logging. Writes are expected to come
// from a single owner; reads may run concurrently with each other.
package zone
