// Package persistence keeps the remote's pairing across restarts.
//
// Only the identity of the paired core is stored. Zones and browse state
// are always rebuilt from the core after pairing.
package persistence
