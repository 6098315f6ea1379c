// Package connection keeps the session with the core alive.
//
// A Manager runs a session function in a loop. When the session ends it
// waits with exponential backoff and starts a new one:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Reset to 1s once a session reports itself established
//
// # Jitter
//
// To keep several remotes from reconnecting in lockstep:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// A session counts as established when it has connected, registered with
// the core and subscribed to zones. Failures before that point keep
// growing the backoff.
package connection
