// Package simcore provides a simulated audio core.
//
// The simulated core listens on TCP like the real one and answers the
// session protocol: registration, zone subscription, transport controls,
// mute, pause-all, browse and load. Zones and the browse hierarchy live in
// memory. Every accepted operation is recorded as a [Call] so tests can
// assert on what the remote asked for.
//
// Browse item keys are numbered breadth-first from 1, so with
// [DefaultTree] item "1" of the root list is "My Live Radio".
package simcore
