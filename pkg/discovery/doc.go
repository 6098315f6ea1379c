// Package discovery finds the core on the local network with mDNS/DNS-SD.
//
// A core advertises the _zonecore._tcp service. The instance name is the
// core's display name; TXT records carry:
//
//	id    core identifier (required)
//	name  display name
//	ver   core version
//
// Browser aggregates answers from several interfaces into one CoreService
// per instance and can act as a core.Resolver. Advertiser publishes the
// service; the simulator uses it so remotes on the LAN can find it.
package discovery
