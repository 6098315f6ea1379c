// Package service implements the zone remote.
//
// A Service pairs with one core at a time. It keeps the zones of the core in
// a zone.Registry, dispatches commands through a command.Dispatcher and
// drives browse chains through a browse.Session. Every mutation of the
// registry or the browse session runs on the service event loop, so zone
// events, browse completions and pairing changes never interleave.
//
// A Service implements core.PairingHandler and is normally driven by a
// core.Runner:
//
//	svc := service.New(service.DefaultConfig())
//	svc.Start(ctx)
//	runner := core.NewRunner(coreCfg, resolver, svc, backoff)
//	go runner.Run(ctx)
//
//	res, _, err := svc.Execute(ctx, "Kitchen", "playpause")
package service
