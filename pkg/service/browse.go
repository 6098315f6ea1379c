package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/zoneremote/zoneremote-go/pkg/browse"
)

// BrowseState returns the cached browse view.
func (s *Service) BrowseState() browse.State {
	return s.session.Snapshot()
}

// BrowsePhase returns the phase of the browse session.
func (s *Service) BrowsePhase() browse.Phase {
	return s.session.Phase()
}

// Browse runs a browse chain for the zone nameOrID and waits for it to
// finish. An empty nameOrID browses without a zone. A list result is
// followed by a load of the first page before Browse returns.
//
// Starting a chain supersedes any chain still running; its caller gets
// browse.ErrStaleResult.
func (s *Service) Browse(ctx context.Context, nameOrID string, opts browse.Options) (BrowseResult, error) {
	if nameOrID != "" {
		z, err := s.registry.Lookup(nameOrID)
		if err != nil {
			return BrowseResult{}, fmt.Errorf("%q: %w", nameOrID, err)
		}
		opts.ZoneOrOutputID = z.ID
	}
	return s.runChain(ctx, opts)
}

// runChain starts a chain for opts, whose ZoneOrOutputID is already
// resolved, and waits for it to finish.
func (s *Service) runChain(ctx context.Context, opts browse.Options) (BrowseResult, error) {
	if opts.Hierarchy == "" {
		opts.Hierarchy = s.config.Hierarchy
	}
	if !s.Paired() {
		return BrowseResult{}, ErrNotPaired
	}

	done := make(chan chainResult, 1)
	err := s.post(func() { s.beginChain(opts, done) })
	if err != nil {
		return BrowseResult{}, err
	}

	select {
	case r := <-done:
		return r.result, r.err
	case <-ctx.Done():
		return BrowseResult{}, ctx.Err()
	case <-s.stopped():
		return BrowseResult{}, ErrNotStarted
	}
}

// beginChain runs on the event loop.
func (s *Service) beginChain(opts browse.Options, done chan chainResult) {
	c, _ := s.currentCore()
	if c == nil {
		done <- chainResult{err: ErrNotPaired}
		return
	}

	for token, w := range s.waiters {
		w <- chainResult{err: browse.ErrStaleResult}
		delete(s.waiters, token)
	}

	req := s.session.Begin(opts)
	s.waiters[req.Token] = done

	s.logger.Debug("browse", "token", req.Token, "item_key", req.Options.ItemKey,
		"pop_all", req.Options.PopAll, "zone", req.Options.ZoneOrOutputID)

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.config.RequestTimeout)
		defer cancel()
		res, err := c.Browse(ctx, req.Options)
		s.complete(req.Token, func() { s.onBrowseResult(c, req.Token, res, err) })
	}()
}

// complete posts fn back to the event loop. If the service is stopping the
// chain is dropped; Stop fails the waiter.
func (s *Service) complete(token uint64, fn func()) {
	if err := s.post(fn); err != nil {
		s.logger.Debug("browse completion dropped", "token", token, "error", err)
	}
}

// onBrowseResult runs on the event loop.
func (s *Service) onBrowseResult(c Core, token uint64, res *browse.Result, callErr error) {
	out, err := s.session.HandleBrowseResult(token, res, callErr)
	if errors.Is(err, browse.ErrStaleResult) {
		s.logger.Debug("stale browse result", "token", token)
		return
	}
	if err != nil {
		s.logger.Warn("browse failed", "token", token, "error", err)
		s.finishChain(token, BrowseResult{}, err)
		return
	}

	if out.Load == nil {
		if out.Action == browse.ActionMessage {
			s.logger.Info("browse message", "message", out.Message, "is_error", out.IsError)
		}
		s.finishChain(token, BrowseResult{Action: out.Action, Message: out.Message, IsError: out.IsError}, nil)
		return
	}

	load := *out.Load
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.config.RequestTimeout)
		defer cancel()
		page, err := c.Load(ctx, load.Options)
		s.complete(load.Token, func() { s.onLoadResult(load, page, err) })
	}()
}

// onLoadResult runs on the event loop.
func (s *Service) onLoadResult(load browse.LoadRequest, page *browse.LoadResult, callErr error) {
	err := s.session.HandleLoadResult(load.Token, load.Options.Offset, page, callErr)
	if errors.Is(err, browse.ErrStaleResult) {
		s.logger.Debug("stale load result", "token", load.Token)
		return
	}
	if err != nil {
		s.logger.Warn("load failed", "token", load.Token, "error", err)
		s.finishChain(load.Token, BrowseResult{}, err)
		return
	}
	s.finishChain(load.Token, BrowseResult{Action: browse.ActionList}, nil)
}

// finishChain completes the waiter of token. Successful chains publish the
// new browse state.
func (s *Service) finishChain(token uint64, result BrowseResult, err error) {
	state := s.session.Snapshot()
	if err == nil {
		result.State = state
		s.emit(Event{Type: EventBrowseChanged, Browse: &state})
	}

	w, ok := s.waiters[token]
	if !ok {
		return
	}
	delete(s.waiters, token)
	w <- chainResult{result: result, err: err}
}

// Play browses to itemKey from the root of the hierarchy for the zone and
// toggles playback there. An empty itemKey uses the configured default.
func (s *Service) Play(ctx context.Context, nameOrID, itemKey string) (PlayResult, error) {
	z, err := s.registry.Lookup(nameOrID)
	if err != nil {
		return PlayResult{}, fmt.Errorf("%q: %w", nameOrID, err)
	}
	if itemKey == "" {
		itemKey = s.config.DefaultItemKey
	}

	if _, err := s.runChain(ctx, browse.Options{ZoneOrOutputID: z.ID, PopAll: true}); err != nil {
		return PlayResult{Zone: z}, fmt.Errorf("browse root: %w", err)
	}
	br, err := s.runChain(ctx, browse.Options{ZoneOrOutputID: z.ID, ItemKey: itemKey})
	if err != nil {
		return PlayResult{Zone: z}, fmt.Errorf("browse %s: %w", itemKey, err)
	}

	res, z, err := s.execute(ctx, z, "playpause")
	return PlayResult{Browse: br, Command: res, Zone: z}, err
}
