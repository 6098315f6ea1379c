package browse

import (
	"errors"
	"fmt"
	"sync"
)

// Browse errors.
var (
	// ErrProtocolAnomaly is returned for results the session cannot interpret.
	ErrProtocolAnomaly = errors.New("browse protocol anomaly")

	// ErrCollaboratorFailure wraps a failed browse or load call.
	ErrCollaboratorFailure = errors.New("browse request failed")

	// ErrStaleResult is returned for results belonging to a superseded chain.
	ErrStaleResult = errors.New("stale browse result")
)

// Phase is the position of the session in a browse chain.
type Phase uint8

const (
	PhaseIdle Phase = iota
	PhaseAwaitingBrowseResult
	PhaseAwaitingLoadResult
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhaseAwaitingBrowseResult:
		return "AWAITING_BROWSE_RESULT"
	case PhaseAwaitingLoadResult:
		return "AWAITING_LOAD_RESULT"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", p)
	}
}

// Request is a browse request issued for a chain.
type Request struct {
	Token   uint64
	Options Options
}

// LoadRequest is the follow-up load a list result asks for.
type LoadRequest struct {
	Token   uint64
	Options LoadOptions
}

// Outcome tells the caller what a browse result did to the session.
type Outcome struct {
	Action Action

	// Load is set when the caller must issue a load to finish the chain.
	Load *LoadRequest

	// Message and IsError carry an ActionMessage result.
	Message string
	IsError bool
}

// Session reconciles browse and load results into a cached State.
//
// A chain starts with Begin, continues with HandleBrowseResult and, for
// list results, ends with HandleLoadResult. Every chain gets a new token;
// results carrying an older token are rejected with ErrStaleResult so a
// slow answer can never overwrite a newer list.
//
// Session methods are safe for concurrent use, but mutations are expected
// to come from a single owner.
type Session struct {
	mu sync.RWMutex

	pageSize int
	phase    Phase
	token    uint64
	pending  Options
	state    State
}

// NewSession creates an idle session. pageSize is passed as the load count;
// zero lets the core choose.
func NewSession(pageSize int) *Session {
	return &Session{pageSize: pageSize}
}

// Begin starts a new chain and returns the browse request to send.
// Any chain in progress is superseded.
func (s *Session) Begin(opts Options) Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	if opts.Hierarchy == "" {
		opts.Hierarchy = DefaultHierarchy
	}

	s.token++
	s.pending = opts
	s.phase = PhaseAwaitingBrowseResult

	return Request{Token: s.token, Options: opts}
}

// HandleBrowseResult applies the result of the browse request of chain token.
//
// A list result clears the cached items and asks for a load at the list's
// display offset (negative offsets load at 0). Item results patch the
// cached items in place using the request's item key. A failed call
// returns ErrCollaboratorFailure and leaves the state untouched.
func (s *Session) HandleBrowseResult(token uint64, result *Result, callErr error) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.token || s.phase != PhaseAwaitingBrowseResult {
		return Outcome{}, ErrStaleResult
	}

	if callErr != nil {
		s.phase = PhaseIdle
		return Outcome{}, fmt.Errorf("%w: %w", ErrCollaboratorFailure, callErr)
	}
	if result == nil {
		s.phase = PhaseIdle
		return Outcome{}, fmt.Errorf("%w: empty browse result", ErrProtocolAnomaly)
	}

	out := Outcome{Action: result.Action}

	switch result.Action {
	case ActionList:
		if result.List == nil {
			s.phase = PhaseIdle
			return Outcome{}, fmt.Errorf("%w: list action without list", ErrProtocolAnomaly)
		}
		l := *result.List
		s.state.List = &l
		s.state.Items = []Item{}

		offset := max(l.DisplayOffset, 0)
		s.phase = PhaseAwaitingLoadResult
		out.Load = &LoadRequest{
			Token: s.token,
			Options: LoadOptions{
				Hierarchy:        s.pending.Hierarchy,
				Offset:           offset,
				SetDisplayOffset: offset,
				Count:            s.pageSize,
			},
		}
		return out, nil

	case ActionMessage:
		out.Message = result.Message
		out.IsError = result.IsError

	case ActionReplaceItem:
		if result.Item == nil {
			s.phase = PhaseIdle
			return Outcome{}, fmt.Errorf("%w: replace_item without item", ErrProtocolAnomaly)
		}
		if i := s.indexOf(s.pending.ItemKey); i >= 0 {
			s.state.Items[i] = *result.Item
		}

	case ActionRemoveItem:
		if i := s.indexOf(s.pending.ItemKey); i >= 0 {
			s.state.Items = append(s.state.Items[:i], s.state.Items[i+1:]...)
		}

	case ActionNone:

	default:
		s.phase = PhaseIdle
		return Outcome{}, fmt.Errorf("%w: unknown action %q", ErrProtocolAnomaly, result.Action)
	}

	s.phase = PhaseIdle
	return out, nil
}

// HandleLoadResult applies the page loaded at offset for chain token.
// The cached items are replaced wholesale and the list offset recorded.
func (s *Session) HandleLoadResult(token uint64, offset int, result *LoadResult, callErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.token || s.phase != PhaseAwaitingLoadResult {
		return ErrStaleResult
	}
	s.phase = PhaseIdle

	if callErr != nil {
		return fmt.Errorf("%w: %w", ErrCollaboratorFailure, callErr)
	}
	if result == nil {
		return fmt.Errorf("%w: empty load result", ErrProtocolAnomaly)
	}

	s.state.ListOffset = offset
	s.state.Items = make([]Item, len(result.Items))
	copy(s.state.Items, result.Items)
	if result.List != nil {
		l := *result.List
		s.state.List = &l
	}
	return nil
}

// Phase returns the current phase.
func (s *Session) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// Token returns the token of the latest chain.
func (s *Session) Token() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Snapshot returns a copy of the cached state.
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Reset drops the cached state and supersedes any chain in progress.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token++
	s.phase = PhaseIdle
	s.pending = Options{}
	s.state = State{}
}

// indexOf returns the index of the first item with key. An empty key
// matches nothing.
func (s *Session) indexOf(key string) int {
	if key == "" {
		return -1
	}
	for i := range s.state.Items {
		if s.state.Items[i].ItemKey == key {
			return i
		}
	}
	return -1
}
