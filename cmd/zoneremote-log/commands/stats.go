package commands

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/zoneremote/zoneremote-go/pkg/log"
	"github.com/zoneremote/zoneremote-go/pkg/wire"
	"github.com/zoneremote/zoneremote-go/pkg/zone"
)

// Report summarizes a capture of the remote's session with a core.
type Report struct {
	Events      int
	First, Last time.Time
	ByCategory  map[log.Category]int

	// Operations tracks requests and responses per operation.
	Operations map[wire.Operation]*OperationStats

	// Commands counts Control and Mute requests by command name.
	Commands map[string]int

	// BrowseActions counts Browse responses by action.
	BrowseActions map[string]int

	Zones       ZoneTotals
	Pairings    int
	Unpairings  int
	Errors      int
	Connections map[string]*ConnectionStats
}

// OperationStats holds the traffic of one operation.
type OperationStats struct {
	Requests int
	Answered int
	Failed   int
	TotalRTT time.Duration
}

// AverageRTT returns the mean round-trip time of answered requests.
func (s *OperationStats) AverageRTT() time.Duration {
	if s.Answered == 0 {
		return 0
	}
	return s.TotalRTT / time.Duration(s.Answered)
}

// ZoneTotals sums the zone subscription events.
type ZoneTotals struct {
	Subscribed int // Subscribed events
	Changed    int // Changed events
	Added      int
	Removed    int
	Updated    int
}

// ConnectionStats holds the span of one connection.
type ConnectionStats struct {
	CoreID      string
	Events      int
	First, Last time.Time
}

func newReport() *Report {
	return &Report{
		ByCategory:    make(map[log.Category]int),
		Operations:    make(map[wire.Operation]*OperationStats),
		Commands:      make(map[string]int),
		BrowseActions: make(map[string]int),
		Connections:   make(map[string]*ConnectionStats),
	}
}

// BrowseChains returns the number of browse chains started, one per
// Browse request.
func (r *Report) BrowseChains() int {
	if s := r.Operations[wire.OpBrowse]; s != nil {
		return s.Requests
	}
	return 0
}

func (r *Report) add(event log.Event) {
	r.Events++
	r.ByCategory[event.Category]++
	if r.First.IsZero() || event.Timestamp.Before(r.First) {
		r.First = event.Timestamp
	}
	if event.Timestamp.After(r.Last) {
		r.Last = event.Timestamp
	}

	conn := r.Connections[event.ConnectionID]
	if conn == nil {
		conn = &ConnectionStats{First: event.Timestamp}
		r.Connections[event.ConnectionID] = conn
	}
	conn.Events++
	conn.Last = event.Timestamp
	if conn.CoreID == "" {
		conn.CoreID = event.CoreID
	}

	switch {
	case event.Message != nil:
		r.addMessage(event.Message)
	case event.StateChange != nil && event.StateChange.Entity == log.StateEntityPairing:
		if event.StateChange.NewState == "PAIRED" {
			r.Pairings++
		} else {
			r.Unpairings++
		}
	case event.Error != nil:
		r.Errors++
	}
}

func (r *Report) addMessage(m *log.MessageEvent) {
	if m.Type == log.MessageTypeEvent {
		z := m.Zones
		if z == nil {
			return
		}
		switch m.EventType {
		case zone.EventSubscribed.String():
			r.Zones.Subscribed++
		case zone.EventChanged.String():
			r.Zones.Changed++
			r.Zones.Added += z.Added
			r.Zones.Removed += z.Removed
			r.Zones.Updated += z.Changed
		}
		return
	}
	if m.Operation == nil {
		return
	}

	op := r.Operations[*m.Operation]
	if op == nil {
		op = &OperationStats{}
		r.Operations[*m.Operation] = op
	}
	switch m.Type {
	case log.MessageTypeRequest:
		op.Requests++
		if m.Command != "" {
			r.Commands[m.Command]++
		}
	case log.MessageTypeResponse:
		op.Answered++
		if m.ProcessingTime != nil {
			op.TotalRTT += *m.ProcessingTime
		}
		if m.Status != nil && !m.Status.IsSuccess() {
			op.Failed++
		}
		if m.Action != "" {
			r.BrowseActions[m.Action]++
		}
	}
}

// RunStats prints a summary of the events of path selected by c.
func RunStats(path string, c Criteria, w io.Writer) error {
	reader, err := openReader(path, c)
	if err != nil {
		return err
	}
	defer reader.Close()

	report := newReport()
	for event, err := range reader.All() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		report.add(event)
	}
	report.print(w)
	return nil
}

func (r *Report) print(w io.Writer) {
	fmt.Fprintln(w, "=== Zone Remote Session Report ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Events: %d\n", r.Events)
	if r.Events == 0 {
		return
	}
	fmt.Fprintf(w, "Span: %s to %s (%s)\n", r.First.Format(time.RFC3339), r.Last.Format(time.RFC3339),
		r.Last.Sub(r.First).Round(time.Second))
	for _, cat := range []log.Category{log.CategoryMessage, log.CategoryControl, log.CategoryState, log.CategoryError} {
		if n := r.ByCategory[cat]; n > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", cat.String()+":", n)
		}
	}

	if len(r.Operations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Operations:")
		for op := wire.OpRegister; op <= wire.OpLoad; op++ {
			s := r.Operations[op]
			if s == nil {
				continue
			}
			fmt.Fprintf(w, "  %-17s %d sent, %d answered, %d failed", op.String()+":", s.Requests, s.Answered, s.Failed)
			if s.Answered > 0 {
				fmt.Fprintf(w, ", avg RTT %s", formatDuration(s.AverageRTT()))
			}
			fmt.Fprintln(w)
		}
	}

	if len(r.Commands) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Commands:")
		for _, name := range slices.Sorted(maps.Keys(r.Commands)) {
			fmt.Fprintf(w, "  %-10s %d\n", name+":", r.Commands[name])
		}
	}

	if chains := r.BrowseChains(); chains > 0 {
		fmt.Fprintln(w)
		loads := 0
		if s := r.Operations[wire.OpLoad]; s != nil {
			loads = s.Requests
		}
		fmt.Fprintf(w, "Browse Chains: %d (%d pages loaded)\n", chains, loads)
		for _, action := range slices.Sorted(maps.Keys(r.BrowseActions)) {
			fmt.Fprintf(w, "  %-13s %d\n", action+":", r.BrowseActions[action])
		}
	}

	if z := r.Zones; z.Subscribed+z.Changed > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Zone Events: %d subscribed, %d changed (+%d -%d ~%d zones)\n",
			z.Subscribed, z.Changed, z.Added, z.Removed, z.Updated)
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Pairings: %d paired, %d lost\n", r.Pairings, r.Unpairings)
	fmt.Fprintf(w, "Connections: %d\n", len(r.Connections))
	conns := slices.SortedFunc(maps.Keys(r.Connections), func(a, b string) int {
		return r.Connections[a].First.Compare(r.Connections[b].First)
	})
	for _, id := range conns {
		c := r.Connections[id]
		fmt.Fprintf(w, "  [%s] %d events over %s", shortenConnID(id), c.Events, c.Last.Sub(c.First).Round(time.Millisecond))
		if c.CoreID != "" {
			fmt.Fprintf(w, ", core %s", c.CoreID)
		}
		fmt.Fprintln(w)
	}

	if r.Errors > 0 {
		fmt.Fprintf(w, "Errors: %d\n", r.Errors)
	}
}
