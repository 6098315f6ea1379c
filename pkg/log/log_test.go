package log

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/zoneremote/zoneremote-go/pkg/wire"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingLogger) Log(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingLogger) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func writeTestLog(t *testing.T, events []Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.zlog")

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	return path
}

func readAll(t *testing.T, r *Reader) []Event {
	t.Helper()
	var out []Event
	for {
		e, err := r.Next()
		if err == io.EOF {
			return out
		}
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		out = append(out, e)
	}
}

func TestEventEncodeDecode(t *testing.T) {
	op := wire.OpBrowse
	ts := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

	data, err := EncodeEvent(Event{
		Timestamp:    ts,
		ConnectionID: "conn-1",
		Direction:    DirectionOut,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		CoreID:       "core-a",
		Message:      &MessageEvent{Type: MessageTypeRequest, MessageID: 7, Operation: &op},
	})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	got, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
	if got.Message == nil || got.Message.Operation == nil {
		t.Fatal("message operation lost")
	}
	if *got.Message.Operation != wire.OpBrowse {
		t.Errorf("Operation = %v, want Browse", *got.Message.Operation)
	}
	if got.CoreID != "core-a" {
		t.Errorf("CoreID = %q, want core-a", got.CoreID)
	}
}

func TestFileLoggerAndReader(t *testing.T) {
	in := DirectionIn
	events := []Event{
		{Timestamp: time.Now(), ConnectionID: "c1", Direction: DirectionIn, Layer: LayerTransport, Category: CategoryMessage},
		{Timestamp: time.Now(), ConnectionID: "c1", Direction: DirectionOut, Layer: LayerWire, Category: CategoryMessage},
		{Timestamp: time.Now(), ConnectionID: "c2", Direction: DirectionIn, Layer: LayerService, Category: CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntityPairing, NewState: "PAIRED"}},
	}
	path := writeTestLog(t, events)

	t.Run("All", func(t *testing.T) {
		r, err := NewReader(path)
		if err != nil {
			t.Fatalf("NewReader failed: %v", err)
		}
		defer r.Close()

		got := readAll(t, r)
		if len(got) != 3 {
			t.Fatalf("got %d events, want 3", len(got))
		}
		if got[2].StateChange == nil || got[2].StateChange.NewState != "PAIRED" {
			t.Errorf("state change not preserved: %+v", got[2].StateChange)
		}
	})

	t.Run("FilterConnection", func(t *testing.T) {
		r, err := NewFilteredReader(path, Filter{ConnectionID: "c1"})
		if err != nil {
			t.Fatalf("NewFilteredReader failed: %v", err)
		}
		defer r.Close()

		if got := readAll(t, r); len(got) != 2 {
			t.Errorf("got %d events, want 2", len(got))
		}
	})

	t.Run("FilterDirection", func(t *testing.T) {
		r, err := NewFilteredReader(path, Filter{Direction: &in})
		if err != nil {
			t.Fatalf("NewFilteredReader failed: %v", err)
		}
		defer r.Close()

		if got := readAll(t, r); len(got) != 2 {
			t.Errorf("got %d events, want 2", len(got))
		}
	})
}

func TestFileLoggerAppends(t *testing.T) {
	path := writeTestLog(t, []Event{{ConnectionID: "first"}})

	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(Event{ConnectionID: "second"})
	logger.Close()

	// Log after close is ignored, second Close is a no-op
	logger.Log(Event{ConnectionID: "third"})
	if err := logger.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	defer r.Close()
	if got := readAll(t, r); len(got) != 2 {
		t.Errorf("got %d events, want 2", len(got))
	}
}

func TestFilterMatch(t *testing.T) {
	browseOp, controlOp := wire.OpBrowse, wire.OpControl
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	control := Event{
		Timestamp: base,
		Message:   &MessageEvent{Type: MessageTypeRequest, Operation: &controlOp, Target: "z1", Command: "play"},
	}
	browseResp := Event{
		Timestamp: base.Add(time.Second),
		Message:   &MessageEvent{Type: MessageTypeResponse, Operation: &browseOp, Action: "list"},
	}
	zoneEvent := Event{
		Timestamp: base.Add(2 * time.Second),
		Message:   &MessageEvent{Type: MessageTypeEvent, EventType: "Changed", Zones: &ZoneDelta{Added: 1}},
	}
	ping := Event{Timestamp: base.Add(3 * time.Second), ControlMsg: &ControlMsgEvent{Type: ControlMsgPing}}

	tests := []struct {
		name   string
		filter Filter
		want   []bool // control, browseResp, zoneEvent, ping
	}{
		{"empty", Filter{}, []bool{true, true, true, true}},
		{"operation", Filter{Operation: &browseOp}, []bool{false, true, false, false}},
		{"target", Filter{Target: "z1"}, []bool{true, false, false, false}},
		{"zone events", Filter{ZoneEvents: true}, []bool{false, false, true, false}},
		{"since", Filter{Since: base.Add(time.Second)}, []bool{false, true, true, true}},
		{"until", Filter{Until: base.Add(2 * time.Second)}, []bool{true, true, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i, e := range []Event{control, browseResp, zoneEvent, ping} {
				if got := tt.filter.Match(e); got != tt.want[i] {
					t.Errorf("event %d: Match = %v, want %v", i, got, tt.want[i])
				}
			}
		})
	}
}

func TestReaderAll(t *testing.T) {
	op := wire.OpControl
	path := writeTestLog(t, []Event{
		{ConnectionID: "c1", Message: &MessageEvent{Type: MessageTypeRequest, Operation: &op, Target: "z2", Command: "mute"}},
		{ConnectionID: "c1", ControlMsg: &ControlMsgEvent{Type: ControlMsgPong}},
		{ConnectionID: "c2", Message: &MessageEvent{Type: MessageTypeRequest, Operation: &op, Target: "z2", Command: "unmute"}},
	})

	r, err := NewFilteredReader(path, Filter{Target: "z2"})
	if err != nil {
		t.Fatalf("NewFilteredReader failed: %v", err)
	}
	defer r.Close()

	var commands []string
	for e, err := range r.All() {
		if err != nil {
			t.Fatalf("All: %v", err)
		}
		commands = append(commands, e.Message.Command)
	}
	if len(commands) != 2 || commands[0] != "mute" || commands[1] != "unmute" {
		t.Errorf("commands = %v, want [mute unmute]", commands)
	}
}

func TestFileLoggerCounts(t *testing.T) {
	logger, err := NewFileLogger(filepath.Join(t.TempDir(), "count.zlog"))
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	logger.Log(Event{ConnectionID: "a"})
	logger.Log(Event{ConnectionID: "b"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	logger.Log(Event{ConnectionID: "c"})

	if logger.Written() != 2 {
		t.Errorf("Written = %d, want 2", logger.Written())
	}
	if logger.Err() != nil {
		t.Errorf("Err = %v, want nil", logger.Err())
	}
}

func TestNewMultiLoggerCollapses(t *testing.T) {
	a := &recordingLogger{}
	if got := NewMultiLogger(nil, a); got != Logger(a) {
		t.Errorf("single logger not returned as is: %T", got)
	}
	if _, ok := NewMultiLogger().(NoopLogger); !ok {
		t.Error("empty MultiLogger should be a NoopLogger")
	}
}

func TestMultiLogger(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	m := NewMultiLogger(a, NoopLogger{}, b)

	m.Log(Event{ConnectionID: "x"})
	m.Log(Event{ConnectionID: "y"})

	if a.count() != 2 || b.count() != 2 {
		t.Errorf("counts = %d, %d, want 2, 2", a.count(), b.count())
	}
}

func TestSlogAdapter(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	status := wire.StatusNotFound
	adapter.Log(Event{
		ConnectionID: "conn-9",
		Direction:    DirectionIn,
		Layer:        LayerWire,
		Category:     CategoryMessage,
		CoreID:       "core-a",
		Message:      &MessageEvent{Type: MessageTypeResponse, MessageID: 3, Status: &status},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["msg"] != "protocol" {
		t.Errorf("msg = %v, want protocol", entry["msg"])
	}
	if entry["status"] != "NOT_FOUND" {
		t.Errorf("status = %v, want NOT_FOUND", entry["status"])
	}
	if entry["core_id"] != "core-a" {
		t.Errorf("core_id = %v, want core-a", entry["core_id"])
	}
	if entry["msg_type"] != "RESPONSE" {
		t.Errorf("msg_type = %v, want RESPONSE", entry["msg_type"])
	}
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	adapter := NewSlogAdapter(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	adapter.Log(Event{ControlMsg: &ControlMsgEvent{Type: ControlMsgPing, Sequence: 1}})
	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", buf.String())
	}
}

func TestEnumStrings(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{DirectionOut.String(), "OUT"},
		{LayerService.String(), "SERVICE"},
		{CategoryError.String(), "ERROR"},
		{RoleCore.String(), "CORE"},
		{MessageTypeEvent.String(), "EVENT"},
		{StateEntitySubscription.String(), "SUBSCRIPTION"},
		{ControlMsgClose.String(), "CLOSE"},
		{Role(9).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}
