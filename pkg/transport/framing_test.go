package transport

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/zoneremote/zoneremote-go/pkg/log"
)

type captureLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (c *captureLogger) Log(e log.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureLogger) snapshot() []log.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]log.Event, len(c.events))
	copy(out, c.events)
	return out
}

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewFramer(nil, &buf, 0)
	r := NewFramer(&buf, nil, 0)

	messages := [][]byte{{0x01}, []byte("hello"), bytes.Repeat([]byte{0xAB}, 4096)}
	for _, m := range messages {
		if err := w.WriteFrame(m); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}

	for i, want := range messages {
		got, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("frame %d mismatch", i)
		}
	}

	if _, err := r.ReadFrame(); err != io.EOF {
		t.Errorf("expected io.EOF after last frame, got %v", err)
	}
}

func TestFrameLengthPrefix(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFramer(nil, &buf, 0).WriteFrame([]byte("abc")); err != nil {
		t.Fatal(err)
	}

	raw := buf.Bytes()
	if len(raw) != FrameSize(3) {
		t.Fatalf("frame size = %d, want %d", len(raw), FrameSize(3))
	}
	if n := binary.BigEndian.Uint32(raw[:4]); n != 3 {
		t.Errorf("length prefix = %d, want 3", n)
	}
}

func TestFrameErrors(t *testing.T) {
	t.Run("WriteEmpty", func(t *testing.T) {
		err := NewFramer(nil, io.Discard, 0).WriteFrame(nil)
		if !errors.Is(err, ErrMessageEmpty) {
			t.Errorf("expected ErrMessageEmpty, got %v", err)
		}
	})

	t.Run("WriteTooLarge", func(t *testing.T) {
		err := NewFramer(nil, io.Discard, 4).WriteFrame([]byte("12345"))
		if !errors.Is(err, ErrMessageTooLarge) {
			t.Errorf("expected ErrMessageTooLarge, got %v", err)
		}
	})

	t.Run("ReadZeroLength", func(t *testing.T) {
		r := NewFramer(bytes.NewReader([]byte{0, 0, 0, 0}), nil, 0)
		if _, err := r.ReadFrame(); !errors.Is(err, ErrMessageEmpty) {
			t.Errorf("expected ErrMessageEmpty, got %v", err)
		}
	})

	t.Run("ReadTooLarge", func(t *testing.T) {
		r := NewFramer(bytes.NewReader([]byte{0, 0, 1, 0}), nil, 16)
		if _, err := r.ReadFrame(); !errors.Is(err, ErrMessageTooLarge) {
			t.Errorf("expected ErrMessageTooLarge, got %v", err)
		}
	})

	t.Run("TruncatedPrefix", func(t *testing.T) {
		r := NewFramer(bytes.NewReader([]byte{0, 0}), nil, 0)
		if _, err := r.ReadFrame(); !errors.Is(err, ErrFrameTruncated) {
			t.Errorf("expected ErrFrameTruncated, got %v", err)
		}
	})

	t.Run("TruncatedPayload", func(t *testing.T) {
		r := NewFramer(bytes.NewReader([]byte{0, 0, 0, 5, 'a', 'b'}), nil, 0)
		if _, err := r.ReadFrame(); !errors.Is(err, ErrFrameTruncated) {
			t.Errorf("expected ErrFrameTruncated, got %v", err)
		}
	})
}

// chunkWriter records each Write call separately.
type chunkWriter struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.chunks = append(w.chunks, bytes.Clone(p))
	return len(p), nil
}

func TestFramerWritesWholeFrames(t *testing.T) {
	w := &chunkWriter{}
	f := NewFramer(nil, w, 0)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.WriteFrame(bytes.Repeat([]byte{byte(i + 1)}, 100+i)); err != nil {
				t.Errorf("WriteFrame: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(w.chunks) != 8 {
		t.Fatalf("got %d writes, want 8", len(w.chunks))
	}
	for _, c := range w.chunks {
		r := NewFramer(bytes.NewReader(c), nil, 0)
		payload, err := r.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		if !bytes.Equal(payload, bytes.Repeat(payload[:1], len(payload))) {
			t.Errorf("frame mixes payloads: %x", payload[:8])
		}
	}
}

func TestFramerLogsFrames(t *testing.T) {
	var buf bytes.Buffer
	logger := &captureLogger{}

	f := NewFramer(&buf, &buf, 0)
	f.SetLogger(logger, "conn-1")

	big := bytes.Repeat([]byte{1}, MaxLogFrameDataSize+10)
	if err := f.WriteFrame(big); err != nil {
		t.Fatal(err)
	}
	if _, err := f.ReadFrame(); err != nil {
		t.Fatal(err)
	}

	events := logger.snapshot()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Direction != log.DirectionOut || events[1].Direction != log.DirectionIn {
		t.Errorf("unexpected directions %v, %v", events[0].Direction, events[1].Direction)
	}
	frame := events[0].Frame
	if frame == nil {
		t.Fatal("missing frame event")
	}
	if !frame.Truncated || len(frame.Data) != MaxLogFrameDataSize {
		t.Errorf("expected truncated frame data, got truncated=%v len=%d", frame.Truncated, len(frame.Data))
	}
	if frame.Size != FrameSize(len(big)) {
		t.Errorf("frame size = %d, want %d", frame.Size, FrameSize(len(big)))
	}
	if events[0].ConnectionID != "conn-1" {
		t.Errorf("conn id = %q", events[0].ConnectionID)
	}
}
