package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/zoneremote/zoneremote-go/pkg/log"
)

const (
	// LengthPrefixSize is the size of the big-endian length prefix.
	LengthPrefixSize = 4

	// DefaultMaxMessageSize bounds a single session message (1 MB).
	DefaultMaxMessageSize = 1 << 20

	// MaxLogFrameDataSize caps the payload bytes copied into a frame log event.
	MaxLogFrameDataSize = 4096
)

var (
	ErrMessageTooLarge = errors.New("message too large")
	ErrMessageEmpty    = errors.New("message is empty")
	ErrFrameTruncated  = errors.New("frame truncated")
)

// Framer moves session messages over a byte stream, each one prefixed with
// its length. Writes are serialized; reads belong to a single goroutine.
type Framer struct {
	r   io.Reader
	w   io.Writer
	max uint32

	wmu    sync.Mutex
	prefix [LengthPrefixSize]byte

	logger log.Logger
	connID string
}

// NewFramer returns a framer reading from r and writing to w. Either side
// may be nil when unused. A zero maxSize selects DefaultMaxMessageSize.
func NewFramer(r io.Reader, w io.Writer, maxSize uint32) *Framer {
	if maxSize == 0 {
		maxSize = DefaultMaxMessageSize
	}
	return &Framer{r: r, w: w, max: maxSize}
}

// SetLogger records every frame on logger under connID. Nil disables it.
func (f *Framer) SetLogger(logger log.Logger, connID string) {
	f.logger = logger
	f.connID = connID
}

func (f *Framer) checkSize(n uint64) error {
	switch {
	case n == 0:
		return ErrMessageEmpty
	case n > uint64(f.max):
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, n, f.max)
	}
	return nil
}

// WriteFrame sends data as one frame. Prefix and payload go out in a single
// write so concurrent senders never interleave.
func (f *Framer) WriteFrame(data []byte) error {
	if err := f.checkSize(uint64(len(data))); err != nil {
		return err
	}

	frame := make([]byte, FrameSize(len(data)))
	binary.BigEndian.PutUint32(frame, uint32(len(data)))
	copy(frame[LengthPrefixSize:], data)

	f.wmu.Lock()
	_, err := f.w.Write(frame)
	f.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	f.logFrame(log.DirectionOut, data)
	return nil
}

// ReadFrame returns the next payload. A clean end of stream between frames
// yields io.EOF; anything cut short yields ErrFrameTruncated.
func (f *Framer) ReadFrame() ([]byte, error) {
	if err := f.readFull(f.prefix[:], true); err != nil {
		return nil, err
	}
	length := binary.BigEndian.Uint32(f.prefix[:])
	if err := f.checkSize(uint64(length)); err != nil {
		return nil, err
	}

	payload := make([]byte, length)
	if err := f.readFull(payload, false); err != nil {
		return nil, err
	}

	f.logFrame(log.DirectionIn, payload)
	return payload, nil
}

func (f *Framer) readFull(buf []byte, atBoundary bool) error {
	_, err := io.ReadFull(f.r, buf)
	switch {
	case err == nil:
		return nil
	case err == io.EOF && atBoundary:
		return io.EOF
	case err == io.EOF, errors.Is(err, io.ErrUnexpectedEOF):
		return ErrFrameTruncated
	default:
		return fmt.Errorf("failed to read frame: %w", err)
	}
}

func (f *Framer) logFrame(dir log.Direction, data []byte) {
	if f.logger == nil {
		return
	}
	frame := &log.FrameEvent{Size: FrameSize(len(data)), Data: data}
	if len(data) > MaxLogFrameDataSize {
		frame.Data = data[:MaxLogFrameDataSize]
		frame.Truncated = true
	}
	f.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: f.connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame:        frame,
	})
}

// FrameSize returns the bytes a payload occupies on the wire.
func FrameSize(payloadSize int) int {
	return LengthPrefixSize + payloadSize
}
