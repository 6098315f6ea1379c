package commands

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/zoneremote/zoneremote-go/pkg/log"
)

const timeLayout = "2006-01-02T15:04:05.000000Z"

// RunView prints the events of path selected by c, one line per event.
func RunView(path string, c Criteria, w io.Writer) error {
	r, err := openReader(path, c)
	if err != nil {
		return err
	}
	defer r.Close()

	for event, err := range r.All() {
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		fmt.Fprintln(w, describe(event))
	}
	return nil
}

// eventLabel names the payload carried by the event.
func eventLabel(event log.Event) string {
	switch {
	case event.Frame != nil:
		return "FRAME"
	case event.Message != nil:
		return event.Message.Type.String()
	case event.StateChange != nil:
		return "STATE"
	case event.ControlMsg != nil:
		return event.ControlMsg.Type.String()
	case event.Error != nil:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// describe renders event on a single line:
//
//	2026-03-14T09:30:00.000000Z conn-aaa OUT REQUEST  #3 Control zone=z1 play
func describe(event log.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-8s %-3s %-8s", event.Timestamp.UTC().Format(timeLayout),
		shortenConnID(event.ConnectionID), event.Direction, eventLabel(event))

	switch {
	case event.Message != nil:
		describeMessage(&b, event.Message)
	case event.StateChange != nil:
		sc := event.StateChange
		fmt.Fprintf(&b, " %s %s -> %s", sc.Entity, orDash(sc.OldState), sc.NewState)
		if sc.Reason != "" {
			fmt.Fprintf(&b, " (%s)", sc.Reason)
		}
	case event.ControlMsg != nil:
		fmt.Fprintf(&b, " seq=%d", event.ControlMsg.Sequence)
	case event.Frame != nil:
		fmt.Fprintf(&b, " %d bytes", event.Frame.Size)
		if len(event.Frame.Data) > 0 {
			fmt.Fprintf(&b, " %s", hex.EncodeToString(event.Frame.Data))
			if event.Frame.Truncated {
				b.WriteString("...")
			}
		}
	case event.Error != nil:
		fmt.Fprintf(&b, " %s: %s", event.Error.Layer, event.Error.Message)
		if event.Error.Context != "" {
			fmt.Fprintf(&b, " [%s]", event.Error.Context)
		}
	}

	if event.CoreID != "" {
		fmt.Fprintf(&b, " core=%s", event.CoreID)
	}
	return b.String()
}

func describeMessage(b *strings.Builder, m *log.MessageEvent) {
	if m.Type == log.MessageTypeEvent {
		if m.SubscriptionID != nil {
			fmt.Fprintf(b, " sub=%d", *m.SubscriptionID)
		}
		fmt.Fprintf(b, " %s", m.EventType)
		if z := m.Zones; z != nil {
			if z.Subscribed > 0 {
				fmt.Fprintf(b, " zones=%d", z.Subscribed)
			} else {
				fmt.Fprintf(b, " +%d -%d ~%d", z.Added, z.Removed, z.Changed)
			}
		}
		return
	}

	fmt.Fprintf(b, " #%d", m.MessageID)
	if m.Operation != nil {
		fmt.Fprintf(b, " %s", m.Operation)
	}
	if m.Target != "" {
		fmt.Fprintf(b, " zone=%s", m.Target)
	}
	if m.ItemKey != "" {
		fmt.Fprintf(b, " item=%s", m.ItemKey)
	}
	if m.Command != "" {
		fmt.Fprintf(b, " %s", m.Command)
	}
	if m.Status != nil {
		fmt.Fprintf(b, " %s", m.Status)
	}
	if m.Action != "" {
		fmt.Fprintf(b, " action=%s", m.Action)
	}
	if m.ProcessingTime != nil {
		fmt.Fprintf(b, " %s", formatDuration(*m.ProcessingTime))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatDuration formats a duration with three decimals in its natural unit.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%.3fus", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.3fms", float64(d.Microseconds())/1e3)
	default:
		return fmt.Sprintf("%.3fs", d.Seconds())
	}
}
