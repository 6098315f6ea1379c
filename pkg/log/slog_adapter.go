package log

import (
	"context"
	"log/slog"
)

// SlogAdapter prints protocol events as debug records of an slog.Logger.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter returns an adapter writing to logger.
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	return &SlogAdapter{logger: logger}
}

// Log emits event at debug level. Nothing is built when debug is disabled.
func (a *SlogAdapter) Log(event Event) {
	ctx := context.Background()
	if !a.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	attrs := []slog.Attr{
		slog.String("conn_id", event.ConnectionID),
		slog.String("direction", event.Direction.String()),
		slog.String("layer", event.Layer.String()),
		slog.String("category", event.Category.String()),
	}
	if event.CoreID != "" {
		attrs = append(attrs, slog.String("core_id", event.CoreID))
	}

	switch {
	case event.Frame != nil:
		attrs = append(attrs, slog.Int("frame_size", event.Frame.Size), slog.Bool("truncated", event.Frame.Truncated))
	case event.Message != nil:
		attrs = append(attrs, messageAttrs(event.Message)...)
	case event.StateChange != nil:
		sc := event.StateChange
		attrs = append(attrs,
			slog.String("entity", sc.Entity.String()),
			slog.String("old_state", sc.OldState),
			slog.String("new_state", sc.NewState))
		attrs = appendString(attrs, "reason", sc.Reason)
	case event.ControlMsg != nil:
		attrs = append(attrs,
			slog.String("ctrl_type", event.ControlMsg.Type.String()),
			slog.Uint64("seq", uint64(event.ControlMsg.Sequence)))
	case event.Error != nil:
		attrs = append(attrs,
			slog.String("error_layer", event.Error.Layer.String()),
			slog.String("error_msg", event.Error.Message))
		attrs = appendString(attrs, "error_context", event.Error.Context)
	}

	a.logger.LogAttrs(ctx, slog.LevelDebug, "protocol", attrs...)
}

func messageAttrs(m *MessageEvent) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("msg_type", m.Type.String()),
		slog.Uint64("msg_id", uint64(m.MessageID)),
	}
	if m.Operation != nil {
		attrs = append(attrs, slog.String("operation", m.Operation.String()))
	}
	attrs = appendString(attrs, "zone", m.Target)
	attrs = appendString(attrs, "command", m.Command)
	attrs = appendString(attrs, "item_key", m.ItemKey)
	if m.Status != nil {
		attrs = append(attrs, slog.String("status", m.Status.String()))
	}
	attrs = appendString(attrs, "action", m.Action)
	if m.ProcessingTime != nil {
		attrs = append(attrs, slog.Duration("rtt", *m.ProcessingTime))
	}
	if m.SubscriptionID != nil {
		attrs = append(attrs, slog.Uint64("subscription", uint64(*m.SubscriptionID)))
	}
	attrs = appendString(attrs, "event", m.EventType)
	if z := m.Zones; z != nil {
		attrs = append(attrs, slog.Group("zones",
			slog.Int("subscribed", z.Subscribed),
			slog.Int("added", z.Added),
			slog.Int("removed", z.Removed),
			slog.Int("changed", z.Changed)))
	}
	return attrs
}

func appendString(attrs []slog.Attr, key, value string) []slog.Attr {
	if value == "" {
		return attrs
	}
	return append(attrs, slog.String(key, value))
}

var _ Logger = (*SlogAdapter)(nil)
