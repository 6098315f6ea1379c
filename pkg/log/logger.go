package log

// Logger receives protocol events. Log is called from the session's
// goroutines, so implementations must be safe for concurrent use and
// return quickly.
type Logger interface {
	Log(event Event)
}

// NoopLogger drops every event. The zero value is ready to use.
type NoopLogger struct{}

// Log does nothing.
func (NoopLogger) Log(Event) {}

// LoggerFunc adapts an ordinary function to a Logger.
type LoggerFunc func(Event)

// Log calls f(event).
func (f LoggerFunc) Log(event Event) { f(event) }

type multiLogger []Logger

func (m multiLogger) Log(event Event) {
	for _, l := range m {
		l.Log(event)
	}
}

// NewMultiLogger returns a Logger that hands each event to every non-nil
// logger in order, e.g. a FileLogger for capture and a SlogAdapter for the
// console.
func NewMultiLogger(loggers ...Logger) Logger {
	var m multiLogger
	for _, l := range loggers {
		if l != nil {
			m = append(m, l)
		}
	}
	switch len(m) {
	case 0:
		return NoopLogger{}
	case 1:
		return m[0]
	}
	return m
}

var (
	_ Logger = NoopLogger{}
	_ Logger = LoggerFunc(nil)
	_ Logger = multiLogger(nil)
)
