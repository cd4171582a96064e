package logger

// Logger is the minimal structured logging interface used across the module.
// Implementations accept alternating key/value pairs; a trailing key with no
// value is dropped.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

// TraceIDFunc generates a correlation ID for a decision or query. It must be
// cheap and safe for concurrent calls.
type TraceIDFunc func() string

// NullLogger discards everything. Useful default for library consumers that
// bring their own observability.
type NullLogger struct{}

func NewNullLogger() *NullLogger { return &NullLogger{} }

func (n *NullLogger) Debug(msg string, keyvals ...any) {}
func (n *NullLogger) Info(msg string, keyvals ...any)  {}
func (n *NullLogger) Warn(msg string, keyvals ...any)  {}
func (n *NullLogger) Error(msg string, keyvals ...any) {}
