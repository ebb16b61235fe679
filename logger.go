package swcache

// Fields carries the context of one agent event, such as the version or the
// entry key it touched.
type Fields map[string]any

// Logger receives the agent's lifecycle and storage events. Interception never
// fails because of a log line. Adapters for zap, logrus and log/slog live under
// log/. A nil Logger in Options keeps the agent silent.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

// NopLogger drops everything.
type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
