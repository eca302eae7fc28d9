package entcache

// Fields are structured log fields. Errors go under "err".
type Fields map[string]any

// Logger is the leveled logger every package here writes to. Adapters for
// zap, logrus and slog live under log/. Leaving Logger nil in an Options
// struct means NopLogger.
type Logger interface {
	Debug(msg string, f Fields)
	Info(msg string, f Fields)
	Warn(msg string, f Fields)
	Error(msg string, f Fields)
}

type NopLogger struct{}

func (NopLogger) Debug(string, Fields) {}
func (NopLogger) Info(string, Fields)  {}
func (NopLogger) Warn(string, Fields)  {}
func (NopLogger) Error(string, Fields) {}
