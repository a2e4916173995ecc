package revalcache

// Fields is a minimal structured field map for logs.
type Fields map[string]any

// Logger is the leveled logger the cache writes to. Adapters for zap, logrus
// and slog live under log/. A nil Logger in Options disables logging.
//
// Background refresh failures are reported at Warn; the caller that
// triggered the refresh never sees them.
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

// keyFields is the common "key" (+ "err") field set.
func keyFields(key string, err error) Fields {
	if err == nil {
		return Fields{"key": key}
	}
	return Fields{"key": key, "err": err}
}
