package join

// Logger is the logging interface injected into the join package: core code
// never imports a concrete logging library directly. Binaries wrap their
// logger of choice behind it.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
}

// NoOpLogger discards everything; used as Activate's default and in tests.
type NoOpLogger struct{}

func (NoOpLogger) Debugf(string, ...any) {}
func (NoOpLogger) Infof(string, ...any)  {}
func (NoOpLogger) Warnf(string, ...any)  {}
func (NoOpLogger) Errorf(string, ...any) {}

// NewNoOpLogger returns a Logger that discards everything.
func NewNoOpLogger() Logger { return NoOpLogger{} }
