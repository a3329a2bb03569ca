package core

// Logger is the application-wide logger.
// Args may carry errors, maps of extra fields or a `LogPerson` identifying who triggered the event.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// LogPerson identifies the API caller in error reports.
type LogPerson struct {
	ID   string
	Name string
}
