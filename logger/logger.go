// Package logger is the structured logging facade of go-uhf.
//
// Every package logs through the Logger interface, so an application that
// embeds the reader can route its output to its own logging framework. The
// default implementation writes through log/slog; see NewSlog.
//
// Keys and values are passed as alternating arguments:
//
//	log.Info("tag discovered", "epc", key, "rssi", rssi)
package logger

// LogLevel is the minimum severity a Logger emits.
type LogLevel = int8

// Log levels, from the most to the least verbose.
const (
	DebugLevel LogLevel = iota - 1
	InfoLevel
	WarnLevel
	ErrorLevel
	// FatalLevel logs and then exits the process with status 1.
	FatalLevel
)

// Logger is a leveled, structured logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// Fatal logs at FatalLevel and calls os.Exit(1), even when the level is
	// disabled.
	Fatal(msg string, keysAndValues ...any)

	// With returns a child logger that adds keyValues to every entry. The
	// parent is not affected.
	With(keyValues ...any) Logger

	Level() LogLevel
	SetLevel(level LogLevel)
}
