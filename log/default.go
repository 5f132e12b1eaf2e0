package log

import "os"

var std = New(os.Stderr, InfoLevel)

// Default returns the logger used by the package level functions
func Default() *Logger {
	return std
}

// ResetDefault replaces the default logger. Not safe to call concurrently
// with logging through the package level functions.
func ResetDefault(l *Logger) {
	std = l
	Debug = std.Debug
	Info = std.Info
	Warn = std.Warn
	Error = std.Error
	Fatal = std.Fatal
}

var (
	Debug = std.Debug
	Info  = std.Info
	Warn  = std.Warn
	Error = std.Error
	Fatal = std.Fatal
)
