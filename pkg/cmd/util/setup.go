package util

import (
	"fmt"
	"io"

	"github.com/mpapenbr/lapsim/log"
	"github.com/mpapenbr/lapsim/pkg/config"
)

func ParseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

// SetupLogger creates a logger according to the resolved log config values
// and installs it as default logger. Invalid filter rules are reported as
// config.ErrInvalidConfig and leave the default logger untouched.
func SetupLogger(w io.Writer) (*log.Logger, error) {
	if err := log.ValidateFilter(config.LogFilter); err != nil {
		return nil, fmt.Errorf("%w: log-filter: %w", config.ErrInvalidConfig, err)
	}
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			w,
			ParseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1),
			log.WithFilter(config.LogFilter))
	default:
		logger = log.DevLogger(
			w,
			ParseLogLevel(config.LogLevel, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1),
			log.WithFilter(config.LogFilter))
	}
	log.ResetDefault(logger)
	return logger, nil
}
