package config

import "errors"

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	LogLevel          string // sets the log level (zap log level values)
	LogFormat         string // text vs json
	LogFilter         string // zapfilter rules, e.g. "debug:sim info:*"
	WaitForServices   string // duration to wait for other services to be ready
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry ("stdout" prints to stdout)
	ProfilingPort     int    // port for profiling
	ServerAddr        string // listen addr for the HTTP server
	NatsURL           string // URL of the NATS server, empty disables lap publishing
	NatsSubject       string // subject prefix for published laps
	NatsBucket        string // key-value bucket holding the latest lap
	SimDuration       string // virtual duration for headless runs

	Sim = DefaultSimulation() // simulation parameters
)

var ErrInvalidConfig = errors.New("invalid configuration")
