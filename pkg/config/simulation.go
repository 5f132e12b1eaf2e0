package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Simulation holds the parameters of the track, the lap detection and the
// sampling cadence.
//
//nolint:lll // struct tags
type Simulation struct {
	CenterLat      float64       `yaml:"center-lat" validate:"gte=-90,lte=90"`
	CenterLon      float64       `yaml:"center-lon" validate:"gte=-180,lte=180"`
	Semimajor      float64       `yaml:"semimajor" validate:"gt=0,lt=1"`
	Semiminor      float64       `yaml:"semiminor" validate:"gt=0,lt=1"`
	LapDuration    time.Duration `yaml:"lap-duration" validate:"gt=0"`
	MaxDrift       float64       `yaml:"max-drift" validate:"gte=0"`
	Seed           uint64        `yaml:"seed"`
	Tick           time.Duration `yaml:"tick" validate:"gt=0"`
	CloseThreshold float64       `yaml:"close-threshold" validate:"gt=0"`
	MinLapDistance float64       `yaml:"min-lap-distance" validate:"gte=0"`
	MinSamples     int           `yaml:"min-samples" validate:"gte=1"`
	LapRetention   int           `yaml:"lap-retention" validate:"gte=0"`
	UIRefresh      time.Duration `yaml:"ui-refresh" validate:"gt=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func DefaultSimulation() Simulation {
	return Simulation{
		CenterLat:      42.06639,
		CenterLon:      -84.24139,
		Semimajor:      0.006,
		Semiminor:      0.004,
		LapDuration:    20 * time.Second,
		MaxDrift:       5,
		Tick:           200 * time.Millisecond,
		CloseThreshold: 20,
		MinLapDistance: 50,
		MinSamples:     10,
		LapRetention:   0,
		UIRefresh:      time.Second,
	}
}

// AddSimulationFlags registers the simulation parameters on fs. The current
// values of s are used as flag defaults.
//
//nolint:funlen // many flags
func AddSimulationFlags(fs *pflag.FlagSet, s *Simulation) {
	fs.Float64Var(&s.CenterLat, "center-lat", s.CenterLat,
		"latitude of the track center")
	fs.Float64Var(&s.CenterLon, "center-lon", s.CenterLon,
		"longitude of the track center")
	fs.Float64Var(&s.Semimajor, "semimajor", s.Semimajor,
		"semi axis along the latitude in degrees")
	fs.Float64Var(&s.Semiminor, "semiminor", s.Semiminor,
		"semi axis along the longitude in degrees")
	fs.DurationVar(&s.LapDuration, "lap-duration", s.LapDuration,
		"time for one lap on the ideal track")
	fs.Float64Var(&s.MaxDrift, "max-drift", s.MaxDrift,
		"max random drift per axis in meters")
	fs.Uint64Var(&s.Seed, "seed", s.Seed,
		"seed for the drift generator (0 picks a random seed)")
	fs.DurationVar(&s.Tick, "tick", s.Tick,
		"sampling interval")
	fs.Float64Var(&s.CloseThreshold, "close-threshold", s.CloseThreshold,
		"distance in meters to the run start that closes a lap")
	fs.Float64Var(&s.MinLapDistance, "min-lap-distance", s.MinLapDistance,
		"min path length in meters for a valid lap")
	fs.IntVar(&s.MinSamples, "min-samples", s.MinSamples,
		"a lap may only close once the run has more samples than this")
	fs.IntVar(&s.LapRetention, "lap-retention", s.LapRetention,
		"number of completed laps to keep (0 keeps all)")
	fs.DurationVar(&s.UIRefresh, "ui-refresh", s.UIRefresh,
		"refresh interval of the dashboard")
}

func (s *Simulation) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// YAML returns the parameters in config file format
func (s *Simulation) YAML() (string, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
