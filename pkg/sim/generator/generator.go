// Package generator synthesizes positions on a closed elliptical track.
package generator

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/mpapenbr/lapsim/pkg/geo"
	"github.com/mpapenbr/lapsim/pkg/model"
)

type (
	Config struct {
		Center         model.Position
		Semimajor      float64 // degrees, applied on the latitude axis
		Semiminor      float64 // degrees, applied on the longitude axis
		LapDuration    time.Duration
		MaxDriftMeters float64
	}
	Generator struct {
		cfg  Config
		proj geo.Projection
		rnd  *rand.Rand
	}
	Option func(*Generator)
)

func WithRand(r *rand.Rand) Option {
	return func(g *Generator) {
		g.rnd = r
	}
}

// WithSeed makes the drift reproducible
func WithSeed(seed uint64) Option {
	return func(g *Generator) {
		g.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

func New(cfg Config, proj geo.Projection, opts ...Option) *Generator {
	ret := &Generator{
		cfg:  cfg,
		proj: proj,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.rnd == nil {
		ret.rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return ret
}

// Phase returns the angle on the ellipse for elapsed time t.
// One full revolution takes LapDuration.
func (g *Generator) Phase(t time.Duration) float64 {
	lap := g.cfg.LapDuration.Seconds()
	return 2 * math.Pi * (math.Mod(t.Seconds(), lap) / lap)
}

// Ideal returns the undisturbed position at elapsed time t
func (g *Generator) Ideal(t time.Duration) model.Position {
	theta := g.Phase(t)
	return model.Position{
		Lat: g.cfg.Center.Lat + g.cfg.Semimajor*math.Sin(theta),
		Lon: g.cfg.Center.Lon + g.cfg.Semiminor*math.Cos(theta),
	}
}

// Generate returns the position at elapsed time t including drift.
// Drift is uniform in [-MaxDriftMeters, MaxDriftMeters] on each axis.
// Not safe for concurrent use.
func (g *Generator) Generate(t time.Duration) model.Position {
	ret := g.Ideal(t)
	if g.cfg.MaxDriftMeters <= 0 {
		return ret
	}
	ret.Lat += g.proj.MetersToLat(g.drift())
	ret.Lon += g.proj.MetersToLon(g.drift())
	return ret
}

func (g *Generator) drift() float64 {
	return (2*g.rnd.Float64() - 1) * g.cfg.MaxDriftMeters
}
