// Package sim assembles the simulation pipeline from its configuration.
package sim

import (
	"github.com/mpapenbr/lapsim/pkg/config"
	"github.com/mpapenbr/lapsim/pkg/geo"
	"github.com/mpapenbr/lapsim/pkg/model"
	"github.com/mpapenbr/lapsim/pkg/processing"
	"github.com/mpapenbr/lapsim/pkg/processing/lap"
	"github.com/mpapenbr/lapsim/pkg/sim/generator"
	"github.com/mpapenbr/lapsim/pkg/sim/scheduler"
	"github.com/mpapenbr/lapsim/pkg/store"
)

type Pipeline struct {
	Center     model.Position
	Projection geo.Projection
	Store      *store.TrajectoryStore
	Scheduler  *scheduler.Scheduler
}

// NewPipeline wires generator, lap processor, store and scheduler.
// The scheduler interval is taken from cfg, additional scheduler options
// (clock, lap listeners) may be passed in.
func NewPipeline(cfg config.Simulation, opts ...scheduler.Option) *Pipeline {
	center := model.Position{Lat: cfg.CenterLat, Lon: cfg.CenterLon}
	proj := geo.NewProjection(center.Lat)

	var genOpts []generator.Option
	if cfg.Seed != 0 {
		genOpts = append(genOpts, generator.WithSeed(cfg.Seed))
	}
	gen := generator.New(generator.Config{
		Center:         center,
		Semimajor:      cfg.Semimajor,
		Semiminor:      cfg.Semiminor,
		LapDuration:    cfg.LapDuration,
		MaxDriftMeters: cfg.MaxDrift,
	}, proj, genOpts...)

	lp := lap.NewLapProcessor(proj,
		lap.WithCloseThreshold(cfg.CloseThreshold),
		lap.WithMinLapDistance(cfg.MinLapDistance),
		lap.WithMinSamples(cfg.MinSamples),
		lap.WithRetention(cfg.LapRetention))

	st := store.New(store.WithInitialPosition(center))
	proc := processing.NewProcessor(
		processing.WithPointSource(gen),
		processing.WithLapProcessor(lp))

	schedOpts := append([]scheduler.Option{scheduler.WithInterval(cfg.Tick)}, opts...)
	return &Pipeline{
		Center:     center,
		Projection: proj,
		Store:      st,
		Scheduler:  scheduler.New(proc, st, schedOpts...),
	}
}
