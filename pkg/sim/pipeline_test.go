package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/lapsim/pkg/config"
	"github.com/mpapenbr/lapsim/pkg/model"
	"github.com/mpapenbr/lapsim/pkg/sim/scheduler"
)

func TestNewPipeline(t *testing.T) {
	cfg := config.DefaultSimulation()
	cfg.MaxDrift = 0
	cfg.LapRetention = 1

	var laps []model.Lap
	p := NewPipeline(cfg, scheduler.WithLapListener(func(l model.Lap) { laps = append(laps, l) }))
	assert.Equal(t, model.Position{Lat: 42.06639, Lon: -84.24139}, p.Center)
	assert.Equal(t, p.Center, p.Store.LatestPosition())

	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i <= 200; i++ {
		p.Scheduler.Step(context.Background(), start.Add(time.Duration(i)*cfg.Tick))
	}
	require.Len(t, laps, 2)
	snap := p.Store.Snapshot()
	assert.Equal(t, 2, snap.NumLaps)
	require.Len(t, snap.Laps, 1, "retention keeps only the last lap")
	assert.Equal(t, 2, snap.Laps[0].Number)
}

func TestNewPipeline_SeedIsReproducible(t *testing.T) {
	cfg := config.DefaultSimulation()
	cfg.Seed = 99
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	run := func() []model.Position {
		p := NewPipeline(cfg)
		for i := range 20 {
			p.Scheduler.Step(context.Background(), start.Add(time.Duration(i)*cfg.Tick))
		}
		return p.Store.PendingRun()
	}
	assert.Equal(t, run(), run())
}
