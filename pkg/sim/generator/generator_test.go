//nolint:thelper,lll,funlen // ok for tests
package generator

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/lapsim/pkg/geo"
	"github.com/mpapenbr/lapsim/pkg/model"
)

var center = model.Position{Lat: 42.06639, Lon: -84.24139}

func sampleConfig(drift float64) Config {
	return Config{
		Center:         center,
		Semimajor:      0.006,
		Semiminor:      0.004,
		LapDuration:    20 * time.Second,
		MaxDriftMeters: drift,
	}
}

func TestGenerator_Ideal(t *testing.T) {
	g := New(sampleConfig(0), geo.NewProjection(center.Lat))
	tests := []struct {
		name string
		t    time.Duration
		want model.Position
	}{
		{name: "start", t: 0, want: model.Position{Lat: center.Lat, Lon: center.Lon + 0.004}},
		{name: "quarter", t: 5 * time.Second, want: model.Position{Lat: center.Lat + 0.006, Lon: center.Lon}},
		{name: "half", t: 10 * time.Second, want: model.Position{Lat: center.Lat, Lon: center.Lon - 0.004}},
		{name: "three quarter", t: 15 * time.Second, want: model.Position{Lat: center.Lat - 0.006, Lon: center.Lon}},
		{name: "full lap wraps", t: 20 * time.Second, want: model.Position{Lat: center.Lat, Lon: center.Lon + 0.004}},
		{name: "second lap quarter", t: 25 * time.Second, want: model.Position{Lat: center.Lat + 0.006, Lon: center.Lon}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := g.Ideal(tt.t)
			assert.InDelta(t, tt.want.Lat, got.Lat, 1e-12)
			assert.InDelta(t, tt.want.Lon, got.Lon, 1e-12)
		})
	}
}

func TestGenerator_Phase(t *testing.T) {
	g := New(sampleConfig(0), geo.NewProjection(center.Lat))
	assert.InDelta(t, 0.0, g.Phase(0), 0)
	assert.InDelta(t, math.Pi, g.Phase(10*time.Second), 1e-12)
	assert.InDelta(t, 0.0, g.Phase(40*time.Second), 1e-12)
	assert.InDelta(t, 2*math.Pi*0.01, g.Phase(200*time.Millisecond), 1e-12)
}

func TestGenerator_NoDriftIsIdeal(t *testing.T) {
	g := New(sampleConfig(0), geo.NewProjection(center.Lat))
	for i := range 200 {
		ts := time.Duration(i) * 200 * time.Millisecond
		assert.Equal(t, g.Ideal(ts), g.Generate(ts))
	}
}

func TestGenerator_DriftIsBounded(t *testing.T) {
	proj := geo.NewProjection(center.Lat)
	const drift = 5.0
	g := New(sampleConfig(drift), proj, WithSeed(42))
	maxLat := proj.MetersToLat(drift)
	maxLon := proj.MetersToLon(drift)
	deviated := false
	for i := range 5000 {
		ts := time.Duration(i) * 137 * time.Millisecond
		ideal := g.Ideal(ts)
		got := g.Generate(ts)
		assert.LessOrEqual(t, math.Abs(got.Lat-ideal.Lat), maxLat+1e-12)
		assert.LessOrEqual(t, math.Abs(got.Lon-ideal.Lon), maxLon+1e-12)
		assert.LessOrEqual(t, proj.Distance(ideal, got), math.Sqrt2*drift+1e-6)
		if got != ideal {
			deviated = true
		}
	}
	assert.True(t, deviated, "expected some drift")
}

func TestGenerator_SeedIsReproducible(t *testing.T) {
	proj := geo.NewProjection(center.Lat)
	a := New(sampleConfig(5), proj, WithSeed(7))
	b := New(sampleConfig(5), proj, WithSeed(7))
	for i := range 50 {
		ts := time.Duration(i) * time.Second
		assert.Equal(t, a.Generate(ts), b.Generate(ts))
	}
}
