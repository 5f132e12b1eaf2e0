package lap

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/mpapenbr/lapsim/log"
	"github.com/mpapenbr/lapsim/pkg/geo"
	"github.com/mpapenbr/lapsim/pkg/model"
)

const (
	DefaultCloseThreshold = 20.0 // meters
	DefaultMinLapDistance = 50.0 // meters
	DefaultMinSamples     = 10
	distancePrecision     = 2
)

type (
	LapProcessor struct {
		proj           geo.Projection
		closeThreshold float64
		minLapDistance float64
		minSamples     int
		retention      int
		run            []model.Position
		runDistance    float64
		runStart       time.Time
		laps           []model.Lap
		numLaps        int
		l              *log.Logger
	}
	LapProcessorOption func(*LapProcessor)
)

// WithCloseThreshold sets the max distance (meters) to the first sample of the
// run that counts as returning to the start
func WithCloseThreshold(meters float64) LapProcessorOption {
	return func(p *LapProcessor) {
		p.closeThreshold = meters
	}
}

// WithMinLapDistance sets the path length a run has to exceed to become a lap
func WithMinLapDistance(meters float64) LapProcessorOption {
	return func(p *LapProcessor) {
		p.minLapDistance = meters
	}
}

// WithMinSamples sets the number of samples a run must exceed before
// closure is checked
func WithMinSamples(n int) LapProcessorOption {
	return func(p *LapProcessor) {
		p.minSamples = n
	}
}

// WithRetention keeps only the latest n laps. 0 keeps all laps.
func WithRetention(n int) LapProcessorOption {
	return func(p *LapProcessor) {
		p.retention = n
	}
}

func WithLogger(l *log.Logger) LapProcessorOption {
	return func(p *LapProcessor) {
		p.l = l
	}
}

func NewLapProcessor(proj geo.Projection, opts ...LapProcessorOption) *LapProcessor {
	ret := &LapProcessor{
		proj:           proj,
		closeThreshold: DefaultCloseThreshold,
		minLapDistance: DefaultMinLapDistance,
		minSamples:     DefaultMinSamples,
		l:              log.Default().Named("lap"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// ProcessSample appends s to the pending run and finalizes a lap if s closes it.
// The finalized lap is returned, nil otherwise.
func (p *LapProcessor) ProcessSample(s model.Position, now time.Time) *model.Lap {
	if len(p.run) == 0 {
		p.runStart = now
	} else {
		p.runDistance += p.proj.Distance(p.run[len(p.run)-1], s)
	}
	p.run = append(p.run, s)

	if len(p.run) <= p.minSamples {
		return nil
	}
	if p.proj.Distance(s, p.run[0]) >= p.closeThreshold {
		return nil
	}
	if p.runDistance <= p.minLapDistance {
		p.l.Debug("near start but run too short",
			log.Int("samples", len(p.run)),
			log.Float("distance", p.runDistance))
		return nil
	}
	return p.finalize(s, now)
}

func (p *LapProcessor) finalize(s model.Position, now time.Time) *model.Lap {
	p.numLaps++
	lap := model.Lap{
		Number: p.numLaps,
		Distance: decimal.NewFromFloat(p.runDistance).
			Round(distancePrecision).
			InexactFloat64(),
		Points:    p.run[:len(p.run):len(p.run)],
		StartTime: p.runStart,
		EndTime:   now,
	}
	p.appendLap(lap)
	p.l.Info("lap complete",
		log.Int("lap", lap.Number),
		log.Float("distance", lap.Distance),
		log.Int("samples", len(lap.Points)),
		log.Duration("duration", lap.Duration()))

	// the closing sample starts the next run
	p.run = []model.Position{s}
	p.runDistance = 0
	p.runStart = now
	return &lap
}

// published views of p.laps must stay valid, so eviction copies instead of
// shifting in place
func (p *LapProcessor) appendLap(lap model.Lap) {
	p.laps = append(p.laps, lap)
	if p.retention > 0 && len(p.laps) > p.retention {
		keep := make([]model.Lap, p.retention)
		copy(keep, p.laps[len(p.laps)-p.retention:])
		p.laps = keep
	}
}

// PendingRun returns a read-only view of the current run. Later samples are
// never visible through a view obtained before.
func (p *LapProcessor) PendingRun() []model.Position {
	return p.run[:len(p.run):len(p.run)]
}

// Laps returns a read-only view of the retained laps, oldest first
func (p *LapProcessor) Laps() []model.Lap {
	return p.laps[:len(p.laps):len(p.laps)]
}

// RunDistance is the path length of the pending run in meters
func (p *LapProcessor) RunDistance() float64 {
	return p.runDistance
}

func (p *LapProcessor) RunStart() time.Time {
	return p.runStart
}

// NumLaps is the number of laps completed so far, including evicted ones
func (p *LapProcessor) NumLaps() int {
	return p.numLaps
}
