package processing

import (
	"time"

	"github.com/mpapenbr/lapsim/pkg/model"
	"github.com/mpapenbr/lapsim/pkg/processing/lap"
)

type (
	// PointSource provides the sample for a given elapsed time
	PointSource interface {
		Generate(elapsed time.Duration) model.Position
	}
	Processor struct {
		source       PointSource
		lapProcessor *lap.LapProcessor
		numSamples   uint64
	}
	ProcessorOption func(proc *Processor)
)

func WithPointSource(source PointSource) ProcessorOption {
	return func(proc *Processor) {
		proc.source = source
	}
}

func WithLapProcessor(lapProcessor *lap.LapProcessor) ProcessorOption {
	return func(proc *Processor) {
		proc.lapProcessor = lapProcessor
	}
}

// NewProcessor needs both a point source and a lap processor
func NewProcessor(opts ...ProcessorOption) *Processor {
	ret := &Processor{}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// ProcessTick creates the sample for elapsed and feeds it into the lap processor.
// The finalized lap is returned if the sample closed one.
//
//nolint:whitespace // editor/linter issue
func (p *Processor) ProcessTick(elapsed time.Duration, now time.Time) (
	sample model.Position,
	finished *model.Lap,
) {
	sample = p.source.Generate(elapsed)
	p.numSamples++
	return sample, p.lapProcessor.ProcessSample(sample, now)
}

// NumSamples returns the number of processed ticks
func (p *Processor) NumSamples() uint64 {
	return p.numSamples
}

func (p *Processor) LapProcessor() *lap.LapProcessor {
	return p.lapProcessor
}
