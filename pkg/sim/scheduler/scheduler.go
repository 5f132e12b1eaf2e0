// Package scheduler drives the simulation at a fixed cadence and publishes
// the result of each tick to the trajectory store.
package scheduler

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/lapsim/log"
	"github.com/mpapenbr/lapsim/pkg/model"
	"github.com/mpapenbr/lapsim/pkg/processing"
	"github.com/mpapenbr/lapsim/pkg/store"
	"github.com/mpapenbr/lapsim/pkg/utils/clock"
)

const DefaultInterval = 200 * time.Millisecond

type (
	Scheduler struct {
		clock     clock.Clock
		interval  time.Duration
		processor *processing.Processor
		store     *store.TrajectoryStore
		listeners []func(model.Lap)
		start     time.Time
		l         *log.Logger
		tracer    trace.Tracer
		metrics   *schedulerMetrics
	}
	Option           func(*Scheduler)
	schedulerMetrics struct {
		ticks     metric.Int64Counter
		laps      metric.Int64Counter
		lapLength metric.Float64Histogram
	}
)

func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		s.interval = d
	}
}

// WithLapListener registers a callback for finalized laps. Callbacks are
// invoked on the scheduler goroutine and must not block.
func WithLapListener(cb func(model.Lap)) Option {
	return func(s *Scheduler) {
		s.listeners = append(s.listeners, cb)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		s.l = l
	}
}

//nolint:whitespace // editor/linter issue
func New(
	processor *processing.Processor,
	trajectoryStore *store.TrajectoryStore,
	opts ...Option,
) *Scheduler {
	ret := &Scheduler{
		clock:     clock.Real{},
		interval:  DefaultInterval,
		processor: processor,
		store:     trajectoryStore,
		l:         log.Default().Named("sim"),
		tracer:    otel.Tracer("lapsim.sim"),
	}
	for _, opt := range opts {
		opt(ret)
	}
	ret.setupMetrics()
	return ret
}

//nolint:lll // readability
func (s *Scheduler) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("lapsim.sim")
	m := &schedulerMetrics{}
	var err error
	if m.ticks, err = meter.Int64Counter("lapsim.sim.ticks",
		metric.WithDescription("Number of processed ticks"),
		metric.WithUnit("{count}")); err != nil {
		s.l.Error("failed to register metric", log.String("metric", "ticks"), log.ErrorField(err))
	}
	if m.laps, err = meter.Int64Counter("lapsim.sim.laps",
		metric.WithDescription("Number of completed laps"),
		metric.WithUnit("{count}")); err != nil {
		s.l.Error("failed to register metric", log.String("metric", "laps"), log.ErrorField(err))
	}
	if m.lapLength, err = meter.Float64Histogram("lapsim.sim.lap_length",
		metric.WithDescription("Path length of completed laps"),
		metric.WithUnit("m")); err != nil {
		s.l.Error("failed to register metric", log.String("metric", "lap_length"), log.ErrorField(err))
	}
	if _, err = meter.Int64ObservableGauge("lapsim.sim.pending_points",
		metric.WithDescription("Number of samples in the pending run"),
		metric.WithUnit("{count}"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(len(s.store.Snapshot().Pending)))
			return nil
		})); err != nil {
		s.l.Error("failed to register metric", log.String("metric", "pending_points"), log.ErrorField(err))
	}
	s.metrics = m
}

// Run processes a tick immediately and then once per interval until ctx is done.
// Run must not be called more than once at the same time.
func (s *Scheduler) Run(ctx context.Context) error {
	s.l.Info("starting simulation", log.Duration("interval", s.interval))
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.Step(ctx, s.clock.Now())
	for {
		select {
		case <-ctx.Done():
			s.l.Info("simulation stopped", log.Uint64("ticks", s.Ticks()))
			return nil
		case now := <-ticker.C():
			s.Step(ctx, now)
		}
	}
}

// Step runs a single tick at the given time. The elapsed simulation time is
// measured from the first call.
func (s *Scheduler) Step(ctx context.Context, now time.Time) *model.Lap {
	if s.processor.NumSamples() == 0 {
		s.start = now
	}
	sample, lap := s.processor.ProcessTick(now.Sub(s.start), now)

	lp := s.processor.LapProcessor()
	s.store.Publish(&store.Snapshot{
		Tick:        s.processor.NumSamples(),
		Time:        now,
		Latest:      sample,
		Pending:     lp.PendingRun(),
		RunDistance: lp.RunDistance(),
		Laps:        lp.Laps(),
		NumLaps:     lp.NumLaps(),
	})
	s.metrics.ticks.Add(ctx, 1)

	if lap != nil {
		s.lapFinished(ctx, lap)
	}
	return lap
}

func (s *Scheduler) lapFinished(ctx context.Context, lap *model.Lap) {
	_, span := s.tracer.Start(ctx, "lap.finalize",
		trace.WithAttributes(
			attribute.Int("lap", lap.Number),
			attribute.Float64("distance", lap.Distance),
			attribute.Int("samples", len(lap.Points)),
		))
	defer span.End()

	s.metrics.laps.Add(ctx, 1)
	s.metrics.lapLength.Record(ctx, lap.Distance)
	for _, cb := range s.listeners {
		cb(*lap)
	}
}

// Ticks returns the number of processed ticks. Only meaningful on the
// scheduler goroutine or after Run returned.
func (s *Scheduler) Ticks() uint64 {
	return s.processor.NumSamples()
}
